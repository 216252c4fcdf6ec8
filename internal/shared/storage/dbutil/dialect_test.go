package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindToQuestion(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ?", RebindToQuestion("SELECT * FROM t WHERE a = $1 AND b = $2"))
	assert.Equal(t, "x = $1", RebindToPositional("x = $1"))
}

func TestStripPgCasts(t *testing.T) {
	assert.Equal(t, "due_date < $1", StripPgCasts("due_date < $1::date"))
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%smith%", ContainsPattern("SMITH"))
	assert.Equal(t, `%50\%\_off%`, ContainsPattern("50%_off"))
	assert.Equal(t, `%a\\b%`, ContainsPattern(`a\b`))
}

func TestWhereBuilder(t *testing.T) {
	var w Where
	assert.Equal(t, "", w.Clause())

	w.Add("status = $?", "ACTIVE")
	w.Add("(LOWER(first_name) LIKE $? OR LOWER(last_name) LIKE $?)", "%a%", "%a%")
	page := w.Paginate(10, 20)

	assert.Equal(t, " WHERE status = $1 AND (LOWER(first_name) LIKE $2 OR LOWER(last_name) LIKE $3)", w.Clause())
	assert.Equal(t, " LIMIT $4 OFFSET $5", page)
	assert.Equal(t, []interface{}{"ACTIVE", "%a%", "%a%", 10, 20}, w.Args())
}

func TestPaginateOffsetOnly(t *testing.T) {
	var w Where
	assert.Equal(t, "", w.Paginate(0, 0))
	assert.Equal(t, " LIMIT $1 OFFSET $2", w.Paginate(0, 5))
	assert.Equal(t, []interface{}{MaxPageSize, 5}, w.Args())
}
