package model

// BorrowStatus 借阅状态
type BorrowStatus string

const (
	BorrowStatusActive   BorrowStatus = "ACTIVE"
	BorrowStatusReturned BorrowStatus = "RETURNED"
	// BorrowStatusOverdue 只作为查询与报表中的派生状态，不写入存储
	BorrowStatusOverdue BorrowStatus = "OVERDUE"
)

// Valid 是否为已知状态
func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowStatusActive, BorrowStatusReturned, BorrowStatusOverdue:
		return true
	}
	return false
}

// Borrow 借阅记录
type Borrow struct {
	ID         string       `json:"id" bson:"_id" db:"id"`
	StudentRef string       `json:"student_ref" bson:"student_ref" db:"student_ref"`
	ResourceID string       `json:"resource_id" bson:"resource_id" db:"resource_id"`
	BorrowDate Date         `json:"borrow_date" bson:"borrow_date" db:"borrow_date"`
	DueDate    Date         `json:"due_date" bson:"due_date" db:"due_date"`
	Status     BorrowStatus `json:"status" bson:"status" db:"status"`
	Overdue    bool         `json:"overdue" bson:"-" db:"-"`

	Student  *Student  `json:"student,omitempty" bson:"-" db:"-"`
	Resource *Resource `json:"resource,omitempty" bson:"-" db:"-"`
}

// IsActive 是否为未归还借阅
func (b *Borrow) IsActive() bool {
	return b.Status == BorrowStatusActive
}

// IsOverdueOn ACTIVE 且应还日期早于 today
func (b *Borrow) IsOverdueOn(today Date) bool {
	return b.IsActive() && b.DueDate.Before(today)
}

// Return 归还记录
type Return struct {
	ID             string `json:"id" bson:"_id" db:"id"`
	BorrowID       string `json:"borrow_record_id" bson:"borrow_id" db:"borrow_id"`
	ReturnDate     Date   `json:"return_date" bson:"return_date" db:"return_date"`
	ConditionNotes string `json:"condition_notes" bson:"condition_notes" db:"condition_notes"`

	Borrow *Borrow `json:"borrow,omitempty" bson:"-" db:"-"`
}

// BorrowFilter 借阅列表过滤条件，零值字段不参与过滤
type BorrowFilter struct {
	StudentRef string
	ResourceID string
	Status     BorrowStatus
	// DueBefore 非零时只返回 due_date 早于该日期的记录
	DueBefore  Date
	BorrowFrom Date
	BorrowTo   Date
	DueFrom    Date
	DueTo      Date
	Limit      int
	Offset     int
}

// ReturnFilter 归还列表过滤条件
type ReturnFilter struct {
	BorrowID   string
	ReturnFrom Date
	ReturnTo   Date
	Limit      int
	Offset     int
}
