package model

import "strings"

// ListQuery 目录类列表查询（学生、资源）
//
// Exact / Contains 的键为字段名，调用方需先用对应的 *Fields 白名单校验。
type ListQuery struct {
	Exact    map[string]string
	Contains map[string]string
	// Name 学生姓名子串，匹配 first_name 或 last_name
	Name     string
	Search   string
	Ordering string
	Limit    int
	Offset   int
}

// OrderingField 解析 "-title" 形式的排序参数
func (q *ListQuery) OrderingField() (field string, desc bool) {
	if strings.HasPrefix(q.Ordering, "-") {
		return q.Ordering[1:], true
	}
	return q.Ordering, false
}

// Allowed 字段是否在白名单内
func Allowed(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
