package model

import "time"

// ReportType 报表类型
type ReportType string

const (
	ReportTypeBorrow  ReportType = "BORROW"
	ReportTypeReturn  ReportType = "RETURN"
	ReportTypeOverdue ReportType = "OVERDUE"
)

// Valid 是否为已知类型
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeBorrow, ReportTypeReturn, ReportTypeOverdue:
		return true
	}
	return false
}

// Report 报表元数据，创建后不可修改
type Report struct {
	ID          string     `json:"id" bson:"_id" db:"id"`
	ReportType  ReportType `json:"report_type" bson:"report_type" db:"report_type"`
	GeneratedAt time.Time  `json:"generated_at" bson:"generated_at" db:"generated_at"`
	StartDate   Date       `json:"start_date" bson:"start_date" db:"start_date"`
	EndDate     Date       `json:"end_date" bson:"end_date" db:"end_date"`
	File        string     `json:"file,omitempty" bson:"file,omitempty" db:"file"`
	RowCount    int        `json:"row_count" bson:"row_count" db:"row_count"`
	CreatedBy   string     `json:"created_by,omitempty" bson:"created_by,omitempty" db:"created_by"`
	// Content 未配置对象存储时随元数据保存的 CSV，列表查询不加载
	Content []byte `json:"-" bson:"content,omitempty" db:"content"`
}
