package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"library-admin/internal/shared/model"
)

// Source 报表数据来源，由 ledger.Service 实现
type Source interface {
	ListBorrows(ctx context.Context, studentID string, f model.BorrowFilter) ([]*model.Borrow, error)
	ListReturns(ctx context.Context, f model.ReturnFilter) ([]*model.Return, error)
}

// Row 报表中的一行
type Row struct {
	Type       model.ReportType
	Date       model.Date
	StudentID  string
	Name       string
	ResourceID string
	Title      string
}

var csvHeader = []string{"type", "date", "student_id", "name", "resource_id", "title"}

// Collect 按类型收集 [start, end] 区间内的记录
//
//   - BORROW：borrow_date 在区间内的借阅
//   - RETURN：return_date 在区间内的归还
//   - OVERDUE：当前逾期且 due_date 在区间内的借阅
func Collect(ctx context.Context, src Source, typ model.ReportType, start, end model.Date) ([]Row, error) {
	switch typ {
	case model.ReportTypeBorrow:
		borrows, err := src.ListBorrows(ctx, "", model.BorrowFilter{BorrowFrom: start, BorrowTo: end})
		if err != nil {
			return nil, err
		}
		return borrowRows(typ, borrows, func(b *model.Borrow) model.Date { return b.BorrowDate }), nil

	case model.ReportTypeOverdue:
		borrows, err := src.ListBorrows(ctx, "", model.BorrowFilter{Status: model.BorrowStatusOverdue, DueFrom: start, DueTo: end})
		if err != nil {
			return nil, err
		}
		return borrowRows(typ, borrows, func(b *model.Borrow) model.Date { return b.DueDate }), nil

	case model.ReportTypeReturn:
		returns, err := src.ListReturns(ctx, model.ReturnFilter{ReturnFrom: start, ReturnTo: end})
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(returns))
		for _, rt := range returns {
			row := Row{Type: typ, Date: rt.ReturnDate}
			if rt.Borrow != nil {
				fillParties(&row, rt.Borrow)
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unknown report type %q", typ)
}

func borrowRows(typ model.ReportType, borrows []*model.Borrow, date func(*model.Borrow) model.Date) []Row {
	rows := make([]Row, 0, len(borrows))
	for _, b := range borrows {
		row := Row{Type: typ, Date: date(b)}
		fillParties(&row, b)
		rows = append(rows, row)
	}
	return rows
}

func fillParties(row *Row, b *model.Borrow) {
	row.ResourceID = b.ResourceID
	if b.Student != nil {
		row.StudentID = b.Student.StudentID
		row.Name = b.Student.FullName()
	}
	if b.Resource != nil {
		row.Title = b.Resource.Title
	}
}

// WriteCSV 输出带表头的 CSV
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{string(r.Type), r.Date.String(), r.StudentID, r.Name, r.ResourceID, r.Title}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
