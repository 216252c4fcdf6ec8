// Package ledger 借还账本服务
//
// Service 是 Borrow.status 与 Resource.status 的唯一写入方：
// 借出、归还、续借都在存储层单个事务内完成校验与状态同步。
// 存储错误在这里转换为 apperr 分类，供 HTTP 层映射状态码。
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
	"library-admin/pkg/logging"
)

// Store 账本依赖的存储能力
type Store interface {
	storage.StudentStore
	storage.ResourceStore
	storage.LedgerStore
}

// Service 借还账本服务
type Service struct {
	store   Store
	metrics *Metrics
	log     *logging.Logger
	now     func() time.Time
}

// NewService 创建账本服务
func NewService(store Store, metrics *Metrics, logger *logging.Logger) *Service {
	return &Service{store: store, metrics: metrics, log: logger, now: time.Now}
}

// BorrowRequest 借出请求，student_id 为学号
type BorrowRequest struct {
	StudentID  string `json:"student_id"`
	ResourceID string `json:"resource_id"`
	DueDate    string `json:"due_date"`
}

// ReturnRequest 归还请求，borrow_record_id 为借阅记录 id
type ReturnRequest struct {
	BorrowRecordID string `json:"borrow_record_id"`
	ConditionNotes string `json:"condition_notes"`
}

func (s *Service) today() model.Date {
	return model.NewDate(s.now())
}

// ============================================================================
// 写操作
// ============================================================================

// CreateBorrow 借出资源
func (s *Service) CreateBorrow(ctx context.Context, req BorrowRequest) (*model.Borrow, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.StudentID == "" {
		return nil, apperr.Validation("student_id is required")
	}
	if req.ResourceID == "" {
		return nil, apperr.Validation("resource_id is required")
	}
	due, err := s.parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	student, err := s.store.GetStudentByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, apperr.Internal("failed to load student", err)
	}
	if student == nil {
		return nil, apperr.NotFound("student %q not found", req.StudentID)
	}
	resource, err := s.store.GetResource(ctx, req.ResourceID)
	if err != nil {
		return nil, apperr.Internal("failed to load resource", err)
	}
	if resource == nil {
		return nil, apperr.NotFound("resource %q not found", req.ResourceID)
	}

	b := &model.Borrow{
		ID:         generateID("brw"),
		StudentRef: student.ID,
		ResourceID: resource.ResourceID,
		BorrowDate: s.today(),
		DueDate:    due,
	}
	if err := s.store.CreateBorrow(ctx, b); err != nil {
		return nil, s.mapError(err, "borrow record not found")
	}

	s.metrics.BorrowsTotal.Inc()
	s.log.WithContext(ctx).LedgerLog("borrow", b.ID,
		slog.String("student_id", student.StudentID),
		slog.String("resource_id", resource.ResourceID),
		slog.String("due_date", due.String()))

	resource.Status = model.ResourceStatusBorrowed
	b.Student = student
	b.Resource = resource
	return s.decorate(b), nil
}

// CreateReturn 归还资源
func (s *Service) CreateReturn(ctx context.Context, req ReturnRequest) (*model.Return, error) {
	req.BorrowRecordID = strings.TrimSpace(req.BorrowRecordID)
	if req.BorrowRecordID == "" {
		return nil, apperr.Validation("borrow_record_id is required")
	}

	rt := &model.Return{
		ID:             generateID("ret"),
		BorrowID:       req.BorrowRecordID,
		ReturnDate:     s.today(),
		ConditionNotes: req.ConditionNotes,
	}
	if err := s.store.CreateReturn(ctx, rt); err != nil {
		return nil, s.mapError(err, "borrow record "+req.BorrowRecordID+" not found")
	}

	s.metrics.ReturnsTotal.Inc()
	s.log.WithContext(ctx).LedgerLog("return", rt.BorrowID, slog.String("return_id", rt.ID))

	b, err := s.store.GetBorrow(ctx, rt.BorrowID)
	if err != nil {
		return nil, apperr.Internal("failed to load borrow", err)
	}
	if b != nil {
		rt.Borrow = s.decorate(b)
	}
	return rt, nil
}

// ExtendBorrow 修改未归还借阅的应还日期
func (s *Service) ExtendBorrow(ctx context.Context, id, dueDate string) (*model.Borrow, error) {
	due, err := s.parseDueDate(dueDate)
	if err != nil {
		return nil, err
	}
	if err := s.store.ExtendBorrow(ctx, id, due); err != nil {
		return nil, s.mapError(err, "borrow record "+id+" not found")
	}
	s.log.WithContext(ctx).LedgerLog("extend", id, slog.String("due_date", due.String()))
	return s.GetBorrow(ctx, id)
}

func (s *Service) parseDueDate(v string) (model.Date, error) {
	if strings.TrimSpace(v) == "" {
		return model.Date{}, apperr.Validation("due_date is required")
	}
	due, err := model.ParseDate(strings.TrimSpace(v))
	if err != nil {
		return model.Date{}, apperr.Validation("due_date: %v", err)
	}
	if due.Before(s.today()) {
		return model.Date{}, apperr.Validation("due_date cannot be in the past")
	}
	return due, nil
}

// mapError 存储层错误 → apperr
func (s *Service) mapError(err error, notFound string) error {
	switch {
	case errors.Is(err, storage.ErrResourceBorrowed):
		s.metrics.ConflictsTotal.WithLabelValues("resource_borrowed").Inc()
		return apperr.Conflict(storage.ErrResourceBorrowed.Error())
	case errors.Is(err, storage.ErrStudentHasActiveLoan):
		s.metrics.ConflictsTotal.WithLabelValues("student_has_active_loan").Inc()
		return apperr.Conflict(storage.ErrStudentHasActiveLoan.Error())
	case errors.Is(err, storage.ErrBorrowNotActive):
		s.metrics.ConflictsTotal.WithLabelValues("borrow_not_active").Inc()
		return apperr.Conflict(storage.ErrBorrowNotActive.Error())
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("%s", notFound)
	default:
		return apperr.Internal("ledger write failed", err)
	}
}

// ============================================================================
// 读操作
// ============================================================================

// decorate 按当前日期计算派生的逾期标记
func (s *Service) decorate(b *model.Borrow) *model.Borrow {
	b.Overdue = b.IsOverdueOn(s.today())
	return b
}

// GetBorrow 查询借阅
func (s *Service) GetBorrow(ctx context.Context, id string) (*model.Borrow, error) {
	b, err := s.store.GetBorrow(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to load borrow", err)
	}
	if b == nil {
		return nil, apperr.NotFound("borrow record %s not found", id)
	}
	return s.decorate(b), nil
}

// ListBorrows 列出借阅
//
// studentID 为学号，非空时先解析为学生记录；状态 OVERDUE 转换为
// ACTIVE 且应还日期早于今天。
func (s *Service) ListBorrows(ctx context.Context, studentID string, f model.BorrowFilter) ([]*model.Borrow, error) {
	if studentID != "" {
		st, err := s.store.GetStudentByStudentID(ctx, studentID)
		if err != nil {
			return nil, apperr.Internal("failed to load student", err)
		}
		if st == nil {
			return []*model.Borrow{}, nil
		}
		f.StudentRef = st.ID
	}
	if f.Status == model.BorrowStatusOverdue {
		f.Status = model.BorrowStatusActive
		f.DueBefore = s.today()
	}

	borrows, err := s.store.ListBorrows(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to list borrows", err)
	}
	for _, b := range borrows {
		s.decorate(b)
	}
	return borrows, nil
}

// GetReturn 查询归还
func (s *Service) GetReturn(ctx context.Context, id string) (*model.Return, error) {
	rt, err := s.store.GetReturn(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to load return", err)
	}
	if rt == nil {
		return nil, apperr.NotFound("return record %s not found", id)
	}
	if rt.Borrow != nil {
		s.decorate(rt.Borrow)
	}
	return rt, nil
}

// ListReturns 列出归还
func (s *Service) ListReturns(ctx context.Context, f model.ReturnFilter) ([]*model.Return, error) {
	returns, err := s.store.ListReturns(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to list returns", err)
	}
	for _, rt := range returns {
		if rt.Borrow != nil {
			s.decorate(rt.Borrow)
		}
	}
	return returns, nil
}

// generateID 生成带前缀的随机 ID
// 格式：prefix-xxxxxxxxxxxx（prefix + 12 字符 hex）
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
