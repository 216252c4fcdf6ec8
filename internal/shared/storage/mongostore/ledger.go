package mongostore

import (
	"context"
	"strings"
	"time"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// borrowDoc 聚合查询结果，$lookup 以数组形式带回关联文档
type borrowDoc struct {
	model.Borrow `bson:",inline"`
	Students     []model.Student  `bson:"student_docs"`
	Resources    []model.Resource `bson:"resource_docs"`
}

func (d *borrowDoc) borrow() *model.Borrow {
	b := d.Borrow
	if len(d.Students) > 0 {
		b.Student = &d.Students[0]
	}
	if len(d.Resources) > 0 {
		b.Resource = &d.Resources[0]
	}
	return &b
}

type returnDoc struct {
	model.Return `bson:",inline"`
	Borrows      []borrowDoc `bson:"borrow_docs"`
}

func (d *returnDoc) ret() *model.Return {
	rt := d.Return
	if len(d.Borrows) > 0 {
		rt.Borrow = d.Borrows[0].borrow()
	}
	return &rt
}

// borrowLookups 关联学生与资源
func borrowLookups() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ColStudents},
			{Key: "localField", Value: "student_ref"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "student_docs"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ColResources},
			{Key: "localField", Value: "resource_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "resource_docs"},
		}}},
	}
}

// page 排序与分页阶段
func page(sort bson.D, limit, offset int) mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$sort", Value: sort}}}
	if offset > 0 {
		p = append(p, bson.D{{Key: "$skip", Value: int64(offset)}})
	}
	if limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return p
}

// dateRange 日期以 YYYY-MM-DD 字符串存储，可直接按字典序比较
func dateRange(filter bson.D, field string, from, to model.Date) bson.D {
	cond := bson.D{}
	if !from.IsZero() {
		cond = append(cond, bson.E{Key: "$gte", Value: from.String()})
	}
	if !to.IsZero() {
		cond = append(cond, bson.E{Key: "$lte", Value: to.String()})
	}
	if len(cond) == 0 {
		return filter
	}
	return append(filter, bson.E{Key: field, Value: cond})
}

// ============================================================================
// 写操作（事务）
// ============================================================================

// CreateBorrow 校验并写入借阅，同时将资源置为 BORROWED
func (s *Store) CreateBorrow(ctx context.Context, b *model.Borrow) error {
	err := s.withTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkActiveLoans(ctx, b.ID, b.StudentRef, b.ResourceID); err != nil {
			return err
		}

		doc := *b
		doc.Status = model.BorrowStatusActive
		if _, err := s.col(ColBorrows).InsertOne(ctx, &doc); err != nil {
			return ledgerConflict(err)
		}
		return s.setResourceStatus(ctx, b.ResourceID, model.ResourceStatusBorrowed)
	})
	if err != nil {
		return ledgerConflict(err)
	}
	b.Status = model.BorrowStatusActive
	return nil
}

// ExtendBorrow 修改 ACTIVE 借阅的应还日期
func (s *Store) ExtendBorrow(ctx context.Context, id string, due model.Date) error {
	return s.withTransaction(ctx, func(ctx context.Context) error {
		cur, err := findOne[model.Borrow](ctx, s.col(ColBorrows), bson.D{{Key: "_id", Value: id}})
		if err != nil {
			return err
		}
		if cur == nil {
			return storage.ErrNotFound
		}
		if !cur.IsActive() {
			return storage.ErrBorrowNotActive
		}

		// 排除自身，重复保存同一条 ACTIVE 借阅不算冲突
		if err := s.checkActiveLoans(ctx, id, cur.StudentRef, cur.ResourceID); err != nil {
			return err
		}

		res, err := s.col(ColBorrows).UpdateOne(ctx,
			bson.D{{Key: "_id", Value: id}, {Key: "status", Value: model.BorrowStatusActive}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "due_date", Value: due}}}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return storage.ErrBorrowNotActive
		}
		return nil
	})
}

// CreateReturn 写入归还，借阅置为 RETURNED，资源置为 AVAILABLE
func (s *Store) CreateReturn(ctx context.Context, rt *model.Return) error {
	err := s.withTransaction(ctx, func(ctx context.Context) error {
		b, err := findOne[model.Borrow](ctx, s.col(ColBorrows), bson.D{{Key: "_id", Value: rt.BorrowID}})
		if err != nil {
			return err
		}
		if b == nil {
			return storage.ErrNotFound
		}
		if !b.IsActive() {
			return storage.ErrBorrowNotActive
		}

		if _, err := s.col(ColReturns).InsertOne(ctx, rt); err != nil {
			return ledgerConflict(err)
		}

		res, err := s.col(ColBorrows).UpdateOne(ctx,
			bson.D{{Key: "_id", Value: rt.BorrowID}, {Key: "status", Value: model.BorrowStatusActive}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: model.BorrowStatusReturned}}}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return storage.ErrBorrowNotActive
		}
		return s.setResourceStatus(ctx, b.ResourceID, model.ResourceStatusAvailable)
	})
	return ledgerConflict(err)
}

// checkActiveLoans 资源、学生各自最多一条 ACTIVE 借阅（excludeID 除外）
func (s *Store) checkActiveLoans(ctx context.Context, excludeID, studentRef, resourceID string) error {
	active := func(field, value string) bson.D {
		return bson.D{
			{Key: field, Value: value},
			{Key: "status", Value: model.BorrowStatusActive},
			{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}},
		}
	}

	n, err := s.col(ColBorrows).CountDocuments(ctx, active("resource_id", resourceID))
	if err != nil {
		return err
	}
	if n > 0 {
		return storage.ErrResourceBorrowed
	}

	n, err = s.col(ColBorrows).CountDocuments(ctx, active("student_ref", studentRef))
	if err != nil {
		return err
	}
	if n > 0 {
		return storage.ErrStudentHasActiveLoan
	}
	return nil
}

func (s *Store) setResourceStatus(ctx context.Context, resourceID string, status model.ResourceStatus) error {
	return updateFields(ctx, s.col(ColResources), resourceID, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// ledgerConflict 将部分唯一索引冲突映射为借还领域错误，其他错误原样返回
func ledgerConflict(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxReturnsBorrowID):
		return storage.ErrBorrowNotActive
	case strings.Contains(msg, idxBorrowsActiveResource):
		return storage.ErrResourceBorrowed
	case strings.Contains(msg, idxBorrowsActiveStudent):
		return storage.ErrStudentHasActiveLoan
	default:
		return storage.ErrDuplicate
	}
}

// ============================================================================
// 读操作
// ============================================================================

// GetBorrow 查询借阅（含学生、资源）
func (s *Store) GetBorrow(ctx context.Context, id string) (*model.Borrow, error) {
	p := append(mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}}}, borrowLookups()...)
	docs, err := aggregate[borrowDoc](ctx, s.col(ColBorrows), p)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0].borrow(), nil
}

// ListBorrows 按过滤条件列出借阅
func (s *Store) ListBorrows(ctx context.Context, f model.BorrowFilter) ([]*model.Borrow, error) {
	filter := bson.D{}
	if f.StudentRef != "" {
		filter = append(filter, bson.E{Key: "student_ref", Value: f.StudentRef})
	}
	if f.ResourceID != "" {
		filter = append(filter, bson.E{Key: "resource_id", Value: f.ResourceID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	filter = dateRange(filter, "borrow_date", f.BorrowFrom, f.BorrowTo)

	due := bson.D{}
	if !f.DueFrom.IsZero() {
		due = append(due, bson.E{Key: "$gte", Value: f.DueFrom.String()})
	}
	if !f.DueTo.IsZero() {
		due = append(due, bson.E{Key: "$lte", Value: f.DueTo.String()})
	}
	if !f.DueBefore.IsZero() {
		due = append(due, bson.E{Key: "$lt", Value: f.DueBefore.String()})
	}
	if len(due) > 0 {
		filter = append(filter, bson.E{Key: "due_date", Value: due})
	}

	p := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	p = append(p, page(bson.D{{Key: "borrow_date", Value: -1}, {Key: "_id", Value: -1}}, f.Limit, f.Offset)...)
	p = append(p, borrowLookups()...)

	docs, err := aggregate[borrowDoc](ctx, s.col(ColBorrows), p)
	if err != nil {
		return nil, err
	}
	borrows := make([]*model.Borrow, 0, len(docs))
	for _, d := range docs {
		borrows = append(borrows, d.borrow())
	}
	return borrows, nil
}

// returnLookup 关联借阅，并在子管道中继续关联学生与资源
func returnLookup() bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: ColBorrows},
		{Key: "localField", Value: "borrow_id"},
		{Key: "foreignField", Value: "_id"},
		{Key: "pipeline", Value: borrowLookups()},
		{Key: "as", Value: "borrow_docs"},
	}}}
}

// GetReturn 查询归还（含借阅）
func (s *Store) GetReturn(ctx context.Context, id string) (*model.Return, error) {
	p := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}},
		returnLookup(),
	}
	docs, err := aggregate[returnDoc](ctx, s.col(ColReturns), p)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0].ret(), nil
}

// ListReturns 按过滤条件列出归还
func (s *Store) ListReturns(ctx context.Context, f model.ReturnFilter) ([]*model.Return, error) {
	filter := bson.D{}
	if f.BorrowID != "" {
		filter = append(filter, bson.E{Key: "borrow_id", Value: f.BorrowID})
	}
	filter = dateRange(filter, "return_date", f.ReturnFrom, f.ReturnTo)

	p := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	p = append(p, page(bson.D{{Key: "return_date", Value: -1}, {Key: "_id", Value: -1}}, f.Limit, f.Offset)...)
	p = append(p, returnLookup())

	docs, err := aggregate[returnDoc](ctx, s.col(ColReturns), p)
	if err != nil {
		return nil, err
	}
	returns := make([]*model.Return, 0, len(docs))
	for _, d := range docs {
		returns = append(returns, d.ret())
	}
	return returns, nil
}
