package mongostore

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

// duplicateField 唯一键冲突时按索引名（<col>_<field>_key）识别字段
func duplicateField(err error, fields ...string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return wrapError(err)
	}
	msg := err.Error()
	for _, f := range fields {
		if strings.Contains(msg, "_"+f+"_key") {
			return &storage.DuplicateError{Field: f}
		}
	}
	return storage.ErrDuplicate
}

// findOne 查找单个文档并解码到 result
// 文档不存在时返回 (nil, nil)，与 SQL 实现的 sql.ErrNoRows → (nil, nil) 行为一致
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var result T
	err := col.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return &result, nil
}

// findMany 查找多个文档
func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	return results, cursor.Err()
}

// aggregate 执行聚合管道并解码结果
func aggregate[T any](ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline) ([]*T, error) {
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	return results, cursor.Err()
}

// updateFields 按 _id 更新指定字段
func updateFields(ctx context.Context, col *mongo.Collection, id string, update bson.D) error {
	res, err := col.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: update}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// containsRegex 大小写无关子串匹配
func containsRegex(s string) bson.Regex {
	return bson.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// catalogFilter 将目录列表查询转换为 bson 过滤条件
// fieldName 把对外字段名映射为文档字段名（如 resource_id → _id）
func catalogFilter(q model.ListQuery, exact, contains, search []string, fieldName func(string) string) bson.D {
	filter := bson.D{}
	for _, f := range exact {
		if v, ok := q.Exact[f]; ok {
			filter = append(filter, bson.E{Key: fieldName(f), Value: v})
		}
	}
	for _, f := range contains {
		if v, ok := q.Contains[f]; ok {
			filter = append(filter, bson.E{Key: fieldName(f), Value: containsRegex(v)})
		}
	}
	var and bson.A
	if q.Search != "" {
		and = append(and, bson.D{{Key: "$or", Value: orRegex(q.Search, search, fieldName)}})
	}
	if q.Name != "" {
		and = append(and, bson.D{{Key: "$or", Value: orRegex(q.Name, []string{"first_name", "last_name"}, fieldName)}})
	}
	if len(and) > 0 {
		filter = append(filter, bson.E{Key: "$and", Value: and})
	}
	return filter
}

func orRegex(s string, fields []string, fieldName func(string) string) bson.A {
	or := bson.A{}
	re := containsRegex(s)
	for _, f := range fields {
		or = append(or, bson.D{{Key: fieldName(f), Value: re}})
	}
	return or
}

// listOptions 生成排序与分页选项
func listOptions(q model.ListQuery, ordering []string, fieldName func(string) string) *options.FindOptionsBuilder {
	sort := bson.D{}
	field, desc := q.OrderingField()
	if model.Allowed(ordering, field) {
		dir := 1
		if desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: fieldName(field), Value: dir})
	}
	sort = append(sort, bson.E{Key: "created_at", Value: 1}, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(sort)
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func sameField(f string) string { return f }
