// Package mongostore 实现基于 MongoDB 的 PersistentStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
//
// 借还写操作使用多文档事务，要求 MongoDB 以副本集方式部署。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColUsers     = "users"
	ColStudents  = "students"
	ColResources = "resources"
	ColBorrows   = "borrows"
	ColReturns   = "returns"
	ColReports   = "reports"
)

// 唯一索引名称，与 SQL 驱动的约束名保持一致
const (
	idxUsersUsername         = "users_username_key"
	idxStudentsStudentID     = "students_student_id_key"
	idxStudentsEmail         = "students_email_key"
	idxBorrowsActiveResource = "borrows_active_resource_idx"
	idxBorrowsActiveStudent  = "borrows_active_student_idx"
	idxReturnsBorrowID       = "returns_borrow_id_key"
)

// Store 实现 storage.PersistentStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017/?replicaSet=rs0"
// dbName: 数据库名称，如 "library"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}

	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("WARNING: mongostore: ensure indexes failed: %v", err)
	}

	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// withTransaction 在会话事务中执行 fn，瞬时错误由驱动自动重试
func (s *Store) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongostore: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// ensureIndexes 创建所有必要的索引
//
// borrows 上的两个部分唯一索引只约束 status=ACTIVE 的文档。
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col     string
		keys    bson.D
		name    string
		unique  bool
		partial bson.D
	}

	active := bson.D{{Key: "status", Value: "ACTIVE"}}
	indexes := []idx{
		{col: ColUsers, keys: bson.D{{Key: "username", Value: 1}}, name: idxUsersUsername, unique: true},

		{col: ColStudents, keys: bson.D{{Key: "student_id", Value: 1}}, name: idxStudentsStudentID, unique: true},
		{col: ColStudents, keys: bson.D{{Key: "email", Value: 1}}, name: idxStudentsEmail, unique: true},
		{col: ColStudents, keys: bson.D{{Key: "created_at", Value: 1}}},

		{col: ColResources, keys: bson.D{{Key: "status", Value: 1}}},

		{col: ColBorrows, keys: bson.D{{Key: "resource_id", Value: 1}}, name: idxBorrowsActiveResource, unique: true, partial: active},
		{col: ColBorrows, keys: bson.D{{Key: "student_ref", Value: 1}}, name: idxBorrowsActiveStudent, unique: true, partial: active},
		{col: ColBorrows, keys: bson.D{{Key: "borrow_date", Value: -1}}},

		{col: ColReturns, keys: bson.D{{Key: "borrow_id", Value: 1}}, name: idxReturnsBorrowID, unique: true},
		{col: ColReturns, keys: bson.D{{Key: "return_date", Value: -1}}},

		{col: ColReports, keys: bson.D{{Key: "generated_at", Value: -1}}},
	}

	for _, i := range indexes {
		opts := options.Index()
		if i.name != "" {
			opts.SetName(i.name)
		}
		if i.unique {
			opts.SetUnique(true)
		}
		if i.partial != nil {
			opts.SetPartialFilterExpression(i.partial)
		}
		model := mongo.IndexModel{Keys: i.keys, Options: opts}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
