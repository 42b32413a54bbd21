package store

import (
	"context"
	"time"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskStore 定义了任务记录持久化的接口。
type TaskStore interface {
	Create(ctx context.Context, task *models.TaskRecord) error
	GetByID(ctx context.Context, id string) (*models.TaskRecord, error)
	List(ctx context.Context, kind models.TaskKind, page, limit int) ([]*models.TaskRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus, result any, errMsg string) error
}

// MongoTaskStore 是基于 MongoDB 的 TaskStore 实现。
type MongoTaskStore struct {
	collection *mongo.Collection
}

// NewMongoTaskStore 创建一个新的 MongoTaskStore。
func NewMongoTaskStore(db *mongo.Database, collectionName string) *MongoTaskStore {
	return &MongoTaskStore{
		collection: db.Collection(collectionName),
	}
}

// Create 向数据库插入一条新的任务记录。
func (s *MongoTaskStore) Create(ctx context.Context, task *models.TaskRecord) error {
	if _, err := s.collection.InsertOne(ctx, task); err != nil {
		return apperr.Wrap(apperr.KindInternal, "写入任务记录失败", err)
	}
	return nil
}

// GetByID 根据 ID 查询任务记录。
func (s *MongoTaskStore) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	var task models.TaskRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "任务 %s 不存在", id)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "查询任务记录失败", err)
	}
	return &task, nil
}

// List 按提交时间降序分页查询任务记录，kind 为空时返回所有类型。
func (s *MongoTaskStore) List(ctx context.Context, kind models.TaskKind, page, limit int) ([]*models.TaskRecord, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "submitted_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "查询任务列表失败", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.TaskRecord
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "解析任务列表失败", err)
	}
	return tasks, nil
}

// UpdateStatus 更新任务的状态、结果与错误信息，并记录完成时间。
func (s *MongoTaskStore) UpdateStatus(ctx context.Context, id string, status models.TaskStatus, result any, errMsg string) error {
	set := bson.M{"status": status}
	if result != nil {
		set["result"] = result
	}
	if errMsg != "" {
		set["error"] = errMsg
	}
	switch status {
	case models.TaskStatusSuccess, models.TaskStatusFailure, models.TaskStatusRevoked:
		set["completed_at"] = time.Now()
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "更新任务记录失败", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "任务 %s 不存在", id)
	}
	return nil
}
