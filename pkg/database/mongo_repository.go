package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	errprocess "social_network_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// FreezedAtField soft-delete 標記欄位
	FreezedAtField = "freezedAt"
	// VersionField 每次更新自動 +1
	VersionField = "version"
	// UpdatedAtField 每次更新自動寫入
	UpdatedAtField = "updatedAt"
)

var (
	// ErrNoDocument 查無資料
	ErrNoDocument = errprocess.New(errprocess.NotFound, "document not found")
	// ErrCreateFailed insert 回傳 0 筆
	ErrCreateFailed = errprocess.New(errprocess.CreationFailure, "failed to create document")
	// ErrVersionManaged 呼叫端不可自行設定 version
	ErrVersionManaged = errprocess.New(errprocess.Validation, "version is managed by the repository")
	// ErrUnsupportedUpdate update 不是 document 也不是 pipeline
	ErrUnsupportedUpdate = errprocess.New(errprocess.Validation, "unsupported update form")
)

// Collection mongo.Collection 用到的子集，測試時可替換
type Collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	FindOneAndDelete(ctx context.Context, filter interface{}, opts ...*options.FindOneAndDeleteOptions) *mongo.SingleResult
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

// Creatable documents stamped before insert
type Creatable interface {
	BeforeCreate(now time.Time)
}

// Identifiable documents receiving the generated _id after insert
type Identifiable interface {
	SetObjectID(id primitive.ObjectID)
}

// MongoRepository 通用 CRUD，所有查詢與更新都會排除 freezedAt 的資料
type MongoRepository[T any] struct {
	coll Collection
	name string
	now  func() time.Time
}

// NewMongoRepository create a generic repository on db.Collection(name)
func NewMongoRepository[T any](db *mongo.Database, name string) *MongoRepository[T] {
	return NewMongoRepositoryWithCollection[T](db.Collection(name), name)
}

// NewMongoRepositoryWithCollection create a generic repository on any Collection
func NewMongoRepositoryWithCollection[T any](coll Collection, name string) *MongoRepository[T] {
	return &MongoRepository[T]{coll: coll, name: name, now: time.Now}
}

// Name collection name
func (r *MongoRepository[T]) Name() string {
	return r.name
}

// queryOptions 共用的查詢參數
type queryOptions struct {
	projection interface{}
	sort       interface{}
	skip       *int64
	limit      *int64
	unscoped   bool
	upsert     bool
}

// QueryOption 查詢參數
type QueryOption func(*queryOptions)

// WithProjection select fields
func WithProjection(p interface{}) QueryOption {
	return func(o *queryOptions) { o.projection = p }
}

// WithSort sort result
func WithSort(s interface{}) QueryOption {
	return func(o *queryOptions) { o.sort = s }
}

// WithSkip skip n documents
func WithSkip(n int64) QueryOption {
	return func(o *queryOptions) { o.skip = &n }
}

// WithLimit limit n documents
func WithLimit(n int64) QueryOption {
	return func(o *queryOptions) { o.limit = &n }
}

// Unscoped include frozen documents
func Unscoped() QueryOption {
	return func(o *queryOptions) { o.unscoped = true }
}

// Upsert insert when nothing matched (UpdateOne / FindOneAndUpdate)
func Upsert() QueryOption {
	return func(o *queryOptions) { o.upsert = true }
}

func buildOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// scope 加上 soft-delete 條件
func (r *MongoRepository[T]) scope(filter bson.M, o queryOptions) bson.M {
	if filter == nil {
		filter = bson.M{}
	}
	if o.unscoped {
		return filter
	}
	notFrozen := bson.M{FreezedAtField: bson.M{"$exists": false}}
	if _, ok := filter[FreezedAtField]; ok {
		return bson.M{"$and": bson.A{filter, notFrozen}}
	}
	scoped := make(bson.M, len(filter)+1)
	for k, v := range filter {
		scoped[k] = v
	}
	scoped[FreezedAtField] = notFrozen[FreezedAtField]
	return scoped
}

func storeErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoDocument
	}
	return errprocess.Wrap(errprocess.TransientStore, op, err)
}

// FindOne 查單筆
func (r *MongoRepository[T]) FindOne(ctx context.Context, filter bson.M, opts ...QueryOption) (*T, error) {
	o := buildOptions(opts)
	findOpts := options.FindOne()
	if o.projection != nil {
		findOpts.SetProjection(o.projection)
	}
	if o.sort != nil {
		findOpts.SetSort(o.sort)
	}
	if o.skip != nil {
		findOpts.SetSkip(*o.skip)
	}

	var doc T
	if err := r.coll.FindOne(ctx, r.scope(filter, o), findOpts).Decode(&doc); err != nil {
		return nil, storeErr(fmt.Sprintf("find one %s", r.name), err)
	}
	return &doc, nil
}

// FindByID 以 ObjectID hex 查單筆
func (r *MongoRepository[T]) FindByID(ctx context.Context, id string, opts ...QueryOption) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Validation, "invalid id", err)
	}
	return r.FindOne(ctx, bson.M{"_id": oid}, opts...)
}

// Find 查多筆
func (r *MongoRepository[T]) Find(ctx context.Context, filter bson.M, opts ...QueryOption) ([]T, error) {
	o := buildOptions(opts)
	findOpts := options.Find()
	if o.projection != nil {
		findOpts.SetProjection(o.projection)
	}
	if o.sort != nil {
		findOpts.SetSort(o.sort)
	}
	if o.skip != nil {
		findOpts.SetSkip(*o.skip)
	}
	if o.limit != nil {
		findOpts.SetLimit(*o.limit)
	}

	cursor, err := r.coll.Find(ctx, r.scope(filter, o), findOpts)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("find %s", r.name), err)
	}
	defer cursor.Close(ctx)

	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr(fmt.Sprintf("decode %s", r.name), err)
	}
	return docs, nil
}

// Count 計算符合條件的數量
func (r *MongoRepository[T]) Count(ctx context.Context, filter bson.M, opts ...QueryOption) (int64, error) {
	o := buildOptions(opts)
	n, err := r.coll.CountDocuments(ctx, r.scope(filter, o))
	if err != nil {
		return 0, storeErr(fmt.Sprintf("count %s", r.name), err)
	}
	return n, nil
}

// Paginate 分頁查詢，All 時不做 count
func (r *MongoRepository[T]) Paginate(ctx context.Context, filter bson.M, page PageRequest, opts ...QueryOption) (*Paginated[T], error) {
	if page.All {
		docs, err := r.Find(ctx, filter, opts...)
		if err != nil {
			return nil, err
		}
		return NewPaginated(docs, 0, page), nil
	}

	page = page.Normalize()
	docs, err := r.Find(ctx, filter, append(opts, WithSkip(page.Skip()), WithLimit(page.Size))...)
	if err != nil {
		return nil, err
	}
	count, err := r.Count(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return NewPaginated(docs, count, page), nil
}

// Create 新增多筆並回傳帶 _id 的資料
func (r *MongoRepository[T]) Create(ctx context.Context, docs ...T) ([]T, error) {
	if len(docs) == 0 {
		return nil, ErrCreateFailed
	}

	now := r.now().UTC()
	payload := make([]interface{}, len(docs))
	for i := range docs {
		if c, ok := any(&docs[i]).(Creatable); ok {
			c.BeforeCreate(now)
		}
		payload[i] = docs[i]
	}

	res, err := r.coll.InsertMany(ctx, payload)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.CreationFailure, fmt.Sprintf("insert %s", r.name), err)
	}
	if res == nil || len(res.InsertedIDs) == 0 {
		return nil, ErrCreateFailed
	}

	for i, id := range res.InsertedIDs {
		oid, ok := id.(primitive.ObjectID)
		if !ok || i >= len(docs) {
			continue
		}
		if s, ok := any(&docs[i]).(Identifiable); ok {
			s.SetObjectID(oid)
		}
	}
	return docs, nil
}

// UpdateResult 更新結果，0 筆符合不是錯誤
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID interface{}
}

// UpdateOne 更新單筆，自動 version +1
func (r *MongoRepository[T]) UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...QueryOption) (*UpdateResult, error) {
	o := buildOptions(opts)
	versioned, err := withVersionBump(update)
	if err != nil {
		return nil, err
	}

	res, err := r.coll.UpdateOne(ctx, r.scope(filter, o), versioned, options.Update().SetUpsert(o.upsert))
	if err != nil {
		return nil, storeErr(fmt.Sprintf("update %s", r.name), err)
	}
	return &UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount, UpsertedID: res.UpsertedID}, nil
}

// UpdateMany 更新多筆，自動 version +1
func (r *MongoRepository[T]) UpdateMany(ctx context.Context, filter bson.M, update interface{}, opts ...QueryOption) (*UpdateResult, error) {
	o := buildOptions(opts)
	versioned, err := withVersionBump(update)
	if err != nil {
		return nil, err
	}

	res, err := r.coll.UpdateMany(ctx, r.scope(filter, o), versioned)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("update many %s", r.name), err)
	}
	return &UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// FindOneAndUpdate 更新單筆並回傳更新後的資料
func (r *MongoRepository[T]) FindOneAndUpdate(ctx context.Context, filter bson.M, update interface{}, opts ...QueryOption) (*T, error) {
	o := buildOptions(opts)
	versioned, err := withVersionBump(update)
	if err != nil {
		return nil, err
	}

	updateOpts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(o.upsert)
	if o.projection != nil {
		updateOpts.SetProjection(o.projection)
	}

	var doc T
	if err := r.coll.FindOneAndUpdate(ctx, r.scope(filter, o), versioned, updateOpts).Decode(&doc); err != nil {
		return nil, storeErr(fmt.Sprintf("find one and update %s", r.name), err)
	}
	return &doc, nil
}

// FindByIDAndUpdate 以 ObjectID hex 更新單筆
func (r *MongoRepository[T]) FindByIDAndUpdate(ctx context.Context, id string, update interface{}, opts ...QueryOption) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Validation, "invalid id", err)
	}
	return r.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts...)
}

// DeleteOne 硬刪除單筆
func (r *MongoRepository[T]) DeleteOne(ctx context.Context, filter bson.M, opts ...QueryOption) (int64, error) {
	o := buildOptions(opts)
	res, err := r.coll.DeleteOne(ctx, r.scope(filter, o))
	if err != nil {
		return 0, storeErr(fmt.Sprintf("delete %s", r.name), err)
	}
	return res.DeletedCount, nil
}

// DeleteMany 硬刪除多筆
func (r *MongoRepository[T]) DeleteMany(ctx context.Context, filter bson.M, opts ...QueryOption) (int64, error) {
	o := buildOptions(opts)
	res, err := r.coll.DeleteMany(ctx, r.scope(filter, o))
	if err != nil {
		return 0, storeErr(fmt.Sprintf("delete many %s", r.name), err)
	}
	return res.DeletedCount, nil
}

// FindOneAndDelete 硬刪除單筆並回傳被刪除的資料
func (r *MongoRepository[T]) FindOneAndDelete(ctx context.Context, filter bson.M, opts ...QueryOption) (*T, error) {
	o := buildOptions(opts)
	var doc T
	if err := r.coll.FindOneAndDelete(ctx, r.scope(filter, o)).Decode(&doc); err != nil {
		return nil, storeErr(fmt.Sprintf("find one and delete %s", r.name), err)
	}
	return &doc, nil
}

// Aggregate pipeline 前面會先加上 soft-delete $match
func (r *MongoRepository[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline, opts ...QueryOption) ([]T, error) {
	return AggregateAs[T, T](ctx, r, pipeline, opts...)
}

// AggregateAs 跑 aggregate 並 decode 成 R
func AggregateAs[T any, R any](ctx context.Context, r *MongoRepository[T], pipeline mongo.Pipeline, opts ...QueryOption) ([]R, error) {
	o := buildOptions(opts)
	stages := pipeline
	if !o.unscoped {
		stages = append(mongo.Pipeline{{{Key: "$match", Value: r.scope(nil, o)}}}, pipeline...)
	}

	cursor, err := r.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("aggregate %s", r.name), err)
	}
	defer cursor.Close(ctx)

	out := []R{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr(fmt.Sprintf("decode aggregate %s", r.name), err)
	}
	return out, nil
}
