package repository

import (
	"context"
	"time"

	"social_network_service/internal/chat/domain"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ChatRepository 聊天室存取
type ChatRepository interface {
	// FindDirectPage 找 1對1 聊天室並把 messages 切成一頁，不存在回傳 NotFound，不會建立
	FindDirectPage(ctx context.Context, pairKey string, page database.PageRequest) (*domain.Chat, int64, error)
	// AppendDirectMessage 以 pairKey upsert 並 $push 訊息，created 表示新建
	AppendDirectMessage(ctx context.Context, pairKey string, participants []string, msg domain.Message) (bool, error)
	CreateGroup(ctx context.Context, chat *domain.Chat) (*domain.Chat, error)
}

type chatRepository struct {
	repo *database.MongoRepository[domain.Chat]
}

// NewMongoChatRepository create new mongo chat
func NewMongoChatRepository(db *mongo.Database) ChatRepository {
	return &chatRepository{repo: database.NewMongoRepository[domain.Chat](db, domain.ChatCollection)}
}

// NewChatRepositoryWithCollection create ChatRepository on any collection (tests)
func NewChatRepositoryWithCollection(coll database.Collection) ChatRepository {
	return &chatRepository{repo: database.NewMongoRepositoryWithCollection[domain.Chat](coll, domain.ChatCollection)}
}

// ChatIndexes pairKey 與 roomId 都只在有值時 unique
func ChatIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetName("uniq_direct_pair").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"pairKey": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "roomId", Value: 1}},
			Options: options.Index().
				SetName("uniq_room_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"roomId": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}},
			Options: options.Index().SetName("participants"),
		},
	}
}

// EnsureChatIndexes 啟動時建立 chats 的 index
func EnsureChatIndexes(ctx context.Context, db *mongo.Database) error {
	return database.EnsureIndexes(ctx, db.Collection(domain.ChatCollection), ChatIndexes())
}

func directFilter(pairKey string) bson.M {
	return bson.M{
		"pairKey": pairKey,
		"group":   bson.M{"$exists": false},
	}
}

type chatPage struct {
	domain.Chat  `bson:",inline"`
	MessageCount int64 `bson:"messageCount"`
}

func (r *chatRepository) FindDirectPage(ctx context.Context, pairKey string, page database.PageRequest) (*domain.Chat, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: directFilter(pairKey)}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$addFields", Value: bson.M{
			"messageCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}},
		}}},
	}
	if !page.All {
		page = page.Normalize()
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: bson.M{
			"messages": bson.M{"$slice": bson.A{bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}, page.Skip(), page.Size}},
		}}})
	}

	pages, err := database.AggregateAs[domain.Chat, chatPage](ctx, r.repo, pipeline)
	if err != nil {
		return nil, 0, err
	}
	if len(pages) == 0 {
		return nil, 0, errprocess.New(errprocess.NotFound, "chat not found")
	}

	chat := pages[0].Chat
	if chat.Messages == nil {
		chat.Messages = []domain.Message{}
	}
	return &chat, pages[0].MessageCount, nil
}

func (r *chatRepository) AppendDirectMessage(ctx context.Context, pairKey string, participants []string, msg domain.Message) (bool, error) {
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$setOnInsert": bson.M{
			"participants": participants,
			"createdBy":    msg.CreatedBy,
			"createdAt":    time.Now().UTC(),
		},
	}

	res, err := r.repo.UpdateOne(ctx, directFilter(pairKey), update, database.Upsert())
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// 兩個第一則訊息同時 upsert，輸的那個重試一次就會變成 $push
		logger.Log.Debug("direct chat upsert raced, retry", zap.String("pairKey", pairKey))
		res, err = r.repo.UpdateOne(ctx, directFilter(pairKey), update, database.Upsert())
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// pairKey 已被凍結的聊天室佔用
			return false, errprocess.Wrap(errprocess.CreationFailure, "direct chat unavailable", err)
		}
		return false, err
	}
	return res.UpsertedID != nil, nil
}

func (r *chatRepository) CreateGroup(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	created, err := r.repo.Create(ctx, *chat)
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}
