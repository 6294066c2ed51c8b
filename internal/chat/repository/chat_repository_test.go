package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"social_network_service/internal/chat/domain"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"
	testtool "social_network_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func directScope(pairKey string) bson.M {
	return bson.M{
		"pairKey":   pairKey,
		"group":     bson.M{"$exists": false},
		"freezedAt": bson.M{"$exists": false},
	}
}

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
}

func TestChatRepository_AppendDirectMessage(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	msg := domain.NewMessage("hi", "a", time.Now())
	pushesMessage := mock.MatchedBy(func(update bson.M) bool {
		push, ok := update["$push"].(bson.M)
		if !ok {
			return false
		}
		_, bumped := update["$inc"]
		return push["messages"] == msg && bumped
	})

	t.Run("first message creates the chat", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		coll.On("UpdateOne", ctx, directScope("a:b"), pushesMessage).
			Return(&mongo.UpdateResult{UpsertedCount: 1, UpsertedID: primitive.NewObjectID()}, nil).Once()

		created, err := NewChatRepositoryWithCollection(coll).AppendDirectMessage(ctx, "a:b", []string{"a", "b"}, msg)
		require.NoError(t, err)
		assert.True(t, created)
		coll.AssertExpectations(t)
	})

	t.Run("later message appends", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		coll.On("UpdateOne", ctx, directScope("a:b"), pushesMessage).
			Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()

		created, err := NewChatRepositoryWithCollection(coll).AppendDirectMessage(ctx, "a:b", []string{"a", "b"}, msg)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("concurrent first message retries once", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		coll.On("UpdateOne", ctx, directScope("a:b"), pushesMessage).Return(nil, duplicateKeyErr()).Once()
		coll.On("UpdateOne", ctx, directScope("a:b"), pushesMessage).
			Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()

		created, err := NewChatRepositoryWithCollection(coll).AppendDirectMessage(ctx, "a:b", []string{"a", "b"}, msg)
		require.NoError(t, err)
		assert.False(t, created)
		coll.AssertNumberOfCalls(t, "UpdateOne", 2)
	})

	t.Run("pair held by frozen chat", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		coll.On("UpdateOne", ctx, directScope("a:b"), pushesMessage).Return(nil, duplicateKeyErr()).Twice()

		_, err := NewChatRepositoryWithCollection(coll).AppendDirectMessage(ctx, "a:b", []string{"a", "b"}, msg)
		assert.Equal(t, errprocess.CreationFailure, errprocess.KindOf(err))
	})

	t.Run("store failure", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		coll.On("UpdateOne", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		_, err := NewChatRepositoryWithCollection(coll).AppendDirectMessage(ctx, "a:b", []string{"a", "b"}, msg)
		assert.Equal(t, errprocess.TransientStore, errprocess.KindOf(err))
	})
}

func TestChatRepository_FindDirectPage(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	id := primitive.NewObjectID()

	stages := func(n int) interface{} {
		return mock.MatchedBy(func(p mongo.Pipeline) bool { return len(p) == n })
	}

	t.Run("page slices messages", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		cur, err := mongo.NewCursorFromDocuments([]interface{}{bson.M{
			"_id":          id,
			"participants": bson.A{"a", "b"},
			"pairKey":      "a:b",
			"messages":     bson.A{bson.M{"id": "m6", "content": "six", "createdBy": "a"}},
			"messageCount": int64(12),
		}}, nil, nil)
		require.NoError(t, err)
		// scope $match + $match + $limit + 2 x $addFields
		coll.On("Aggregate", ctx, stages(5)).Return(cur, nil).Once()

		chat, count, err := NewChatRepositoryWithCollection(coll).FindDirectPage(ctx, "a:b", database.PageRequest{Page: 2, Size: 5})
		require.NoError(t, err)
		assert.Equal(t, id, chat.ID)
		assert.Equal(t, int64(12), count)
		require.Len(t, chat.Messages, 1)
		assert.Equal(t, "six", chat.Messages[0].Content)
		coll.AssertExpectations(t)
	})

	t.Run("all keeps every message", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		cur, err := mongo.NewCursorFromDocuments([]interface{}{bson.M{"_id": id, "messageCount": int64(0)}}, nil, nil)
		require.NoError(t, err)
		coll.On("Aggregate", ctx, stages(4)).Return(cur, nil).Once()

		chat, _, err := NewChatRepositoryWithCollection(coll).FindDirectPage(ctx, "a:b", database.PageRequest{All: true})
		require.NoError(t, err)
		assert.NotNil(t, chat.Messages)
		coll.AssertExpectations(t)
	})

	t.Run("missing chat is not created", func(t *testing.T) {
		coll := new(testtool.MockCollection)
		cur, err := mongo.NewCursorFromDocuments([]interface{}{}, nil, nil)
		require.NoError(t, err)
		coll.On("Aggregate", ctx, mock.Anything).Return(cur, nil).Once()

		_, _, err = NewChatRepositoryWithCollection(coll).FindDirectPage(ctx, "a:b", database.PageRequest{All: true})
		assert.Equal(t, errprocess.NotFound, errprocess.KindOf(err))
		coll.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
		coll.AssertNotCalled(t, "InsertMany", mock.Anything, mock.Anything)
	})
}

func TestChatRepository_CreateGroup(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	id := primitive.NewObjectID()

	coll := new(testtool.MockCollection)
	coll.On("InsertMany", ctx, mock.Anything).Return(&mongo.InsertManyResult{InsertedIDs: []interface{}{id}}, nil).Once()

	chat, err := NewChatRepositoryWithCollection(coll).CreateGroup(ctx, domain.NewGroupChat("crew", "crew_x", "", "me", []string{"p1"}))
	require.NoError(t, err)
	assert.Equal(t, id, chat.ID)
	assert.False(t, chat.CreatedAt.IsZero())

	coll = new(testtool.MockCollection)
	coll.On("InsertMany", ctx, mock.Anything).Return(&mongo.InsertManyResult{}, nil).Once()
	_, err = NewChatRepositoryWithCollection(coll).CreateGroup(ctx, domain.NewGroupChat("crew", "crew_y", "", "me", []string{"p1"}))
	assert.ErrorIs(t, err, database.ErrCreateFailed)
}
