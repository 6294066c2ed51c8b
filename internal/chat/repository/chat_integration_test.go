package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"social_network_service/internal/chat/domain"
	"social_network_service/pkg/database"
	"social_network_service/pkg/logger"
	testtool "social_network_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
)

func TestChatRepository_Integration(t *testing.T) {
	logger.SetNewNop()
	host, port := testtool.RequireContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", host, port),
		RetryCount:    5,
		RetryInterval: time.Second,
	}, "test_chat")
	require.NoError(t, err)
	defer db.Close(ctx)
	require.NoError(t, EnsureChatIndexes(ctx, db.Database))

	repo := NewMongoChatRepository(db.Database)
	chats := db.Database.Collection(domain.ChatCollection)
	key := domain.PairKey("a", "b")

	t.Run("first message creates, second appends", func(t *testing.T) {
		created, err := repo.AppendDirectMessage(ctx, key, []string{"a", "b"}, domain.NewMessage("hi", "a", time.Now()))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.AppendDirectMessage(ctx, key, []string{"b", "a"}, domain.NewMessage("hi", "b", time.Now()))
		require.NoError(t, err)
		assert.False(t, created)

		n, err := chats.CountDocuments(ctx, bson.M{"pairKey": key})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		chat, count, err := repo.FindDirectPage(ctx, key, database.PageRequest{All: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		require.Len(t, chat.Messages, 2)
		assert.Equal(t, "a", chat.Messages[0].CreatedBy)
		assert.Equal(t, []string{"a", "b"}, chat.Participants)
		assert.Equal(t, int64(2), chat.Version)
	})

	t.Run("concurrent first messages keep one chat", func(t *testing.T) {
		raceKey := domain.PairKey("c", "d")
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.AppendDirectMessage(ctx, raceKey, []string{"c", "d"}, domain.NewMessage(fmt.Sprintf("m%d", i), "c", time.Now()))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		n, err := chats.CountDocuments(ctx, bson.M{"pairKey": raceKey})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, count, err := repo.FindDirectPage(ctx, raceKey, database.PageRequest{All: true})
		require.NoError(t, err)
		assert.Equal(t, int64(8), count)
	})

	t.Run("message page", func(t *testing.T) {
		pageKey := domain.PairKey("e", "f")
		for i := 0; i < 12; i++ {
			_, err := repo.AppendDirectMessage(ctx, pageKey, []string{"e", "f"}, domain.NewMessage(fmt.Sprintf("m%d", i), "e", time.Now()))
			require.NoError(t, err)
		}

		chat, count, err := repo.FindDirectPage(ctx, pageKey, database.PageRequest{Page: 2, Size: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(12), count)
		require.Len(t, chat.Messages, 5)
		assert.Equal(t, "m5", chat.Messages[0].Content)
	})

	t.Run("group chats do not match direct lookups", func(t *testing.T) {
		group := domain.NewGroupChat("a and b", domain.NewRoomID("a and b"), "", "a", []string{"b"})
		_, err := repo.CreateGroup(ctx, group)
		require.NoError(t, err)

		_, _, err = repo.FindDirectPage(ctx, domain.PairKey("x", "y"), database.PageRequest{All: true})
		assert.Error(t, err)
	})
}
