package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"
	testtool "social_network_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresDirectory(t *testing.T) {
	logger.SetNewNop()
	host, port := testtool.RequireContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "social",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	})

	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    fmt.Sprintf("postgres://test:test@%s:%s/social?sslmode=disable", host, port),
		RetryCount:    5,
		RetryInterval: 1,
	})
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = pool.Exec(ctx, PostgresSchema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO member (id, first_name, last_name, email) VALUES
			('a', 'Ann', 'A', 'a@x.io'), ('b', 'Bob', 'B', 'b@x.io'), ('c', 'Cid', 'C', 'c@x.io');
		INSERT INTO member (id, first_name, email, freezed_at) VALUES ('z', 'Zed', 'z@x.io', now());
		INSERT INTO member_friend (member_id, friend_id) VALUES ('a', 'b'), ('b', 'a'), ('z', 'a');`)
	require.NoError(t, err)

	dir := NewPostgresDirectory(pool)

	p, err := dir.FindProfile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Ann A", p.UserName())

	_, err = dir.FindProfile(ctx, "z")
	assert.Equal(t, errprocess.NotFound, errprocess.KindOf(err))

	ok, err := dir.IsFriend(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.IsFriend(ctx, "a", "c")
	require.NoError(t, err)
	assert.False(t, ok)

	// z 已凍結不算
	n, err := dir.CountFriends(ctx, "a", []string{"b", "c", "z"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	profiles, err := dir.FindProfiles(ctx, []string{"c", "a", "z"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "c", profiles[0].ID)
}
