package app

import (
	"context"
	"errors"
	"testing"
	"time"

	memberdomain "social_network_service/internal/member/domain"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_Resolve(t *testing.T) {
	ctx := context.Background()
	signer := token.NewSigner([]byte("secret"), "social", time.Hour)
	raw, claims, err := signer.GenerateJWT("m1", string(token.RoleUser))
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		revoked, directory := new(MockRedisRepository), new(MockDirectory)
		revoked.On("Exists", ctx, claims.ID).Return(false, nil)
		directory.On("FindProfile", ctx, "m1").Return(&memberdomain.Profile{ID: "m1"}, nil)

		got, err := NewAuthenticator(signer, revoked, directory).Resolve(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, "m1", got.MemberID)
		revoked.AssertExpectations(t)
		directory.AssertExpectations(t)
	})

	t.Run("missing or malformed", func(t *testing.T) {
		auth := NewAuthenticator(signer, new(MockRedisRepository), new(MockDirectory))

		_, err := auth.Resolve(ctx, "")
		assert.Equal(t, errprocess.Authentication, errprocess.KindOf(err))

		_, err = auth.Resolve(ctx, "not-a-jwt")
		assert.Equal(t, errprocess.Authentication, errprocess.KindOf(err))
	})

	t.Run("signed token without jti", func(t *testing.T) {
		noID := &token.Claims{
			MemberID: "m1",
			Role:     string(token.RoleUser),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noID).SignedString([]byte("secret"))
		require.NoError(t, err)

		revoked, directory := new(MockRedisRepository), new(MockDirectory)
		_, err = NewAuthenticator(signer, revoked, directory).Resolve(ctx, raw)
		assert.Equal(t, errprocess.Authentication, errprocess.KindOf(err))
		revoked.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
		directory.AssertNotCalled(t, "FindProfile", mock.Anything, mock.Anything)
	})

	t.Run("expired", func(t *testing.T) {
		expired := token.NewSigner([]byte("secret"), "social", time.Nanosecond)
		old, _, err := expired.GenerateJWT("m1", string(token.RoleUser))
		require.NoError(t, err)
		time.Sleep(time.Second)

		_, err = NewAuthenticator(signer, new(MockRedisRepository), new(MockDirectory)).Resolve(ctx, old)
		assert.Equal(t, errprocess.Authentication, errprocess.KindOf(err))
		assert.ErrorIs(t, err, token.ErrExpired)
	})

	t.Run("revoked", func(t *testing.T) {
		revoked, directory := new(MockRedisRepository), new(MockDirectory)
		revoked.On("Exists", ctx, claims.ID).Return(true, nil)

		_, err := NewAuthenticator(signer, revoked, directory).Resolve(ctx, raw)
		assert.Equal(t, errprocess.Authentication, errprocess.KindOf(err))
		directory.AssertNotCalled(t, "FindProfile", mock.Anything, mock.Anything)
	})

	t.Run("frozen member", func(t *testing.T) {
		revoked, directory := new(MockRedisRepository), new(MockDirectory)
		revoked.On("Exists", ctx, claims.ID).Return(false, nil)
		directory.On("FindProfile", ctx, "m1").Return(nil, errprocess.New(errprocess.NotFound, "member not found"))

		_, err := NewAuthenticator(signer, revoked, directory).Resolve(ctx, raw)
		assert.Equal(t, errprocess.Authentication, errprocess.KindOf(err))
	})

	t.Run("revocation store down", func(t *testing.T) {
		revoked := new(MockRedisRepository)
		revoked.On("Exists", ctx, claims.ID).Return(false, errors.New("dial tcp"))

		_, err := NewAuthenticator(signer, revoked, new(MockDirectory)).Resolve(ctx, raw)
		assert.Equal(t, errprocess.TransientStore, errprocess.KindOf(err))
	})
}

func TestAuthenticator_Revoke(t *testing.T) {
	ctx := context.Background()
	signer := token.NewSigner([]byte("secret"), "social", time.Hour)
	_, claims, err := signer.GenerateJWT("m1", string(token.RoleUser))
	require.NoError(t, err)

	revoked := new(MockRedisRepository)
	revoked.On("Set", ctx, claims.ID, "m1", mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 59*time.Minute && ttl <= time.Hour
	})).Return(nil).Once()

	require.NoError(t, NewAuthenticator(signer, revoked, new(MockDirectory)).Revoke(ctx, claims))
	revoked.AssertExpectations(t)

	err = NewAuthenticator(signer, revoked, new(MockDirectory)).Revoke(ctx, &token.Claims{MemberID: "m1"})
	assert.Equal(t, errprocess.Validation, errprocess.KindOf(err))
}
