package middlewares

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"
	t_token "social_network_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, raw string) (*t_token.Claims, error) {
	args := m.Called(raw)
	if args.Get(0) != nil {
		return args.Get(0).(*t_token.Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

func newApp(r Resolver) *fiber.App {
	app := fiber.New()
	app.Use(JWTMiddleware(r))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(MemberID(c))
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	logger.SetNewNop()

	t.Run("query token", func(t *testing.T) {
		r := new(mockResolver)
		r.On("Resolve", "good").Return(&t_token.Claims{MemberID: "u1"}, nil)

		resp, err := newApp(r).Test(httptest.NewRequest("GET", "/me?auth=good", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		r.AssertExpectations(t)
	})

	t.Run("bearer header", func(t *testing.T) {
		r := new(mockResolver)
		r.On("Resolve", "hdr").Return(&t_token.Claims{MemberID: "u2"}, nil)

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer hdr")
		resp, err := newApp(r).Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		r := new(mockResolver)
		resp, err := newApp(r).Test(httptest.NewRequest("GET", "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		var body errprocess.Payload
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, errprocess.Authentication, body.Kind)
		r.AssertNotCalled(t, "Resolve", mock.Anything)
	})

	t.Run("revoked token", func(t *testing.T) {
		r := new(mockResolver)
		r.On("Resolve", "revoked").Return(nil, errprocess.New(errprocess.Authentication, "token revoked"))

		resp, err := newApp(r).Test(httptest.NewRequest("GET", "/me?auth=revoked", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
