package middlewares

import (
	"context"

	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"
	t_token "social_network_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
	//TokenClaims parsed claims, set c.locals name
	TokenClaims = "claims"
)

// Resolver 驗證 token 並回傳 claims (含註銷與會員狀態檢查)
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*t_token.Claims, error)
}

// ExtractToken query > cookie > Authorization header
func ExtractToken(c *fiber.Ctx) string {
	if tokenStr := c.Query(QueryToken); tokenStr != "" {
		return tokenStr
	}
	if tokenStr := c.Cookies(CookieToken); tokenStr != "" {
		return tokenStr
	}
	return t_token.BearerToken(c.Get(fiber.HeaderAuthorization))
}

// JWTMiddleware 驗證失敗直接回 401，不會進到後面的 handler (包含 websocket upgrade)
func JWTMiddleware(resolver Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ExtractToken(c)
		if tokenStr == "" {
			return Reject(c, errprocess.New(errprocess.Authentication, "missing token"))
		}

		claims, err := resolver.Resolve(c.UserContext(), tokenStr)
		if err != nil {
			logger.Log.Warn("reject connection", zap.String("ip", c.IP()), zap.Error(err))
			return Reject(c, err)
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)
		c.Locals(TokenClaims, claims)

		return c.Next()
	}
}

// Reject 依錯誤分類回傳 status 與 {kind, error}
func Reject(c *fiber.Ctx, err error) error {
	kind := errprocess.KindOf(err)
	return c.Status(errprocess.HTTPStatus(kind)).JSON(errprocess.ToPayload(err))
}

// MemberID 取出 middleware 設定的 member id
func MemberID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenMemberID).(string)
	return id
}
