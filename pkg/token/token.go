package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleType set member role
type RoleType string

// RoleUser is the user role
const RoleUser RoleType = "user"

var (
	// ErrExpired token 過期
	ErrExpired = errors.New("token expired")
	// ErrInvalid token 格式或簽章錯誤
	ErrInvalid = errors.New("invalid token")
)

// Claims structure for custom claims in JWT
type Claims struct {
	MemberID string `json:"user_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Signer 簽發與驗證 HS256 token
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSigner create Signer, ttl <= 0 時預設 60 分鐘
func NewSigner(secret []byte, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &Signer{secret: secret, issuer: issuer, ttl: ttl}
}

// GenerateJWT generates a JWT token, jti 用於註銷
func (s *Signer) GenerateJWT(memberID, role string) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		MemberID: memberID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   memberID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseJWT parses a JWT and extracts the Claims
func (s *Signer) ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MemberID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// BearerToken 取出 "Bearer xxx" 的 token，格式不符回傳空字串
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
