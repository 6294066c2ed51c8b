package app

import (
	"context"
	"errors"
	"time"

	memberrepo "social_network_service/internal/member/repository"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/token"
)

// RevokedTokenPrefix redis key prefix of revoked jti
const RevokedTokenPrefix = "token:revoked:"

// Authenticator token -> 身份，連線進入 websocket 前執行
type Authenticator struct {
	signer    *token.Signer
	revoked   database.RedisRepository[string]
	directory memberrepo.Directory
}

// NewAuthenticator create Authenticator
func NewAuthenticator(signer *token.Signer, revoked database.RedisRepository[string], directory memberrepo.Directory) *Authenticator {
	return &Authenticator{
		signer:    signer,
		revoked:   revoked,
		directory: directory,
	}
}

// Resolve 驗證簽章/過期 -> 是否已註銷 -> 會員是否存在且未凍結
func (a *Authenticator) Resolve(ctx context.Context, raw string) (*token.Claims, error) {
	if raw == "" {
		return nil, errprocess.New(errprocess.Authentication, "missing token")
	}

	claims, err := a.signer.ParseJWT(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, errprocess.Wrap(errprocess.Authentication, "token expired", err)
		}
		return nil, errprocess.Wrap(errprocess.Authentication, "invalid token", err)
	}

	// 沒有 jti 的 token 無法註銷，不收
	if claims.ID == "" {
		return nil, errprocess.New(errprocess.Authentication, "token has no id")
	}
	revoked, err := a.revoked.Exists(ctx, claims.ID)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.TransientStore, "check token revocation", err)
	}
	if revoked {
		return nil, errprocess.New(errprocess.Authentication, "token revoked")
	}

	if _, err := a.directory.FindProfile(ctx, claims.MemberID); err != nil {
		if errprocess.Is(err, errprocess.NotFound) {
			return nil, errprocess.Wrap(errprocess.Authentication, "unknown member", err)
		}
		return nil, err
	}
	return claims, nil
}

// Revoke 記錄 jti 直到 token 過期
func (a *Authenticator) Revoke(ctx context.Context, claims *token.Claims) error {
	if claims == nil || claims.ID == "" {
		return errprocess.New(errprocess.Validation, "token has no id")
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	if err := a.revoked.Set(ctx, claims.ID, claims.MemberID, ttl); err != nil {
		return errprocess.Wrap(errprocess.TransientStore, "revoke token", err)
	}
	return nil
}
