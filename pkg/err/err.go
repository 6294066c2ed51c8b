package errprocess

import (
	"errors"
	"net/http"

	"social_network_service/pkg/logger"

	"go.uber.org/zap"
)

// Kind 錯誤分類，對應 HTTP status 與 custom-error 事件
type Kind string

const (
	// Authentication token missing, malformed, expired or revoked
	Authentication Kind = "authentication"
	// Authorization caller not allowed (e.g. recipient is not a friend)
	Authorization Kind = "authorization"
	// NotFound requested record does not exist or is frozen
	NotFound Kind = "not_found"
	// Validation request payload invalid
	Validation Kind = "validation"
	// CreationFailure store accepted the request but created nothing
	CreationFailure Kind = "creation_failure"
	// TransientStore database, cache or storage unavailable
	TransientStore Kind = "transient_store"
	// Internal anything else
	Internal Kind = "internal"
)

// AppError 帶分類的錯誤
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is two AppError are equal when kind and message match
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// New create an AppError without cause
func New(kind Kind, msg string) error {
	return &AppError{Kind: kind, Message: msg}
}

// Wrap create an AppError with cause
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: msg, Err: err}
}

// KindOf return the first AppError kind in the chain, Internal if none
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Is check err chain have an AppError of kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus map kind to http status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Validation, CreationFailure:
		return http.StatusBadRequest
	case TransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Payload body for http errors and custom-error events
type Payload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
}

// ToPayload 轉成回傳給前端的格式，Internal 不外露細節
func ToPayload(err error) Payload {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind == Internal {
		return Payload{Kind: Internal, Message: "internal error"}
	}
	if appErr.Message == "" {
		return Payload{Kind: appErr.Kind, Message: appErr.Error()}
	}
	return Payload{Kind: appErr.Kind, Message: appErr.Message}
}

// Log 記錄錯誤並原樣回傳
func Log(msg string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	fields = append(fields, zap.String("kind", string(KindOf(err))), zap.Error(err))
	if KindOf(err) == TransientStore || KindOf(err) == Internal {
		logger.Log.Error(msg, fields...)
	} else {
		logger.Log.Warn(msg, fields...)
	}
	return err
}
