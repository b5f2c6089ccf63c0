// Package services holds the business rules: room resolution, the
// conversation assembler, authentication, profiles and the client catalog.
// This file centralizes the service-level error values and the kind each
// belongs to, so handlers can map them to HTTP results consistently.
package services

import "errors"

// Kind classifies a service error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Conversation errors.
var (
	// ErrRoomNotFound indicates the room does not exist or belongs to someone else.
	ErrRoomNotFound = errors.New("room not found")

	// ErrTurnNotFound is returned when a stored turn cannot be replayed.
	ErrTurnNotFound = errors.New("turn not found")

	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrQuestionTooLong is returned when a question exceeds the configured limit.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrCompletionUnavailable wraps any failure of the completion service.
	ErrCompletionUnavailable = errors.New("completion service unavailable")
)

// Auth errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotVerified        = errors.New("account is not verified")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidOTP         = errors.New("invalid one-time code")
	ErrOTPExpired         = errors.New("one-time code expired")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenExpired       = errors.New("reset token expired")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = errors.New("password too short")
	ErrSamePassword       = errors.New("new password must differ from the current one")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrInvalidLoginType   = errors.New("unsupported login type")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrInvalidUpload is returned for uploads the store rejects by type or size.
	ErrInvalidUpload = errors.New("invalid upload")
)

// Client catalog errors.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientDeleted  = errors.New("client is deleted")
)

var kinds = map[error]Kind{
	ErrRoomNotFound:          KindNotFound,
	ErrTurnNotFound:          KindNotFound,
	ErrEmptyQuestion:         KindBadRequest,
	ErrQuestionTooLong:       KindBadRequest,
	ErrCompletionUnavailable: KindServiceUnavailable,

	ErrEmailTaken:         KindConflict,
	ErrUserNotFound:       KindNotFound,
	ErrNotVerified:        KindBadRequest,
	ErrAlreadyVerified:    KindBadRequest,
	ErrInvalidCredentials: KindBadRequest,
	ErrInvalidOTP:         KindBadRequest,
	ErrOTPExpired:         KindBadRequest,
	ErrUnauthorized:       KindUnauthorized,
	ErrTokenExpired:       KindUnauthorized,
	ErrPasswordMismatch:   KindBadRequest,
	ErrWeakPassword:       KindBadRequest,
	ErrSamePassword:       KindBadRequest,
	ErrWrongPassword:      KindBadRequest,
	ErrInvalidLoginType:   KindBadRequest,
	ErrInvalidInput:       KindBadRequest,
	ErrInvalidUpload:      KindBadRequest,

	ErrClientNotFound: KindNotFound,
	ErrClientDeleted:  KindBadRequest,
}

// KindOf returns the kind of the first known sentinel in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	for sentinel, k := range kinds {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindInternal
}
