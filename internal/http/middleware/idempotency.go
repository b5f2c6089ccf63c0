package middleware

// Idempotency-Key support for unsafe methods. The validator checks the
// header, stashes the key and, when a stored result exists for
// (user, route, key), marks the request as a replay so the handler can serve
// the stored result and the rate limiter lets it through. It runs after Auth.

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries a client-chosen key that stays the same across
// retries of one operation.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys; read them through the accessors below.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
	ctxKeyIdemRef    = "idem.ref"    // string: id of the stored result
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// ReplayRef returns the id of the stored result for a replayed request.
func ReplayRef(c *gin.Context) string {
	return c.GetString(ctxKeyIdemRef)
}

// IdempotencyOptions configures header validation behavior for
// IdempotencyValidator. TTL enforcement belongs to the lookup function.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 128, the
	// width of the stored column.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative RFC7230-like
	// token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether an unexpired result exists for
// (userID, scope, key) and returns its reference. Errors are treated as a
// miss so a broken store never blocks the request.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (ref string, exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present), stashes
// it in the request context, and checks for a prior completed request via the
// supplied lookup. When a replay is detected, it marks the context so
// downstream components can detect the replay via IsReplay and ReplayRef, and
// so the rate limiter lets it through.
//
// Behavior:
//   - If header is absent: the middleware is a no-op.
//   - If header fails validation: responds 400 with the error envelope.
//   - If there is no authenticated user, no lookup is attempted.
//
// Handlers stay in control of how a replay is served.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 128
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		c.Set(ctxKeyIdemKey, key)

		uid := UserID(c)
		if lookup != nil && uid != "" {
			ref, exists, err := lookup(c.Request.Context(), uid, c.FullPath(), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if exists && ref != "" {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemRef, ref)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
