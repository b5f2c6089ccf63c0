package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions extends the built-in masking.
//
// MaskHeaders are header names (case-insensitive) whose values are replaced
// with "[REDACTED]", on top of Authorization, Cookie and Set-Cookie.
// MaskParams are query parameter names masked the same way, on top of
// token, otp, oneTimeCode and password.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-7][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex segments never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrub replaces ids, emails and phone numbers. UUIDs go first so the phone
// pattern cannot eat their digit runs.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func lowerSet(base []string, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				out[v] = struct{}{}
			}
		}
	}
	return out
}

// scrubQuery masks sensitive parameters by name and scrubs the decoded
// values of the rest. Pair order is kept.
func scrubQuery(raw string, masked map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	for i, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			name = k
		}
		if _, ok := masked[strings.ToLower(name)]; ok && found {
			pairs[i] = k + "=[REDACTED]"
			continue
		}
		if dec, err := url.QueryUnescape(v); err == nil {
			v = dec
		}
		if found {
			pairs[i] = k + "=" + scrub(v)
		} else {
			pairs[i] = scrub(k)
		}
	}
	return strings.Join(pairs, "&")
}

// RedactingLogger is the access log. It attaches a request-scoped logger
// carrying the request id (see LoggerFrom), never logs bodies, and scrubs
// headers and query strings before writing one line per request: info for
// 2xx/3xx, warn for 4xx, error for 5xx or when handlers recorded errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders)
	maskParams := lowerSet([]string{"token", "otp", "onetimecode", "password"}, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		attachLogger(c, log.With().Str("request_id", reqID).Logger())

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := truncate(scrubQuery(c.Request.URL.RawQuery, maskParams), maxQueryLogLength)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		lg := LoggerFrom(c)
		ev := lg.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = lg.Warn()
		}

		ev.
			Str("user_id", UserID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
