package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// maskedKeys are attribute keys and query parameter names that always carry
// credentials.
var maskedKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"passwd":              true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"apikey":              true,
	"access_token":        true,
	"refresh_token":       true,
	"id_token":            true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"sid":                 true,
	"jsessionid":          true,
	"phpsessid":           true,
	"code":                true,
	"state":               true,
	"sig":                 true,
	"signature":           true,
}

// maskedKeywords mask any key containing them.
var maskedKeywords = []string{"password", "passwd", "secret", "token", "auth", "credential", "cookie"}

// keepKeys are never masked even though they contain a keyword.
var keepKeys = map[string]bool{
	"has_cookie":    true,
	"has_setcookie": true,
	"author":        true,
}

var maskedValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// RedactingHandler wraps an slog.Handler and masks credentials in every
// attribute before the record reaches it.
type RedactingHandler struct {
	handler slog.Handler
}

// NewRedactingHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewRedactingHandler(handler slog.Handler) *RedactingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactingHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, g := range group {
			redacted[i] = redactAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isMaskedKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	if isMaskedValue(v) {
		return slog.String(a.Key, MaskValue)
	}
	if strings.Contains(v, "://") {
		return slog.String(a.Key, RedactURL(v))
	}
	return a
}

func isMaskedKey(key string) bool {
	k := strings.ToLower(key)
	if keepKeys[k] {
		return false
	}
	if maskedKeys[k] {
		return true
	}
	for _, kw := range maskedKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

func isMaskedValue(v string) bool {
	for _, p := range maskedValuePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

// RedactURL masks the password in the user info and the values of
// credential-like query parameters. Strings that do not parse are returned
// unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name, values := range q {
			if !isMaskedKey(name) {
				continue
			}
			for i := range values {
				values[i] = MaskValue
			}
			changed = true
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	if !changed {
		return raw
	}
	return u.String()
}

// Options configures New.
type Options struct {
	// Verbose lowers the level from Warn to Debug.
	Verbose bool
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
}

// Level returns the minimum level for o.
func (o Options) Level() slog.Level {
	if o.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New returns a redacting logger writing to w.
func New(w io.Writer, o Options) *slog.Logger {
	opts := &slog.HandlerOptions{Level: o.Level()}
	var h slog.Handler
	if o.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewRedactingHandler(h))
}
