package sqlguard

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah-digital/sekolah-api/internal/payload"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// Guard is the SQL-injection middleware. It is a pure gate: on a clean scan
// the request passes through byte-for-byte unmodified.
type Guard struct {
	logger  *slog.Logger
	onMatch func(source string)
}

// NewGuard constructs a Guard. onMatch, when non-nil, is invoked with the
// request source ("body", "query", "params") for every detection, feeding the
// false-positive metric.
func NewGuard(logger *slog.Logger, onMatch func(source string)) *Guard {
	return &Guard{logger: logger, onMatch: onMatch}
}

// Middleware scans body, query string and chi path parameters independently
// and rejects on the first suspicious leaf. Mount it inside routed groups so
// path parameters are populated.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path, ok := g.scanQuery(r.URL.RawQuery); ok {
			g.reject(w, r, "query", path)
			return
		}
		if path, ok := g.scanParams(r); ok {
			g.reject(w, r, "params", path)
			return
		}
		if path, ok, err := g.scanBody(r); err != nil {
			shared.WriteError(w, g.logger, err)
			return
		} else if ok {
			g.reject(w, r, "body", path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, source, fieldPath string) {
	if g.onMatch != nil {
		g.onMatch(source)
	}
	if g.logger != nil {
		// The offending value is deliberately not logged.
		g.logger.Warn("suspicious input rejected",
			slog.String("source", source),
			slog.String("field", fieldPath),
			slog.String("path", r.URL.Path))
	}
	shared.WriteError(w, g.logger, shared.ErrSuspiciousInput(fieldPath))
}

// scanQuery walks query pairs in the order they appear on the wire.
func (g *Guard) scanQuery(rawQuery string) (string, bool) {
	if rawQuery == "" {
		return "", false
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}
		if IsSuspicious(decodedValue) || IsSuspicious(decodedKey) {
			return decodedKey, true
		}
	}
	return "", false
}

// scanParams covers path parameters. Params matched by outer routers are
// read by name from the route context; the current router has not matched
// yet when a group middleware runs, so raw path segments are scanned too.
func (g *Guard) scanParams(r *http.Request) (string, bool) {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		params := routeCtx.URLParams
		for i := range params.Keys {
			if params.Keys[i] == "*" {
				continue
			}
			if IsSuspicious(params.Values[i]) {
				return params.Keys[i], true
			}
		}
	}
	for _, segment := range strings.Split(strings.Trim(r.URL.Path, "/"), "/") {
		if IsSuspicious(segment) {
			return "path", true
		}
	}
	return "", false
}

// scanBody decodes a JSON body and scans every string leaf, then restores the
// original bytes so downstream stages read an untouched body.
func (g *Guard) scanBody(r *http.Request) (string, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false, nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return "", false, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false, shared.ErrInternal(err)
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", false, nil
	}
	doc, err := payload.DecodeBytes(trimmed)
	if err != nil {
		// Malformed JSON is the handler's problem, not an injection.
		return "", false, nil
	}
	path, ok := payload.Scan(doc, "", IsSuspicious)
	return path, ok, nil
}
