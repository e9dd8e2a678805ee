package sanitize

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sekolah-digital/sekolah-api/internal/payload"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// Middleware rewrites JSON bodies and query strings in place, running
// SanitizeString over every string leaf. Unlike the injection guard it never
// rejects; it only transforms.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "" {
				r.URL.RawQuery = sanitizeRawQuery(r.URL.RawQuery)
			}
			if err := sanitizeBody(r); err != nil {
				shared.WriteError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return shared.ErrInternal(err)
	}
	_ = r.Body.Close()

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		r.Body = io.NopCloser(bytes.NewReader(data))
		return nil
	}
	doc, err := payload.DecodeBytes(trimmed)
	if err != nil {
		// Leave malformed bodies for the handler's decoder to report.
		r.Body = io.NopCloser(bytes.NewReader(data))
		return nil
	}
	clean, err := payload.Transform(doc, SanitizeString).MarshalJSON()
	if err != nil {
		return shared.ErrInternal(err)
	}
	r.Body = io.NopCloser(bytes.NewReader(clean))
	r.ContentLength = int64(len(clean))
	return nil
}

// sanitizeRawQuery rebuilds the query string pair by pair, keeping wire
// order. Keys pass through untouched; only values are sanitized.
func sanitizeRawQuery(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	out := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, value, hasValue := strings.Cut(pair, "=")
		if !hasValue {
			out = append(out, key)
			continue
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			out = append(out, pair)
			continue
		}
		out = append(out, key+"="+url.QueryEscape(SanitizeString(decoded)))
	}
	return strings.Join(out, "&")
}
