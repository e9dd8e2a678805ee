package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// Path prefixes always audited, even when no entity id can be inferred.
var alwaysAuditedPrefixes = []string{"/admin", "/finance", "/fees"}

// Recorder is the fire-and-forget audit middleware.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Middleware records mutating requests that completed with a 2xx status.
// Submission happens after the response is written; any failure is logged
// locally and swallowed.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action, mutating := actionForMethod(r.Method)
		if !mutating {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if recorder.status < 200 || recorder.status > 299 {
			return
		}
		entityType, entityID, ok := inferEntity(r)
		// Creates address no existing entity, so a missing id is expected
		// there. Updates and deletes without a resolvable id are skipped
		// unless the path is on the always-audited list.
		if !ok && action != ActionCreate && !alwaysAudited(r.URL.Path) {
			return
		}
		entry := Entry{
			ID:         uuid.NewString(),
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			Success:    true,
			IPAddress:  stripPort(r.RemoteAddr),
			UserAgent:  r.UserAgent(),
			OccurredAt: time.Now().UTC(),
			Metadata: map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": recorder.status,
			},
		}
		if id := shared.IdentityFromContext(r.Context()); id != nil {
			entry.ActorID = id.SubjectID
		}
		// The response is already on the wire; a dropped connection must
		// not cancel the audit write.
		if err := rec.sink.Submit(context.WithoutCancel(r.Context()), entry); err != nil && rec.logger != nil {
			rec.logger.Warn("audit submit failed",
				slog.String("entity", entry.EntityType),
				slog.String("action", entry.Action),
				slog.Any("error", err))
		}
	})
}

func actionForMethod(method string) (string, bool) {
	switch method {
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	default:
		return "", false
	}
}

// inferEntity derives the entity type from the first routed path segment and
// the entity id from the first path parameter.
func inferEntity(r *http.Request) (entityType, entityID string, ok bool) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", SentinelEntityID, false
	}
	entityType = segments[0]
	entityID = SentinelEntityID
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		params := routeCtx.URLParams
		for i := range params.Keys {
			if params.Keys[i] == "*" {
				continue
			}
			return entityType, params.Values[i], true
		}
	}
	return entityType, entityID, false
}

func alwaysAudited(path string) bool {
	for _, prefix := range alwaysAuditedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func stripPort(addr string) string {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 && !strings.HasSuffix(addr, "]") {
		return addr[:i]
	}
	return addr
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
