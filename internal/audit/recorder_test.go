package audit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-digital/sekolah-api/internal/audit"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

type collectorSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (s *collectorSink) Submit(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *collectorSink) all() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

func newAuditedRouter(sink audit.Sink, status int) chi.Router {
	rec := audit.NewRecorder(sink, nil)
	r := chi.NewRouter()
	r.Use(rec.Middleware)
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
	r.Post("/documents", handler)
	r.Put("/documents/{documentId}", handler)
	r.Delete("/documents/{documentId}", handler)
	r.Get("/documents/{documentId}", handler)
	r.Post("/finance/reports", handler)
	r.Put("/finance/settings", handler)
	r.Put("/settings", handler)
	return r
}

func send(t *testing.T, router chi.Router, method, target string, id *shared.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.9:5544"
	req.Header.Set("User-Agent", "sekolah-test")
	if id != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), id))
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestRecorderCapturesMutations(t *testing.T) {
	sink := &collectorSink{}
	router := newAuditedRouter(sink, http.StatusOK)
	actor := &shared.Identity{SubjectID: 42, Role: shared.RoleClassTeacher}

	send(t, router, http.MethodPut, "/documents/15", actor)
	entries := sink.all()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.NoError(t, uuid.Validate(entry.ID))
	assert.Equal(t, int64(42), entry.ActorID)
	assert.Equal(t, "documents", entry.EntityType)
	assert.Equal(t, "15", entry.EntityID)
	assert.Equal(t, audit.ActionUpdate, entry.Action)
	assert.True(t, entry.Success)
	assert.Equal(t, "10.0.0.9", entry.IPAddress)
	assert.Equal(t, "sekolah-test", entry.UserAgent)
	assert.False(t, entry.OccurredAt.IsZero())
	assert.Equal(t, http.MethodPut, entry.Metadata["method"])
}

func TestRecorderActionPerMethod(t *testing.T) {
	sink := &collectorSink{}
	router := newAuditedRouter(sink, http.StatusOK)

	send(t, router, http.MethodPost, "/documents", nil)
	send(t, router, http.MethodDelete, "/documents/3", nil)
	entries := sink.all()
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
	assert.Equal(t, audit.ActionDelete, entries[1].Action)
}

func TestRecorderSkipsReadsAndFailures(t *testing.T) {
	t.Run("reads are not recorded", func(t *testing.T) {
		sink := &collectorSink{}
		router := newAuditedRouter(sink, http.StatusOK)
		send(t, router, http.MethodGet, "/documents/3", nil)
		assert.Empty(t, sink.all())
	})

	t.Run("failed mutations are not recorded", func(t *testing.T) {
		sink := &collectorSink{}
		router := newAuditedRouter(sink, http.StatusForbidden)
		send(t, router, http.MethodPost, "/documents", nil)
		assert.Empty(t, sink.all())
	})
}

func TestRecorderCreatesUseSentinelID(t *testing.T) {
	sink := &collectorSink{}
	router := newAuditedRouter(sink, http.StatusCreated)

	send(t, router, http.MethodPost, "/documents", nil)
	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "documents", entries[0].EntityType)
	assert.Equal(t, audit.SentinelEntityID, entries[0].EntityID)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
}

func TestRecorderAlwaysAuditsSensitivePrefixes(t *testing.T) {
	sink := &collectorSink{}
	router := newAuditedRouter(sink, http.StatusOK)

	// Updates with no resolvable entity id are skipped, except under the
	// always-audited prefixes.
	send(t, router, http.MethodPut, "/settings", nil)
	assert.Empty(t, sink.all())

	send(t, router, http.MethodPut, "/finance/settings", nil)
	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "finance", entries[0].EntityType)
	assert.Equal(t, audit.SentinelEntityID, entries[0].EntityID)
	assert.Equal(t, audit.ActionUpdate, entries[0].Action)
}

func TestRecorderSwallowsSinkFailures(t *testing.T) {
	sink := &collectorSink{err: errors.New("queue unavailable")}
	router := newAuditedRouter(sink, http.StatusOK)

	res := send(t, router, http.MethodPost, "/documents", nil)
	require.Equal(t, http.StatusOK, res.Code,
		"an audit failure must never fail the request it describes")
}
