package documents

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolah-digital/sekolah-api/internal/authz"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// Capability tags for the documents module.
const (
	PermDocumentsView   = "documents:view"
	PermDocumentsManage = "documents:manage"
)

// Handler wires HTTP endpoints for document metadata.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	validator *validator.Validate
	bulkLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. bulkLimit, when non-nil, is the
// narrow rate-limit policy applied to the bulk-upload route.
func NewHandler(logger *slog.Logger, repo Repository, bulkLimit func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, repo: repo, validator: validator.New(), bulkLimit: bulkLimit}
}

// OwnerResolver adapts the repository for the ownership gate. A non-numeric
// id reads as not-found; the gate turns that into a denial.
func (h *Handler) OwnerResolver(ctx context.Context, r *http.Request) (int64, bool, error) {
	documentID, err := strconv.ParseInt(chi.URLParam(r, "documentId"), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return h.repo.FindOwner(ctx, documentID)
}

// MountRoutes registers document routes with their authorization gates.
func (h *Handler) MountRoutes(r chi.Router) {
	owned := authz.RequireOwnership(h.logger, h.OwnerResolver)
	r.With(owned).Get("/{documentId}", h.handleGet)
	r.With(owned).Put("/{documentId}", h.handleUpdate)
	r.With(owned).Delete("/{documentId}", h.handleDelete)
	r.With(authz.RequirePermissions(h.logger, PermDocumentsManage)).Post("/", h.handleCreate)

	bulk := r.With(authz.RequirePermissions(h.logger, PermDocumentsManage))
	if h.bulkLimit != nil {
		bulk = bulk.With(h.bulkLimit)
	}
	bulk.Post("/bulk", h.handleBulkCreate)
}

type documentRequest struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Title     string `json:"title" validate:"required,max=200"`
	Notes     string `json:"notes" validate:"max=2000"`
	MimeType  string `json:"mime_type" validate:"required"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	documentID, _ := strconv.ParseInt(chi.URLParam(r, "documentId"), 10, 64)
	doc, err := h.repo.Get(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			shared.WriteError(w, h.logger, shared.ErrResourceNotFound())
			return
		}
		shared.WriteError(w, h.logger, shared.ErrInternal(err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	identity := shared.IdentityFromContext(r.Context())
	doc := &Document{
		OwnerID:   identity.SubjectID,
		StudentID: req.StudentID,
		Title:     req.Title,
		Notes:     req.Notes,
		MimeType:  req.MimeType,
	}
	if err := h.repo.Create(r.Context(), doc); err != nil {
		shared.WriteError(w, h.logger, shared.ErrInternal(err))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "document": doc})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	documentID, _ := strconv.ParseInt(chi.URLParam(r, "documentId"), 10, 64)
	doc := &Document{ID: documentID, Title: req.Title, Notes: req.Notes}
	if err := h.repo.Update(r.Context(), doc); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			shared.WriteError(w, h.logger, shared.ErrResourceNotFound())
			return
		}
		shared.WriteError(w, h.logger, shared.ErrInternal(err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	documentID, _ := strconv.ParseInt(chi.URLParam(r, "documentId"), 10, 64)
	if err := h.repo.Delete(r.Context(), documentID); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			shared.WriteError(w, h.logger, shared.ErrResourceNotFound())
			return
		}
		shared.WriteError(w, h.logger, shared.ErrInternal(err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

type bulkRequest struct {
	Documents []documentRequest `json:"documents" validate:"required,min=1,max=50,dive"`
}

func (h *Handler) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   map[string]string{"code": "MALFORMED_BODY", "message": "body must be valid JSON"},
		})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   map[string]string{"code": "VALIDATION_FAILED", "message": "request validation failed"},
		})
		return
	}
	identity := shared.IdentityFromContext(r.Context())
	created := make([]*Document, 0, len(req.Documents))
	for _, item := range req.Documents {
		doc := &Document{
			OwnerID:   identity.SubjectID,
			StudentID: item.StudentID,
			Title:     item.Title,
			Notes:     item.Notes,
			MimeType:  item.MimeType,
		}
		if err := h.repo.Create(r.Context(), doc); err != nil {
			shared.WriteError(w, h.logger, shared.ErrInternal(err))
			return
		}
		created = append(created, doc)
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "documents": created})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (documentRequest, bool) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   map[string]string{"code": "MALFORMED_BODY", "message": "body must be valid JSON"},
		})
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		details := make([]shared.FieldError, 0, 4)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range verrs {
				details = append(details, shared.FieldError{Field: fieldErr.Field(), Message: "failed " + fieldErr.Tag() + " validation"})
			}
		}
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   map[string]any{"code": "VALIDATION_FAILED", "message": "request validation failed", "details": details},
		})
		return req, false
	}
	return req, true
}
