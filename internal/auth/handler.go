package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. The credential
// rate-limit policy is applied by the router around POST /login.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

type loginUser struct {
	ID          int64    `json:"id"`
	DisplayName string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   map[string]string{"code": "MALFORMED_BODY", "message": "body must be valid JSON"},
		})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		details := make([]shared.FieldError, 0, 2)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range verrs {
				details = append(details, shared.FieldError{Field: fieldErr.Field(), Message: "failed " + fieldErr.Tag() + " validation"})
			}
		}
		se := shared.ErrInvalidCredential(nil)
		se.Status = http.StatusBadRequest
		se.Details = details
		shared.WriteError(w, h.logger, se)
		return
	}

	identity, token, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Same message for every failure shape; "Email atau password
		// tidak valid" regardless of which check tripped.
		shared.WriteError(w, h.logger, shared.ErrInvalidCredential(nil))
		return
	}
	shared.WriteJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   token,
		User: loginUser{
			ID:          identity.SubjectID,
			DisplayName: identity.DisplayName,
			Email:       identity.Email,
			Role:        identity.Role,
			Permissions: identity.Permissions,
		},
	})
}
