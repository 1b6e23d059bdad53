package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/auth"
)

// LoginHandler issues reviewer tokens.
type LoginHandler struct {
	svc    *auth.Service
	logger *zap.Logger
}

// NewLoginHandler constructs a new handler.
func NewLoginHandler(svc *auth.Service, logger *zap.Logger) *LoginHandler {
	return &LoginHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the login endpoint, unauthenticated.
func (h *LoginHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/login", h.handleLogin)
}

func (h *LoginHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"missing email or password"}`, http.StatusBadRequest)
		return
	}

	tokens, err := h.svc.Login(r.Context(), &req)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("Login failed", zap.Error(err))
		}
		http.Error(w, `{"error":"invalid email or password"}`, http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
