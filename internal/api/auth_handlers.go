package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gigboard/gigboard/internal/auth"
)

// AuthHandler issues and validates admin API tokens. Operator accounts live
// in the users table; the env-configured admin password is the bootstrap
// path before any account exists.
type AuthHandler struct {
	config auth.Config
	db     *sql.DB
	logger *slog.Logger
}

func NewAuthHandler(config auth.Config, db *sql.DB, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{config: config, db: db, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, err := h.authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("login rejected", "username", req.Username)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(userID, h.config.JWTSecret, h.config.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// ValidateToken handles GET /api/auth/validate behind the auth middleware.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (h *AuthHandler) authenticate(ctx context.Context, username, password string) (string, error) {
	if h.db != nil {
		var id, hash string
		err := h.db.QueryRowContext(ctx,
			`SELECT id, password_hash FROM users WHERE username = $1`,
			username,
		).Scan(&id, &hash)
		if err == nil {
			if auth.CheckPassword(password, hash) {
				return id, nil
			}
			return "", fmt.Errorf("bad password")
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("user lookup: %w", err)
		}
	}

	// Bootstrap path: no account row yet.
	if username == "admin" && h.config.AdminPassword != "" && password == h.config.AdminPassword {
		return "admin", nil
	}
	return "", fmt.Errorf("unknown user")
}
