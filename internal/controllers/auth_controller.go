package controllers

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dcreum/dcrflow/internal/engine"
	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
)

type AuthController struct {
	UserRepo engine.UserRepo
}

func NewBaseController(userRepo engine.UserRepo) *AuthController {
	return &AuthController{UserRepo: userRepo}
}

// RequireAuth guards an endpoint with API key auth.
// Supported header: X-API-Key: <username>:<secret>
// The secret is verified against the stored bcrypt hash.
func (wc *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		username, secret, ok := strings.Cut(apiKey, ":")
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		u, err := wc.UserRepo.FindByUsername(username)
		if err != nil || u == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if u.Enabled.Valid && !u.Enabled.Bool {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.KeyHash), []byte(secret)); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Add the username to the request context
		ctx := context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)
		next(w, r.WithContext(ctx))
	}
}
