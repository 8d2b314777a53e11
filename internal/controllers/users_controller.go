package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dcreum/dcrflow/internal/domain"
	"github.com/dcreum/dcrflow/internal/engine"
)

type UsersController struct {
	AuthController
	UserRepo engine.UserRepo
}

func NewUsersController(userRepo engine.UserRepo) *UsersController {
	return &UsersController{
		UserRepo: userRepo,
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

type createUserRequest struct {
	Username string `json:"username"`
}

// createUserResponse carries the generated API key secret. It is shown
// exactly once; only the bcrypt hash is stored.
type createUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	ApiKey   string `json:"apiKey"`
}

// handleGetUsers returns all users
func (c *UsersController) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.UserRepo.FindAll()
	if err != nil {
		slog.Error("Failed to get users", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Failed to get users"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(users)
}

// handleCreateUser creates a new user and returns its one-time API key as
// "<username>:<secret>".
func (c *UsersController) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid user data"})
		return
	}

	existing, err := c.UserRepo.FindByUsername(req.Username)
	if err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "Username already exists"})
		return
	}

	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash api key", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Failed to create user"})
		return
	}

	user := &domain.User{Username: req.Username, KeyHash: string(hash)}
	id, err := c.UserRepo.Save(user)
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Failed to create user"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createUserResponse{
		ID:       id,
		Username: user.Username,
		ApiKey:   user.Username + ":" + secret,
	})
}

// handleGetUserByUsername gets a user by name
func (c *UsersController) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid username"})
		return
	}

	user, err := c.UserRepo.FindByUsername(username)
	if err != nil {
		slog.Error("Failed to get user", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Failed to get user"})
		return
	}
	if user == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "User not found"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(user)
}
