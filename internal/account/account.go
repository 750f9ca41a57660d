// ABOUTME: HTTP handlers for user registration, login, and self-service account management
// ABOUTME: Passwords are bcrypt hashed; successful register/login returns a signed token

package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/ecomap-gateway/internal/auth"
	"github.com/2389/ecomap-gateway/internal/store"
)

// invalidCredentials is the single message for every failed login, so the
// response does not reveal whether the email exists.
const invalidCredentials = "Invalid email or password"

// TokenIssuer signs session tokens for a subject.
type TokenIssuer interface {
	Encode(subject string, extra map[string]any) (string, error)
}

// Handlers serves the /api/users endpoints.
type Handlers struct {
	users      store.UserStore
	tokens     TokenIssuer
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time

	// dummyHash is compared against on unknown emails so login latency
	// does not depend on whether the account exists.
	dummyHash []byte
}

// Option configures Handlers.
type Option func(*Handlers)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(h *Handlers) { h.bcryptCost = cost }
}

// New creates account handlers backed by users and tokens.
func New(users store.UserStore, tokens TokenIssuer, logger *slog.Logger, opts ...Option) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		users:      users,
		tokens:     tokens,
		logger:     logger.With("component", "account"),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.bcryptCost < bcrypt.MinCost || h.bcryptCost > bcrypt.MaxCost {
		h.logger.Warn("bcrypt cost out of range, using default",
			"cost", h.bcryptCost, "default", bcrypt.DefaultCost)
		h.bcryptCost = bcrypt.DefaultCost
	}

	var err error
	h.dummyHash, err = bcrypt.GenerateFromPassword([]byte("ecomap-dummy-password"), h.bcryptCost)
	if err != nil {
		h.logger.Error("generating dummy password hash", "error", err)
	}
	return h
}

// RegisterRequest is the body of POST /api/users/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateRequest is the body of PUT /api/users/{id}. Empty fields are left unchanged.
type UpdateRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user. It never carries the password hash.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// MeResponse describes the authenticated principal.
type MeResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Authorities []string `json:"authorities"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// validEmail accepts a bare addr-spec such as "alice@example.com".
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// HandleRegister handles POST /api/users/register.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		sendJSONError(w, http.StatusBadRequest, "name, email, and password are required")
		return
	}
	if !validEmail(req.Email) {
		sendJSONError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			sendJSONError(w, http.StatusBadRequest, "password is too long")
			return
		}
		h.logger.Error("failed to hash password", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    h.now().UTC().Truncate(time.Second),
	}

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			sendJSONError(w, http.StatusConflict, "Email already exists")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	h.issueSession(w, user)
}

// HandleLogin handles POST /api/users/login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.FindByIdentifier(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("failed to look up user", "error", err)
			sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(req.Password))
		sendJSONError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.Info("login rejected", "user_id", user.ID)
		sendJSONError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	h.issueSession(w, user)
}

func (h *Handlers) issueSession(w http.ResponseWriter, user *store.User) {
	token, err := h.tokens.Encode(user.Email, nil)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sendJSON(w, http.StatusOK, SessionResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// HandleMe handles GET /api/users/me. Must be wrapped in auth.RequirePrincipal.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.CurrentPrincipal(r.Context())
	if !ok {
		sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sendJSON(w, http.StatusOK, MeResponse{
		ID:          principal.ID,
		Email:       principal.Identifier,
		Authorities: auth.Authorities(r.Context()),
	})
}

// HandleGetUser handles GET /api/users/{id}.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendStoreError(w, err, "failed to get user")
		return
	}
	sendJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateUser handles PUT /api/users/{id}. Only the account owner may update it.
func (h *Handlers) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.isSelf(r, id) {
		sendJSONError(w, http.StatusForbidden, "cannot modify another user")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.sendStoreError(w, err, "failed to get user")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
		if err != nil {
			sendJSONError(w, http.StatusBadRequest, "invalid password")
			return
		}
		user.PasswordHash = string(hash)
	}

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		h.sendStoreError(w, err, "failed to update user")
		return
	}

	sendJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDeleteUser handles DELETE /api/users/{id}. Only the account owner may delete it.
func (h *Handlers) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.isSelf(r, id) {
		sendJSONError(w, http.StatusForbidden, "cannot delete another user")
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		h.sendStoreError(w, err, "failed to delete user")
		return
	}

	h.logger.Info("user deleted", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) isSelf(r *http.Request, id string) bool {
	principal, ok := auth.CurrentPrincipal(r.Context())
	return ok && principal.ID == id
}

func (h *Handlers) sendStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		sendJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.Error(msg, "error", err)
	sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}
