// ABOUTME: Tests for account HTTP handlers
// ABOUTME: Covers registration validation, login failures, and owner-only updates

package account

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/ecomap-gateway/internal/auth"
	"github.com/2389/ecomap-gateway/internal/store"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("account-handler-test-secret-32b!"))

type fixture struct {
	users    *store.MockStore
	codec    *auth.Codec
	handlers *Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := auth.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)
	users := store.NewMockStore()
	return &fixture{
		users:    users,
		codec:    codec,
		handlers: New(users, codec, nil, WithBcryptCost(bcrypt.MinCost)),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func (f *fixture) register(t *testing.T, name, email, password string) SessionResponse {
	t.Helper()
	rec := postJSON(t, f.handlers.HandleRegister, "/api/users/register", RegisterRequest{
		Name: name, Email: email, Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	resp := f.register(t, "Alice", "alice@example.com", "hunter22")

	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.Equal(t, "alice@example.com", resp.User.Email)

	claims, err := f.codec.Decode(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)

	stored, err := f.users.FindByIdentifier(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))
}

func TestRegister_ResponseOmitsPasswordHash(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.handlers.HandleRegister, "/api/users/register", RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "$2a$")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantMsg string
	}{
		{name: "missing name", req: RegisterRequest{Email: "a@example.com", Password: "pw"}, wantMsg: "required"},
		{name: "blank name", req: RegisterRequest{Name: "  ", Email: "a@example.com", Password: "pw"}, wantMsg: "required"},
		{name: "missing email", req: RegisterRequest{Name: "A", Password: "pw"}, wantMsg: "required"},
		{name: "missing password", req: RegisterRequest{Name: "A", Email: "a@example.com"}, wantMsg: "required"},
		{name: "not an email", req: RegisterRequest{Name: "A", Email: "not-an-email", Password: "pw"}, wantMsg: "invalid email"},
		{name: "display name form", req: RegisterRequest{Name: "A", Email: "Alice <a@example.com>", Password: "pw"}, wantMsg: "invalid email"},
		{name: "password too long", req: RegisterRequest{Name: "A", Email: "a@example.com", Password: strings.Repeat("x", 100)}, wantMsg: "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := postJSON(t, f.handlers.HandleRegister, "/api/users/register", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.wantMsg)
		})
	}
}

func TestRegister_InvalidJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.handlers.HandleRegister(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", "alice@example.com", "hunter22")

	rec := postJSON(t, f.handlers.HandleRegister, "/api/users/register", RegisterRequest{
		Name: "Other", Email: "ALICE@example.com", Password: "pw",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already exists", decodeError(t, rec))
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "Alice", "alice@example.com", "hunter22")

	rec := postJSON(t, f.handlers.HandleLogin, "/api/users/login", LoginRequest{
		Email: "alice@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, registered.User.ID, resp.User.ID)
	assert.True(t, f.codec.Validate(resp.Token))
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", "alice@example.com", "hunter22")

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{name: "wrong password", req: LoginRequest{Email: "alice@example.com", Password: "wrong"}},
		{name: "unknown email", req: LoginRequest{Email: "ghost@example.com", Password: "hunter22"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, f.handlers.HandleLogin, "/api/users/login", tt.req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid email or password", decodeError(t, rec))
		})
	}
}

func TestNew_OutOfRangeBcryptCostFallsBackToDefault(t *testing.T) {
	codec, err := auth.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)

	for _, cost := range []int{bcrypt.MaxCost + 1, -1} {
		h := New(store.NewMockStore(), codec, nil, WithBcryptCost(cost))
		assert.Equal(t, bcrypt.DefaultCost, h.bcryptCost)
		require.NotEmpty(t, h.dummyHash)

		got, err := bcrypt.Cost(h.dummyHash)
		require.NoError(t, err)
		assert.Equal(t, bcrypt.DefaultCost, got)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)
	rec := postJSON(t, f.handlers.HandleLogin, "/api/users/login", LoginRequest{Email: "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.users.Err = errors.New("database is locked")

	rec := postJSON(t, f.handlers.HandleLogin, "/api/users/login", LoginRequest{
		Email: "alice@example.com", Password: "hunter22",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func withPrincipal(req *http.Request, id, email string) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{
		ID:          id,
		Identifier:  email,
		Authorities: []string{auth.AuthorityStandardUser},
	}))
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "user-1", "alice@example.com")
	rec := httptest.NewRecorder()
	f.handlers.HandleMe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"user-1","email":"alice@example.com","authorities":["standard-user"]}`, rec.Body.String())
}

func TestMe_Anonymous(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handlers.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com", "hunter22")

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/users/"+alice.User.ID, nil),
		map[string]string{"id": alice.User.ID})
	rec := httptest.NewRecorder()
	f.handlers.HandleGetUser(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Alice", got.Name)

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/users/missing", nil),
		map[string]string{"id": "missing"})
	rec = httptest.NewRecorder()
	f.handlers.HandleGetUser(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUser_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com", "hunter22")
	bob := f.register(t, "Bob", "bob@example.com", "hunter33")

	update := func(actorID, actorEmail string, body UpdateRequest) *httptest.ResponseRecorder {
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPut, "/api/users/"+alice.User.ID, bytes.NewReader(data))
		req = mux.SetURLVars(req, map[string]string{"id": alice.User.ID})
		req = withPrincipal(req, actorID, actorEmail)
		rec := httptest.NewRecorder()
		f.handlers.HandleUpdateUser(rec, req)
		return rec
	}

	rec := update(bob.User.ID, "bob@example.com", UpdateRequest{Name: "Hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = update(alice.User.ID, "alice@example.com", UpdateRequest{Name: "Alice B", Password: "newpass"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.users.GetUser(context.Background(), alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", stored.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpass")))
}

func TestDeleteUser_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com", "hunter22")

	del := func(actorID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/users/"+alice.User.ID, nil)
		req = mux.SetURLVars(req, map[string]string{"id": alice.User.ID})
		req = withPrincipal(req, actorID, "someone@example.com")
		rec := httptest.NewRecorder()
		f.handlers.HandleDeleteUser(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, del("someone-else").Code)
	assert.Equal(t, http.StatusNoContent, del(alice.User.ID).Code)
	assert.Equal(t, http.StatusNotFound, del(alice.User.ID).Code)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("alice@example.com"))
	assert.True(t, validEmail("a.b+tag@sub.example.org"))
	assert.False(t, validEmail("alice"))
	assert.False(t, validEmail("alice@"))
	assert.False(t, validEmail("Alice <alice@example.com>"))
}
