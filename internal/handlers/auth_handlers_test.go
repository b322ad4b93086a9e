package handlers

import (
	"net/http"
	"testing"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	var token string

	t.Run("POST /api/auth/register creates a host", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Hana",
			"email":    "hana@test.com",
			"password": "password123",
			"role":     "host",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		data := dataMap(t, body)
		if data["role"] != "host" {
			t.Fatalf("expected host role, got %v", data["role"])
		}
		if _, exposed := data["password_hash"]; exposed {
			t.Fatalf("password hash must not be serialized")
		}
	})

	t.Run("POST /api/auth/register rejects duplicate email", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Hana Again",
			"email":    "HANA@test.com",
			"password": "password123",
			"role":     "participant",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "this email is already registered")
	})

	t.Run("POST /api/auth/register rejects unknown role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Nobody",
			"email":    "nobody@test.com",
			"password": "password123",
			"role":     "admin",
		}, nil)
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("POST /api/auth/register rejects short password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Short",
			"email":    "short@test.com",
			"password": "abc",
			"role":     "participant",
		}, nil)
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("POST /api/auth/login returns a token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "hana@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		token, _ = data["token"].(string)
		if token == "" {
			t.Fatalf("expected a token in login response")
		}
	})

	t.Run("POST /api/auth/login rejects wrong password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "hana@test.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid email or password")
	})

	t.Run("GET /api/auth/me returns the authenticated user", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["email"] != "hana@test.com" {
			t.Fatalf("expected hana@test.com, got %v", data["email"])
		}
	})

	t.Run("GET /api/auth/me without token is unauthorized", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})
}
