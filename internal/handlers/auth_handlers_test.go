package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/serviciocomunal/backend/internal/models"
)

func TestRegisterCreatesStudent(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/register", map[string]any{
		"email":     "maria@students.test",
		"password":  "password123",
		"firstName": "Maria",
		"lastName":  "Gomez",
		"carnet":    20240101,
		"section":   "B",
	}, nil)
	assertStatus(t, resp, fiber.StatusCreated)

	body := decodeJSONMap(t, resp)
	data := dataMap(t, body)
	if data["token"] == "" {
		t.Fatalf("expected a token in the response")
	}
	user, ok := data["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %+v", data)
	}
	if user["role"] != string(models.UserRoleStudent) {
		t.Fatalf("expected student role, got %v", user["role"])
	}
	if user["carnet"] != float64(20240101) {
		t.Fatalf("expected carnet persisted, got %v", user["carnet"])
	}
	if _, exposed := user["passwordHash"]; exposed {
		t.Fatalf("password hash must not be serialized")
	}

	var stored models.User
	if err := env.db.First(&stored, "email = ?", "maria@students.test").Error; err != nil {
		t.Fatalf("expected user persisted: %v", err)
	}
	if stored.Section == nil || *stored.Section != "B" {
		t.Fatalf("expected section persisted")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"bad email", map[string]any{"email": "nope", "password": "password123", "firstName": "A", "lastName": "B", "carnet": 1}},
		{"short password", map[string]any{"email": "a@test.com", "password": "short", "firstName": "A", "lastName": "B", "carnet": 1}},
		{"missing names", map[string]any{"email": "a@test.com", "password": "password123", "carnet": 1}},
		{"missing carnet", map[string]any{"email": "a@test.com", "password": "password123", "firstName": "A", "lastName": "B"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/register", tc.payload, nil)
			assertStatus(t, resp, fiber.StatusBadRequest)
		})
	}
}

func TestRegisterDuplicateEmailOrCarnet(t *testing.T) {
	env := setupTestEnv(t)

	payload := map[string]any{
		"email":     "dup@students.test",
		"password":  "password123",
		"firstName": "Dup",
		"lastName":  "Licate",
		"carnet":    31,
	}
	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/register", payload, nil)
	assertStatus(t, resp, fiber.StatusCreated)

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/register", payload, nil)
	assertStatus(t, resp, fiber.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "email or carnet already registered")

	// Same carnet under a fresh email is also rejected.
	payload["email"] = "other@students.test"
	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/register", payload, nil)
	assertStatus(t, resp, fiber.StatusConflict)
}

func TestLogin(t *testing.T) {
	env := setupTestEnv(t)
	user, _ := createTestUser(t, env.db, "login@test.com", "password123", models.UserRoleStudent)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/login", map[string]any{
		"email":    "login@test.com",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if data["token"] == "" {
		t.Fatalf("expected token")
	}
	loggedIn, _ := data["user"].(map[string]any)
	if loggedIn["id"] != user.ID.String() {
		t.Fatalf("expected logged-in user %s, got %v", user.ID, loggedIn["id"])
	}

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/login", map[string]any{
		"email":    "login@test.com",
		"password": "wrong-password",
	}, nil)
	assertStatus(t, resp, fiber.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid credentials")

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/auth/login", map[string]any{
		"email":    "ghost@test.com",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, fiber.StatusUnauthorized)
}

func TestMe(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "me@test.com", "password123", models.UserRoleStudent)

	resp := performJSONRequest(t, env.app, fiber.MethodGet, "/api/auth/me", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if data["id"] != user.ID.String() {
		t.Fatalf("expected own profile, got %v", data["id"])
	}

	resp = performJSONRequest(t, env.app, fiber.MethodGet, "/api/auth/me", nil, nil)
	assertStatus(t, resp, fiber.StatusUnauthorized)
}
