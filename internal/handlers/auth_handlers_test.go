package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/authgate/backend/internal/models"
	"github.com/pquerna/otp/totp"
)

func TestAuthHandler_Register(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "alice",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)

	secret, _ := data["sessionSecret"].(string)
	if len(secret) != 32 {
		t.Fatalf("expected 32-char session secret, got %q", secret)
	}
	expires, _ := data["expires"].(float64)
	if int64(expires) <= time.Now().Unix() {
		t.Fatalf("expected expiry in the future, got %v", expires)
	}

	// The fresh secret must resolve to a valid session immediately.
	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/state", nil, sessionCookie(secret))
	body = decodeJSONMap(t, resp)
	data = body["data"].(map[string]any)
	if auth, _ := data["auth"].(bool); !auth {
		t.Fatal("expected auth to be true for a freshly minted session")
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "abc", "password123"},
		{"username too long", "sixteencharacter", "password123"},
		{"password too short", "alice", "12345678"},
		{"password too long", "alice", "0123456789012345678901234567890X"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
				"username": tc.username,
				"password": tc.password,
			}, nil)
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}

	// None of the rejected registrations may have reached the store.
	var count int64
	env.db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no users persisted, got %d", count)
	}
}

func TestAuthHandler_Register_BoundaryLengths(t *testing.T) {
	env := setupTestEnv(t)

	// 4-char username and 9-char password are the shortest accepted values.
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "abcd",
		"password": "123456789",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	// 15-char username and 31-char password are the longest accepted values.
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "exactlyfifteen1",
		"password": "0123456789012345678901234567890",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
}

func TestAuthHandler_Register_DuplicateUsername(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "alice", "password123", "user")

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "alice",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "that username is taken")
}

func TestAuthHandler_Login(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "alice", "password123", "user")

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)
	if secret, _ := data["sessionSecret"].(string); secret == "" {
		t.Fatal("expected a session secret")
	}
}

func TestAuthHandler_Login_GenericFailureMessage(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "alice", "password123", "user")

	// Wrong password and unknown username must be indistinguishable.
	wrongPassword := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice",
		"password": "not-the-password",
	}, nil)
	assertStatus(t, wrongPassword, http.StatusUnauthorized)
	wrongPasswordBody := decodeJSONMap(t, wrongPassword)

	unknownUser := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "nobody99",
		"password": "not-the-password",
	}, nil)
	assertStatus(t, unknownUser, http.StatusUnauthorized)
	unknownUserBody := decodeJSONMap(t, unknownUser)

	if wrongPasswordBody["error"] != unknownUserBody["error"] {
		t.Fatalf("expected identical errors, got %q and %q", wrongPasswordBody["error"], unknownUserBody["error"])
	}
}

func TestAuthHandler_Login_TotpChallenge(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "alice", "password123", "user")
	secret := enableTotpFor(t, env, user)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)

	if required, _ := data["totpRequired"].(bool); !required {
		t.Fatal("expected totpRequired to be true")
	}
	if _, hasSession := data["sessionSecret"]; hasSession {
		t.Fatal("no session may be issued before the second factor")
	}
	token, _ := data["totpToken"].(string)
	if token == "" {
		t.Fatal("expected a challenge token")
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("failed to generate TOTP code: %v", err)
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/totp", map[string]any{
		"totpToken": token,
		"code":      code,
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	body = decodeJSONMap(t, resp)
	data = body["data"].(map[string]any)
	if sessionSecret, _ := data["sessionSecret"].(string); sessionSecret == "" {
		t.Fatal("expected a session after completing the challenge")
	}

	// The challenge token is single use.
	code, _ = totp.GenerateCode(secret, time.Now())
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/totp", map[string]any{
		"totpToken": token,
		"code":      code,
	}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestAuthHandler_Login_InlineTotpCode(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "alice", "password123", "user")
	secret := enableTotpFor(t, env, user)

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("failed to generate TOTP code: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice",
		"password": "password123",
		"totp":     code,
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)
	if secret, _ := data["sessionSecret"].(string); secret == "" {
		t.Fatal("expected a session when the code is supplied inline")
	}
}

func TestAuthHandler_State(t *testing.T) {
	env := setupTestEnv(t)

	// Without a cookie the state is unauthenticated, nothing else leaks.
	resp := performRequest(t, env.app, http.MethodGet, "/api/auth/state", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)
	if auth, _ := data["auth"].(bool); auth {
		t.Fatal("expected auth to be false without a session")
	}

	admin := createTestUser(t, env.db, "root1", "password123", testAdminRank)
	session := createTestSession(t, env, admin)

	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/state", nil, sessionCookie(session.Secret))
	assertStatus(t, resp, http.StatusOK)
	body = decodeJSONMap(t, resp)
	data = body["data"].(map[string]any)

	if auth, _ := data["auth"].(bool); !auth {
		t.Fatal("expected auth to be true")
	}
	if isAdmin, _ := data["isAdmin"].(bool); !isAdmin {
		t.Fatal("expected isAdmin for the admin rank")
	}
	userData := data["user"].(map[string]any)
	if userData["username"] != "root1" || userData["rank"] != testAdminRank {
		t.Fatalf("unexpected user payload: %+v", userData)
	}
	totpData := data["totp"].(map[string]any)
	if enabled, _ := totpData["enabled"].(bool); enabled {
		t.Fatal("expected totp to be disabled")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "alice", "password123", "user")
	session := createTestSession(t, env, user)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/logout", map[string]any{}, sessionCookie(session.Secret))
	assertStatus(t, resp, http.StatusOK)

	// The same secret no longer authenticates anything.
	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/state", nil, sessionCookie(session.Secret))
	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)
	if auth, _ := data["auth"].(bool); auth {
		t.Fatal("expected session to be dead after logout")
	}

	// Logging out again with the dead session is plain unauthenticated.
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/logout", map[string]any{}, sessionCookie(session.Secret))
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "alice", "password123", "user")
	session := createTestSession(t, env, user)
	sibling := createTestSession(t, env, user)

	headers := sessionCookie(session.Secret)
	headers["X-Real-IP"] = *session.IP

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
		"currentPassword": "password123",
		"newPassword":     "replacement1",
	}, headers)
	assertStatus(t, resp, http.StatusOK)

	// Sibling sessions from the same origin die with the old password.
	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/state", nil, sessionCookie(sibling.Secret))
	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)
	if auth, _ := data["auth"].(bool); auth {
		t.Fatal("expected sibling session to be invalidated")
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice",
		"password": "replacement1",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
}

func TestAuthHandler_ChangePassword_WrongCurrent(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "alice", "password123", "user")
	session := createTestSession(t, env, user)

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
		"currentPassword": "not-the-password",
		"newPassword":     "replacement1",
	}, sessionCookie(session.Secret))
	assertStatus(t, resp, http.StatusUnauthorized)
}
