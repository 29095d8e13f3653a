package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/egor/portfoliorelay/middleware"
	"github.com/egor/portfoliorelay/models"
)

func seedAdmin(t *testing.T, e *testEnv, email, password string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	e.store.admins[email] = &models.Admin{
		ID:           uuid.New(),
		Name:         "Егор",
		Email:        email,
		PasswordHash: string(hash),
		Role:         "admin",
		Active:       active,
	}
}

func TestLoginSuccess(t *testing.T) {
	e := newTestEnv()
	seedAdmin(t, e, "egor@example.com", "secret123", true)

	w := postJSON(t, e, "/api/auth/login", map[string]string{
		"email":    "egor@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string       `json:"token"`
		Admin models.Admin `json:"admin"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("токен не выдан")
	}
	claims, err := middleware.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("выданный токен не проходит валидацию: %v", err)
	}
	if claims.Role != "admin" {
		t.Errorf("роль в токене: %q", claims.Role)
	}
	if resp.Admin.Email != "egor@example.com" {
		t.Errorf("в ответе не тот админ: %+v", resp.Admin)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv()
	seedAdmin(t, e, "egor@example.com", "secret123", true)

	w := postJSON(t, e, "/api/auth/login", map[string]string{
		"email":    "egor@example.com",
		"password": "другой-пароль",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("неверный пароль должен давать 401, получили %d", w.Code)
	}
}

func TestLoginUnknownOrInactive(t *testing.T) {
	e := newTestEnv()
	seedAdmin(t, e, "off@example.com", "secret123", false)

	w := postJSON(t, e, "/api/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("неизвестный email должен давать 401, получили %d", w.Code)
	}

	w = postJSON(t, e, "/api/auth/login", map[string]string{
		"email":    "off@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("деактивированный админ должен получать 401, получили %d", w.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	e := newTestEnv()

	w := postJSON(t, e, "/api/auth/login", map[string]string{"email": "x@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("без пароля ожидали 400, получили %d", w.Code)
	}
}
