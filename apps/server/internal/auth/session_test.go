package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGuest_ResumesValidToken(t *testing.T) {
	m := NewManager(0)
	accountID1, token, resumed, err := m.Guest("Mallory", "")
	if err != nil {
		t.Fatalf("guest failed: %v", err)
	}
	if accountID1 == 0 || token == "" {
		t.Fatalf("expected account id and token")
	}
	if resumed {
		t.Fatalf("new guest should not be marked resumed")
	}

	accountID2, token2, resumed2, err := m.Guest("", token)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !resumed2 || accountID1 != accountID2 || token2 != token {
		t.Fatalf("expected the same session back, got %d/%v", accountID2, resumed2)
	}
	if name := m.DisplayName(accountID1); name != "Mallory" {
		t.Fatalf("expected display name Mallory, got %q", name)
	}
}

func TestGuest_RenameOnResume(t *testing.T) {
	m := NewManager(0)
	id, token, _, _ := m.Guest("old  name", "")
	if got := m.DisplayName(id); got != "old name" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	if _, _, _, err := m.Guest("new", token); err != nil {
		t.Fatal(err)
	}
	if _, name, ok := m.ResolveSession(token); !ok || name != "new" {
		t.Fatalf("expected renamed session, got %q %v", name, ok)
	}
}

func TestGuest_UnknownTokenNeedsNickname(t *testing.T) {
	m := NewManager(0)
	if _, _, _, err := m.Guest("", "invalid-token"); !errors.Is(err, ErrInvalidNickname) {
		t.Fatalf("expected ErrInvalidNickname, got %v", err)
	}
	if _, _, _, err := m.Guest("this nickname is far too long", ""); !errors.Is(err, ErrInvalidNickname) {
		t.Fatalf("expected ErrInvalidNickname for long nickname, got %v", err)
	}
	a, _, _, _ := m.Guest("a", "")
	b, _, resumed, _ := m.Guest("b", "invalid-token")
	if resumed || a == b {
		t.Fatalf("expected a fresh guest for an unknown token")
	}
}

func TestSessionExpires(t *testing.T) {
	m := NewManager(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	_, token, _, _ := m.Guest("sleepy", "")
	now = now.Add(59 * time.Second)
	if _, _, ok := m.ResolveSession(token); !ok {
		t.Fatalf("session should still be valid")
	}
	// resolving slides the expiry forward
	now = now.Add(59 * time.Second)
	if _, _, ok := m.ResolveSession(token); !ok {
		t.Fatalf("session should have been refreshed")
	}
	now = now.Add(2 * time.Minute)
	if _, _, ok := m.ResolveSession(token); ok {
		t.Fatalf("session should have expired")
	}
}

func TestHTTPGuestAndMe(t *testing.T) {
	m := NewManager(0)
	mux := http.NewServeMux()
	NewHTTPHandler(m).RegisterRoutes(mux)

	body, _ := json.Marshal(guestRequest{Nickname: "Trent"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/guest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var auth authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &auth); err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+auth.SessionToken)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var me meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.UserID != auth.UserID || me.DisplayName != "Trent" {
		t.Fatalf("unexpected me response %+v", me)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/guest", bytes.NewReader([]byte(`{"nickname":""}`)))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty nickname: expected 400, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"Basic abc":     "",
		"Bearer abc":    "abc",
		"  Bearer  x  ": "x",
	}
	for raw, want := range cases {
		if got := BearerToken(raw); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", raw, got, want)
		}
	}
}
