package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type HTTPHandler struct {
	manager Service
}

type guestRequest struct {
	Nickname     string `json:"nickname"`
	SessionToken string `json:"session_token,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID       uint64 `json:"user_id"`
	SessionToken string `json:"session_token"`
	Resumed      bool   `json:"resumed,omitempty"`
}

type meResponse struct {
	UserID      uint64 `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(manager Service) *HTTPHandler {
	return &HTTPHandler{manager: manager}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/guest", only(http.MethodPost, h.handleGuest))
	mux.HandleFunc("/api/auth/me", only(http.MethodGet, h.handleMe))
	mux.HandleFunc("/api/auth/register", only(http.MethodPost, h.handleRegister))
	mux.HandleFunc("/api/auth/login", only(http.MethodPost, h.handleLogin))
	mux.HandleFunc("/api/auth/logout", only(http.MethodPost, h.handleLogout))
}

func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

// writeAccountError maps account errors onto HTTP statuses. Unknown errors
// hide their text behind fallback.
func writeAccountError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidNickname),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// handleGuest seats a browser without an account. A still-valid session_token
// resumes the same user id so a reload keeps its seat.
func (h *HTTPHandler) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID, token, resumed, err := h.manager.Guest(req.Nickname, req.SessionToken)
	if err != nil {
		writeAccountError(w, err, "guest login failed")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{UserID: userID, SessionToken: token, Resumed: resumed})
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.credentials(w, r, h.manager.Register, "register failed")
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.credentials(w, r, h.manager.Login, "login failed")
}

func (h *HTTPHandler) credentials(w http.ResponseWriter, r *http.Request, issue func(username, password string) (uint64, string, error), fallback string) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID, token, err := issue(req.Username, req.Password)
	if err != nil {
		writeAccountError(w, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{UserID: userID, SessionToken: token})
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := requireToken(w, r)
	if !ok {
		return
	}
	h.manager.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := requireToken(w, r)
	if !ok {
		return
	}
	userID, name, valid := h.manager.ResolveSession(token)
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{UserID: userID, DisplayName: name})
}

func requireToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return "", false
	}
	return token, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
