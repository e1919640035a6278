package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SessionResolver maps a bearer token to an account.
type SessionResolver interface {
	ResolveSession(token string) (accountID uint64, username string, ok bool)
}

type HTTPHandler struct {
	auth    SessionResolver
	history Service
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(auth SessionResolver, history Service) *HTTPHandler {
	return &HTTPHandler{auth: auth, history: history}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/history/recent", h.handleRecent)
	mux.HandleFunc("/api/history/games/", h.handleGame)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.history.ListRecent(ctx, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query recent games failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

func (h *HTTPHandler) handleGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	gameID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/history/games/"))
	if gameID == "" || strings.Contains(gameID, "/") {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	events, err := h.history.GetGameEvents(ctx, gameID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query game events failed")
		return
	}
	resp := map[string]any{
		"game_id": gameID,
		"events":  events,
	}
	// running games have events but no verdict yet
	if rec, err := h.history.GetGame(ctx, gameID); err == nil {
		resp["game"] = rec
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) authorized(r *http.Request) bool {
	if h.auth == nil {
		return true
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	_, _, ok := h.auth.ResolveSession(token)
	return ok
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultRecentLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultRecentLimit
	}
	return clampLimit(n)
}

func bearerToken(raw string) string {
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
