package lobby

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

type HTTPHandler struct {
	lobby   *Lobby
	baseURL string
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPHandler serves the room list and join codes. baseURL is the public
// address players open; the request host is used when it is empty.
func NewHTTPHandler(lobby *Lobby, baseURL string) *HTTPHandler {
	return &HTTPHandler{lobby: lobby, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rooms", h.handleList)
	mux.HandleFunc("/api/rooms/", h.handleRoom)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": h.lobby.ListRooms(),
	})
}

// handleRoom serves /api/rooms/{id}/qr.png.
func (h *HTTPHandler) handleRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	roomID, tail, _ := strings.Cut(rest, "/")
	if roomID == "" || tail != "qr.png" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if h.lobby.GetRoom(roomID) == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, roomID), qrcode.Medium, qrSize)
	if err != nil {
		log.Printf("[Lobby] QR encode failed for room %s: %v", roomID, err)
		writeError(w, http.StatusInternalServerError, "qr encode failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *HTTPHandler) joinURL(r *http.Request, roomID string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(roomID)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
