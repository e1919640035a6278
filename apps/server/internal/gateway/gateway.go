package gateway

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nightcourt/apps/server/internal/auth"
	"nightcourt/apps/server/internal/lobby"
	"nightcourt/apps/server/internal/room"
	"nightcourt/apps/server/wire"
	"nightcourt/game"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 65536
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
)

// Error codes carried in error frames.
const (
	codeMalformed = 1
	codeLobby     = 2
	codeNoRoom    = 3
	codeRejected  = 4
)

// SessionResolver maps a session token to an account.
type SessionResolver interface {
	ResolveSession(token string) (accountID uint64, displayName string, ok bool)
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID       string
	UserID   uint64
	Name     string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	// text clients get protojson frames instead of binary protobuf
	text atomic.Bool

	mu   sync.Mutex
	room *room.Room

	closeOnce sync.Once
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	userConns   map[uint64]*Connection
	nextConnID  uint64

	lobby    *lobby.Lobby
	auth     SessionResolver
	upgrader websocket.Upgrader
}

// New creates a gateway. An empty allowedOrigins list accepts any origin.
func New(lby *lobby.Lobby, sessions SessionResolver, allowedOrigins []string) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		userConns:   make(map[uint64]*Connection),
		lobby:       lby,
		auth:        sessions,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), r.Host, allowedOrigins)
		},
	}
	return g
}

func originAllowed(origin, host string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, host) {
		return true
	}
	for _, a := range allowed {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket authenticates the session token and upgrades the connection.
// Browsers cannot set headers on a WebSocket handshake, so ?token= is accepted too.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	userID, name, ok := g.auth.ResolveSession(token)
	if !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		UserID:   userID,
		Name:     name,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Gateway:  g,
		LastPing: time.Now(),
	}
	previous := g.userConns[userID]
	g.connections[c.ID] = c
	g.userConns[userID] = c
	total := len(g.connections)
	g.mu.Unlock()

	if previous != nil {
		log.Printf("[Gateway] User %d reconnected, closing %s", userID, previous.ID)
		previous.close()
	}
	log.Printf("[Gateway] Client connected: %s (userID=%d), total: %d", c.ID, userID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		c.text.Store(messageType == websocket.TextMessage)
		c.handleMessage(message, messageType == websocket.BinaryMessage)
	}
}

func (c *Connection) handleMessage(data []byte, binary bool) {
	msg, err := wire.DecodeClient(data, binary)
	if err != nil {
		log.Printf("[Gateway] Failed to decode frame from user %d: %v", c.UserID, err)
		c.sendError(codeMalformed, "invalid message format", nil)
		return
	}

	switch msg.Type {
	case wire.ClientQuickStart:
		c.handleQuickStart()
	case wire.ClientCreateRoom:
		c.handleCreateRoom(msg)
	case wire.ClientJoinRoom:
		c.handleJoinRoom(msg)
	case wire.ClientResume:
		c.handleResume(msg)
	case wire.ClientLeaveRoom:
		c.handleLeaveRoom()
	case wire.ClientSitDown:
		c.submit(room.Event{Type: room.EventSitDown, Seat: msg.Seat("seat")})
	case wire.ClientStandUp:
		c.submit(room.Event{Type: room.EventStandUp})
	case wire.ClientDeal:
		c.submit(room.Event{Type: room.EventDeal})
	case wire.ClientNightAction:
		c.handleNightAction(msg)
	case wire.ClientResolveNight:
		c.submit(room.Event{Type: room.EventResolveNight})
	case wire.ClientNextSpeaker:
		c.submit(room.Event{Type: room.EventNextSpeaker})
	case wire.ClientOpenVote:
		c.submit(room.Event{Type: room.EventOpenVote})
	case wire.ClientDayVote:
		c.submit(room.Event{Type: room.EventDayVote, Target: msg.Seat("target")})
	case wire.ClientResolveDay:
		c.submit(room.Event{Type: room.EventResolveDay})
	case wire.ClientReset:
		c.submit(room.Event{Type: room.EventReset})
	default:
		log.Printf("[Gateway] Unknown frame type from user %d: %q", c.UserID, msg.Type)
		c.sendError(codeMalformed, "unknown message type", nil)
	}
}

func (c *Connection) handleQuickStart() {
	r, err := c.Gateway.lobby.QuickStart(c.UserID, c.Gateway.broadcastToUser)
	if err != nil {
		c.sendError(codeLobby, err.Error(), nil)
		return
	}
	c.enterRoom(r)
}

func (c *Connection) handleCreateRoom(msg *wire.ClientMessage) {
	r, err := c.Gateway.lobby.CreateRoom(msg.String("name"), msg.String("password"), c.Gateway.broadcastToUser)
	if err != nil {
		c.sendError(codeLobby, err.Error(), nil)
		return
	}
	c.enterRoom(r)
}

func (c *Connection) handleJoinRoom(msg *wire.ClientMessage) {
	r, err := c.Gateway.lobby.JoinRoom(msg.RoomID, msg.String("password"))
	if err != nil {
		c.sendError(codeLobby, err.Error(), nil)
		return
	}
	c.enterRoom(r)
}

// handleResume reattaches a reconnecting client to the room it was in.
func (c *Connection) handleResume(msg *wire.ClientMessage) {
	r := c.Gateway.lobby.GetRoom(msg.RoomID)
	if r == nil {
		c.sendError(codeLobby, lobby.ErrRoomNotFound.Error(), nil)
		return
	}
	if err := r.SubmitEvent(room.Event{Type: room.EventConnResume, UserID: c.UserID, Name: c.Name}); err != nil {
		c.sendError(codeRejected, err.Error(), err)
		return
	}
	c.setRoom(r)
	log.Printf("[Gateway] User %d resumed room %s", c.UserID, r.ID)
}

func (c *Connection) enterRoom(r *room.Room) {
	if current := c.currentRoom(); current != nil && current != r {
		_ = current.SubmitEvent(room.Event{Type: room.EventLeave, UserID: c.UserID})
	}
	if err := r.SubmitEvent(room.Event{Type: room.EventJoin, UserID: c.UserID, Name: c.Name}); err != nil {
		c.sendError(codeRejected, err.Error(), err)
		return
	}
	c.setRoom(r)
	log.Printf("[Gateway] User %d joined room %s", c.UserID, r.ID)
}

func (c *Connection) handleLeaveRoom() {
	r := c.currentRoom()
	if r == nil {
		return
	}
	_ = r.SubmitEvent(room.Event{Type: room.EventLeave, UserID: c.UserID})
	c.setRoom(nil)
}

func (c *Connection) handleNightAction(msg *wire.ClientMessage) {
	role := game.RoleNone
	if msg.String("role") != "" {
		parsed, ok := msg.Role("role")
		if !ok {
			c.sendError(codeMalformed, "unknown role", nil)
			return
		}
		role = parsed
	}
	c.submit(room.Event{
		Type:      room.EventNightAction,
		Role:      role,
		Target:    msg.Seat("target"),
		Secondary: msg.Seat("secondary"),
	})
}

// submit forwards e to the current room as this user and reports rejections.
func (c *Connection) submit(e room.Event) {
	r := c.currentRoom()
	if r == nil {
		c.sendError(codeNoRoom, "not in a room", nil)
		return
	}
	e.UserID = c.UserID
	if err := r.SubmitEvent(e); err != nil {
		c.sendError(codeRejected, err.Error(), err)
	}
}

func (c *Connection) currentRoom() *room.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Connection) setRoom(r *room.Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

func (c *Connection) sendError(code int, msg string, cause error) {
	roomID := ""
	if r := c.currentRoom(); r != nil {
		roomID = r.ID
	}
	env := wire.NewEnvelope(roomID, 0, 0, wire.TypeError, wire.ErrorPayload(code, msg, cause))
	data, err := wire.Encode(env)
	if err != nil {
		log.Printf("[Gateway] Failed to encode error frame: %v", err)
		return
	}
	c.enqueue(data)
}

func (c *Connection) enqueue(data []byte) {
	defer func() {
		// Send is closed when a newer connection replaced this one
		_ = recover()
	}()
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for %s, dropping frame", c.ID)
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			messageType, frame, err := c.frame(message)
			if err != nil {
				log.Printf("[Gateway] Failed to convert frame for %s: %v", c.ID, err)
				continue
			}
			if err := c.Conn.WriteMessage(messageType, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frame re-encodes binary envelopes as protojson for text clients.
func (c *Connection) frame(message []byte) (int, []byte, error) {
	if !c.text.Load() {
		return websocket.BinaryMessage, message, nil
	}
	env, err := wire.Decode(message)
	if err != nil {
		return 0, nil, err
	}
	data, err := wire.EncodeJSON(env)
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, data, nil
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	current := g.userConns[c.UserID] == c
	if current {
		delete(g.userConns, c.UserID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	c.close()
	if current {
		if r := c.currentRoom(); r != nil {
			_ = r.SubmitEvent(room.Event{Type: room.EventConnLost, UserID: c.UserID})
		}
	}
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// broadcastToUser sends a message to a specific user
func (g *Gateway) broadcastToUser(userID uint64, data []byte) {
	g.mu.RLock()
	c := g.userConns[userID]
	g.mu.RUnlock()

	if c != nil {
		c.enqueue(data)
	}
}

// ConnectionCount reports open connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}
