// Package realtime pushes alert views, toasts and sound cues to browser sessions over websockets.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odyssey-erp/odyssey-hotel/internal/alerts"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 << 10
)

// Frame types sent to clients.
const (
	FrameView         = "view"
	FrameNotice       = "notice"
	FrameCue          = "cue"
	FrameConnectivity = "connectivity"
)

// Frame is one server-to-client message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Message is one client-to-server message, e.g. {"type":"dismiss","item_id":"..."}.
type Message struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id,omitempty"`
	// Sound settings, used by "sound" messages.
	Enabled *bool    `json:"enabled,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
}

// HubConfig tunes the hub.
type HubConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	SendBuffer     int
	// OnConnect runs after a client registers, e.g. to send the initial view.
	OnConnect func(id shared.Identity)
	// OnMessage handles client messages.
	OnMessage func(id shared.Identity, msg Message)
}

// Hub tracks websocket clients per session.
type Hub struct {
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	buffer    int
	onConnect func(shared.Identity)
	onMessage func(shared.Identity, Message)

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	hub  *Hub
	id   shared.Identity
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub constructs a Hub.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	h := &Hub{
		logger:    logger,
		buffer:    buffer,
		onConnect: cfg.OnConnect,
		onMessage: cfg.OnMessage,
		clients:   make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// ServeHTTP upgrades an identified request to a websocket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok || id.SessionID == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}
	c := &client{hub: h, id: id, conn: conn, send: make(chan []byte, h.buffer)}
	h.register(c)
	go c.writePump()
	go c.readPump()
	if h.onConnect != nil {
		h.onConnect(id)
	}
}

// Clients returns how many connections a session has.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// PushView sends a fresh alert view to a session.
func (h *Hub) PushView(sessionID string, view alerts.View) {
	h.SendTo(sessionID, Frame{Type: FrameView, Data: view})
}

// Notify sends a toast to a session.
func (h *Hub) Notify(sessionID string, notice alerts.Notice) {
	h.SendTo(sessionID, Frame{Type: FrameNotice, Data: notice})
}

// SendTo delivers frame to every connection of a session.
func (h *Hub) SendTo(sessionID string, frame Frame) {
	data, ok := h.encode(frame)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[sessionID] {
		c.enqueue(data)
	}
}

// Broadcast delivers frame to every connection.
func (h *Hub) Broadcast(frame Frame) {
	data, ok := h.encode(frame)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			c.enqueue(data)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sid, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, sid)
	}
}

func (h *Hub) encode(frame Frame) ([]byte, bool) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("encode websocket frame", slog.String("type", frame.Type), slog.Any("error", err))
		return nil, false
	}
	return data, true
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.id.SessionID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.id.SessionID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.id.SessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			c.close()
		}
		if len(set) == 0 {
			delete(h.clients, c.id.SessionID)
		}
	}
}

// enqueue must be called with the hub lock held so close cannot race it.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("websocket buffer full, dropping frame", slog.String("session_id", c.id.SessionID))
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read", slog.String("session_id", c.id.SessionID), slog.Any("error", err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("ignore malformed websocket message", slog.Any("error", err))
			continue
		}
		if c.hub.onMessage != nil {
			c.hub.onMessage(c.id, msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// originChecker allows same-host requests plus the configured origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(strings.ToLower(o)); o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
