package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"matchmaker/core/utils"
	"matchmaker/feature/matching/engine"
	"matchmaker/feature/realtime/registry"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
	opTimeout      = 5 * time.Second
)

var (
	// ErrNotConnected is returned when the connection is not held by this hub.
	ErrNotConnected = errors.New("connection not held by this gateway")
	// ErrSlowConsumer is returned when the connection's send buffer is full.
	ErrSlowConsumer = errors.New("connection send buffer full")
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Matcher is the engine surface reachable from a websocket.
type Matcher interface {
	RequestMatch(ctx context.Context, userID, category string, extra map[string]any) engine.Result
	CancelMatch(ctx context.Context, userID string) engine.Result
	GetStatus(ctx context.Context, userID string) engine.StatusResult
}

// command is a client frame.
type command struct {
	Type      string         `json:"type"`
	RequestID string         `json:"requestId"`
	Category  any            `json:"category"`
	Extra     map[string]any `json:"extra"`
}

type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub owns the websocket connections of this instance. Every connection is bound in the
// registry while open and refreshed on each pong and command.
type Hub struct {
	registry registry.Registry
	verifier TokenVerifier
	matcher  Matcher
	origins  []string
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a hub. Connections swept from the registry are closed.
func NewHub(reg registry.Registry, verifier TokenVerifier, matcher Matcher, origins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		registry: reg,
		verifier: verifier,
		matcher:  matcher,
		origins:  origins,
		logger:   logger,
		clients:  make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	reg.OnExpire(h.expire)
	return h
}

// Handler returns the websocket HTTP handler with CORS applied.
func (h *Hub) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin)
}

// ServeWS authenticates the token query parameter and upgrades the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	err = h.registry.Bind(ctx, c.id, userID)
	cancel()
	if err != nil {
		h.logger.Error("Failed to bind connection", zap.String("user_id", userID), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registry unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("Connection opened", zap.String("user_id", userID), zap.String("connection_id", c.id))

	go h.writePump(c)
	go h.readPump(c)

	h.reply(c, Message{Type: "connected", Data: map[string]string{"connectionId": c.id}})
}

// Send queues msg on a connection held by this hub.
func (h *Hub) Send(_ context.Context, connID string, msg Message) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return h.enqueue(c, msg)
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) enqueue(c *client, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrNotConnected
	default:
		return ErrSlowConsumer
	}
}

func (h *Hub) reply(c *client, msg Message) {
	if err := h.enqueue(c, msg); err != nil {
		h.logger.Debug("Failed to reply", zap.String("connection_id", c.id), zap.Error(err))
	}
}

// expire closes a connection the registry swept.
func (h *Hub) expire(connID, _ string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.close()
	}
}

func (h *Hub) refresh(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := h.registry.Bind(ctx, c.id, c.userID); err != nil {
		h.logger.Warn("Failed to refresh connection", zap.String("connection_id", c.id), zap.Error(err))
	}
}

// drop forgets the connection and unbinds it.
func (h *Hub) drop(c *client) {
	c.close()

	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := h.registry.Unbind(ctx, c.id); err != nil && !errors.Is(err, registry.ErrUnknownConnection) {
		h.logger.Warn("Failed to unbind connection", zap.String("connection_id", c.id), zap.Error(err))
	}
	_ = c.conn.Close()

	h.logger.Debug("Connection closed", zap.String("user_id", c.userID), zap.String("connection_id", c.id))
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.refresh(c)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Connection read failed", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.refresh(c)
		h.handle(c, data)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handle runs one client command and replies with <type>_result.
func (h *Hub) handle(c *client, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.reply(c, Message{Type: "error", Data: map[string]string{"error": "malformed command"}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var result any
	switch cmd.Type {
	case "request_match":
		result = h.matcher.RequestMatch(ctx, c.userID, utils.ToString(cmd.Category), cmd.Extra)
	case "cancel_match":
		result = h.matcher.CancelMatch(ctx, c.userID)
	case "status":
		result = h.matcher.GetStatus(ctx, c.userID)
	case "ping":
		h.reply(c, Message{Type: "pong", RequestID: cmd.RequestID})
		return
	default:
		h.reply(c, Message{Type: "error", RequestID: cmd.RequestID, Data: map[string]string{"error": "unknown command"}})
		return
	}

	h.reply(c, Message{Type: cmd.Type + "_result", RequestID: cmd.RequestID, Data: result})
}
