package presence

import (
	"context"
	"strings"
	"sync"
	"time"

	"mijob/internal/api"
	"mijob/internal/apperrors"
	"mijob/internal/auth"
	"mijob/internal/logger"
	"mijob/internal/metrics"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	EventReady      = "ready"
	EventPing       = "ping"
	EventPong       = "pong"
	EventPresence   = "presence"
	EventMessageNew = "message.new"

	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// PresenceChange is the payload of a presence event.
type PresenceChange struct {
	UserID int  `json:"user_id"`
	Online bool `json:"online"`
}

// Broadcaster fans events out to every API instance. RedisRegistry
// implements it.
type Broadcaster interface {
	Publish(ctx context.Context, userID int, ev Event) error
	Subscribe(ctx context.Context, deliver func(userID int, ev Event))
}

type client struct {
	id     string
	userID int
	send   chan Event
}

// Hub owns every websocket connection of this process. It is created once at
// startup and closed on shutdown.
type Hub struct {
	registry  Registry
	broadcast Broadcaster
	secret    string
	origins   []string
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[int]map[string]*client
	closed  bool
	onFlip  func(userID int, online bool)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(registry Registry, jwtSecret string, origins []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:  registry,
		secret:    jwtSecret,
		origins:   origins,
		heartbeat: 30 * time.Second,
		clients:   make(map[int]map[string]*client),
		ctx:       ctx,
		cancel:    cancel,
	}

	if b, ok := registry.(Broadcaster); ok {
		h.broadcast = b
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			b.Subscribe(ctx, func(userID int, ev Event) { h.deliver(userID, ev) })
		}()
	}
	return h
}

// OnPresenceChange registers fn to run when an account gets its first
// connection or loses its last one on this instance.
func (h *Hub) OnPresenceChange(fn func(userID int, online bool)) {
	h.mu.Lock()
	h.onFlip = fn
	h.mu.Unlock()
}

func (h *Hub) IsOnline(ctx context.Context, userID int) (bool, error) {
	return h.registry.IsOnline(ctx, userID)
}

func (h *Hub) Online(ctx context.Context, userIDs []int) (map[int]bool, error) {
	return h.registry.Online(ctx, userIDs)
}

// Send pushes ev to every connection userID holds, on any instance.
func (h *Hub) Send(ctx context.Context, userID int, ev Event) error {
	if h.broadcast != nil {
		return h.broadcast.Publish(ctx, userID, ev)
	}
	h.deliver(userID, ev)
	return nil
}

// deliver queues ev on this instance's connections for userID. Slow
// connections drop the event rather than block the sender.
func (h *Hub) deliver(userID int, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, cl := range h.clients[userID] {
		select {
		case cl.send <- ev:
			n++
		default:
			logger.Warn("websocket send buffer full, dropping event", "user_id", userID, "conn_id", cl.id, "type", ev.Type)
		}
	}
	return n
}

// ServeWS upgrades GET /ws?token=<access token>.
func (h *Hub) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	claims, err := auth.ParseAccessToken(token, h.secret)
	if err != nil {
		api.WriteError(c, apperrors.Unauthorized("Invalid or expired token"))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		logger.Debug("websocket upgrade failed", "user_id", claims.UserID, "error", err.Error())
		return
	}
	defer conn.CloseNow()

	cl := &client{id: uuid.NewString(), userID: claims.UserID, send: make(chan Event, sendBuffer)}
	if !h.register(c.Request.Context(), cl) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(cl)

	h.run(c.Request.Context(), conn, cl)
}

func (h *Hub) run(reqCtx context.Context, conn *websocket.Conn, cl *client) {
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		for {
			var ev Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				readErr <- err
				return
			}
			if ev.Type == EventPing {
				select {
				case cl.send <- Event{Type: EventPong}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	if err := h.write(ctx, conn, Event{Type: EventReady, Data: gin.H{"conn_id": cl.id}}); err != nil {
		return
	}

	for {
		select {
		case <-h.ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case ev := <-cl.send:
			if err := h.write(ctx, conn, ev); err != nil {
				_ = conn.Close(websocket.StatusInternalError, "write_failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				_ = conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				return
			}
			if err := h.registry.Refresh(ctx, cl.userID); err != nil {
				logger.Warn("presence refresh failed", "user_id", cl.userID, "error", err.Error())
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}

func (h *Hub) register(ctx context.Context, cl *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	set, ok := h.clients[cl.userID]
	if !ok {
		set = make(map[string]*client)
		h.clients[cl.userID] = set
	}
	set[cl.id] = cl
	first := len(set) == 1
	flip := h.onFlip
	h.wg.Add(1)
	h.mu.Unlock()

	metrics.WebsocketConnections.Inc()
	if err := h.registry.Add(ctx, cl.userID, cl.id); err != nil {
		logger.Warn("presence add failed", "user_id", cl.userID, "error", err.Error())
	}
	if first && flip != nil {
		flip(cl.userID, true)
	}
	return true
}

func (h *Hub) unregister(cl *client) {
	defer h.wg.Done()

	h.mu.Lock()
	set := h.clients[cl.userID]
	delete(set, cl.id)
	last := len(set) == 0
	if last {
		delete(h.clients, cl.userID)
	}
	flip := h.onFlip
	h.mu.Unlock()

	metrics.WebsocketConnections.Dec()

	// The request context is gone by now.
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := h.registry.Remove(ctx, cl.userID, cl.id); err != nil {
		logger.Warn("presence remove failed", "user_id", cl.userID, "error", err.Error())
	}
	if last && flip != nil {
		flip(cl.userID, false)
	}
}

// Close disconnects every client and waits for their handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}
