package consumers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tracetap/internal/domain"
)

const (
	MessageCounter = "counter"
	MessageEvent   = "event"
	MessageLog     = "log"

	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

var ErrHubFull = errors.New("broadcast hub is full")

// Message is the JSON envelope pushed to websocket clients.
type Message struct {
	Type    string                     `json:"type"`
	System  string                     `json:"system,omitempty"`
	Counter *domain.CounterMeasurement `json:"counter,omitempty"`
	Event   *domain.Event              `json:"event,omitempty"`
	Log     *domain.LogEntry           `json:"log,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub fans counters and events out to websocket clients. Publishing never
// blocks: a client whose buffer is full is disconnected.
type Hub struct {
	system     string
	maxClients int
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(system string, maxClients int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxClients <= 0 {
		maxClients = domain.DefaultBroadcastMaxClients
	}
	return &Hub{
		system:     system,
		maxClients: maxClients,
		logger:     logger.Named("broadcast"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client until it hangs
// up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.full() {
		http.Error(w, ErrHubFull.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c, err := h.add(conn)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = conn.Close()
		return
	}
	h.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	go func() {
		defer func() {
			h.remove(c)
			h.logger.Debug("websocket client disconnected", zap.String("remote", r.RemoteAddr))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ObserveCounter is a domain.CounterObserver.
func (h *Hub) ObserveCounter(m domain.CounterMeasurement) {
	h.publish(Message{Type: MessageCounter, System: h.system, Counter: &m})
}

// ObserveEvent is a domain.EventObserver.
func (h *Hub) ObserveEvent(e domain.Event) {
	h.publish(Message{Type: MessageEvent, System: h.system, Event: &e})
}

// ObserveLog forwards a session log record to clients.
func (h *Hub) ObserveLog(entry domain.LogEntry) {
	h.publish(Message{Type: MessageLog, System: h.system, Log: &entry})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) full() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed || len(h.clients) >= h.maxClients
}

func (h *Hub) add(conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.clients) >= h.maxClients {
		return nil, ErrHubFull
	}
	c := newClient(conn)
	h.clients[c] = struct{}{}
	return c, nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("broadcast marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	// Sends happen under the read lock so remove cannot close a channel
	// mid-send.
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("websocket client too slow, disconnecting")
		h.remove(c)
	}
}
