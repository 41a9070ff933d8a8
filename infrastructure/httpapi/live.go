package httpapi

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveSendBuffer = 64
)

var _ ports.EventPublisher = (*LiveHub)(nil)

type liveClient struct {
	conn    *websocket.Conn
	send    chan ports.LiveEvent
	adminID string
}

// LiveHub fans live judging events out to websocket clients grouped by
// project. Publish never blocks: a client whose buffer is full misses the
// event.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[string]map[*liveClient]struct{}
	metrics ports.MetricsCollector
	logger  *slog.Logger
}

// NewLiveHub returns an empty hub.
func NewLiveHub(metrics ports.MetricsCollector, logger *slog.Logger) *LiveHub {
	if metrics == nil {
		metrics = discardMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHub{
		clients: make(map[string]map[*liveClient]struct{}),
		metrics: metrics,
		logger:  logger,
	}
}

// Publish implements ports.EventPublisher.
func (h *LiveHub) Publish(projectID string, event ports.LiveEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[projectID] {
		select {
		case c.send <- event:
		default:
			h.logger.Warn("live client too slow, dropping event",
				"project_id", projectID, "admin_id", c.adminID, "type", event.Type)
		}
	}
}

// Connections returns the number of connected clients.
func (h *LiveHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Serve registers conn for projectID and blocks until the client goes away.
func (h *LiveHub) Serve(projectID, adminID string, conn *websocket.Conn) {
	c := &liveClient{conn: conn, send: make(chan ports.LiveEvent, liveSendBuffer), adminID: adminID}
	h.register(projectID, c)
	h.logger.Info("live client connected", "project_id", projectID, "admin_id", adminID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	h.readLoop(c)
	h.unregister(projectID, c)
	<-done
	_ = conn.Close()
	h.logger.Info("live client disconnected", "project_id", projectID, "admin_id", adminID)
}

// Close disconnects every client.
func (h *LiveHub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0)
	for _, set := range h.clients {
		for c := range set {
			conns = append(conns, c.conn)
		}
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(liveWriteWait))
		_ = conn.Close()
	}
}

func (h *LiveHub) register(projectID string, c *liveClient) {
	h.mu.Lock()
	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*liveClient]struct{})
	}
	h.clients[projectID][c] = struct{}{}
	h.mu.Unlock()
	h.metrics.RecordGauge(ports.MetricLiveConnections, float64(h.Connections()), nil)
}

// unregister removes c and closes its send channel, which ends writeLoop.
func (h *LiveHub) unregister(projectID string, c *liveClient) {
	h.mu.Lock()
	if set, ok := h.clients[projectID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, projectID)
		}
	}
	h.mu.Unlock()
	h.metrics.RecordGauge(ports.MetricLiveConnections, float64(h.Connections()), nil)
}

// readLoop consumes client frames so control messages are processed; the
// feed is one-way.
func (h *LiveHub) readLoop(c *liveClient) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writeLoop(c *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteJSON(event); err != nil {
				h.logger.Warn("live write failed", "admin_id", c.adminID, "error", err)
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// newUpgrader accepts same-origin requests, or the listed origins when any
// are configured.
func newUpgrader(allowed []string) websocket.Upgrader {
	u := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if len(allowed) > 0 {
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
	return u
}
