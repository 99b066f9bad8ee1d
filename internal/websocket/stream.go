package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"DBAdminDO/internal/gateway"
	"DBAdminDO/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// ErrTooManyClients is returned when the stream client limit is reached
var ErrTooManyClients = errors.New("too many metrics stream clients")

// MetricsSource produces one metrics envelope per call
type MetricsSource interface {
	Metrics(ctx context.Context, req gateway.Request, timeRange string) gateway.Result
}

// Message is one frame pushed to a stream client
type Message struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Streamer pushes live metrics to websocket clients, one gateway call per tick
type Streamer struct {
	source     MetricsSource
	interval   time.Duration
	maxClients int
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// Client represents a WebSocket client connection
type Client struct {
	id     string
	uuid   string
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewStreamer creates a Streamer. maxClients <= 0 means unlimited.
func NewStreamer(source MetricsSource, interval time.Duration, maxClients int) *Streamer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Streamer{
		source:     source,
		interval:   interval,
		maxClients: maxClients,
		clients:    make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the JWT carried in the query string
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Count returns the number of connected clients
func (s *Streamer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// reserve claims a client slot before the upgrade so the limit is exact
func (s *Streamer) reserve(c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("metrics stream is shutting down")
	}
	if s.maxClients > 0 && len(s.clients) >= s.maxClients {
		return ErrTooManyClients
	}
	s.clients[c.id] = c
	return nil
}

func (s *Streamer) release(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

// ServeMetrics upgrades the request and streams metrics for req until the
// client disconnects or the database becomes unreachable for the caller.
func (s *Streamer) ServeMetrics(c *gin.Context, req gateway.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{id: uuid.NewString(), uuid: req.UUID, cancel: cancel}

	if err := s.reserve(client); err != nil {
		cancel()
		c.JSON(http.StatusServiceUnavailable, gin.H{"available": false, "error": err.Error()})
		return
	}
	defer s.release(client)
	defer cancel()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Failed to upgrade to WebSocket connection", logger.Err(err))
		return
	}
	defer conn.Close()

	s.mu.Lock()
	client.conn = conn
	s.mu.Unlock()

	logConnected(client, c.ClientIP(), c.GetString("username"))

	// Reads only detect the close; clients never send anything meaningful
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	timeRange := c.Query("time_range")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		r := s.source.Metrics(ctx, req, timeRange)
		if ctx.Err() != nil {
			return
		}
		if err := s.push(conn, r); err != nil {
			logger.Debug("Metrics stream client went away",
				logger.String("client_id", client.id),
				logger.Err(err))
			return
		}
		if terminal(r.Outcome) {
			closeWith(conn, websocket.ClosePolicyViolation, r.Outcome.String())
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func logConnected(client *Client, clientIP, username string) {
	fields := []zap.Field{
		logger.String("client_id", client.id),
		logger.String("database_uuid", client.uuid),
		logger.String("client_ip", clientIP),
	}
	if username == "" {
		logger.Warn("Metrics stream client connected without a username", fields...)
		return
	}
	logger.Info("Metrics stream client connected", append(fields, logger.String("username", username))...)
}

func (s *Streamer) push(conn *websocket.Conn, r gateway.Result) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(Message{
		Type:      "metrics",
		Timestamp: time.Now().UTC(),
		Data:      r.Body,
	})
}

// terminal outcomes will not change on the next tick
func terminal(o gateway.Outcome) bool {
	switch o {
	case gateway.OutcomeNotFound, gateway.OutcomeForbidden, gateway.OutcomeUnsupported, gateway.OutcomeInvalid:
		return true
	}
	return false
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// Close disconnects every client and refuses new ones
func (s *Streamer) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.cancel()
	}
	if len(clients) > 0 {
		logger.Info("Closed metrics stream clients", logger.Int("clients", len(clients)))
	}
}
