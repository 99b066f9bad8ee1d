// Package restart requests container restarts without waiting for them.
// A password change only takes effect after the container restarts, so the
// gateway persists the credential first and then asks for a restart here.
package restart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"

	"github.com/nats-io/nats.go"
)

// Requester asks for a container restart. Request returns once the restart
// has been handed off, never after it completes.
type Requester interface {
	Request(handle *models.DatabaseHandle) error
	Close() error
}

// New builds the requester selected by cfg.Mode
func New(cfg *config.RestartConfig, runner transport.Transport, timeout time.Duration) (Requester, error) {
	switch cfg.Mode {
	case "nats":
		return NewPublisher(cfg.NatsURL, cfg.Subject)
	case "transport", "":
		return NewDirect(runner, timeout), nil
	default:
		return nil, fmt.Errorf("unknown restart mode %q", cfg.Mode)
	}
}

// Direct restarts containers itself with docker restart in a background goroutine
type Direct struct {
	runner  transport.Transport
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDirect creates a transport-backed requester
func NewDirect(runner transport.Transport, timeout time.Duration) *Direct {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Direct{runner: runner, timeout: timeout}
}

// Request starts the restart and returns immediately
func (d *Direct) Request(handle *models.DatabaseHandle) error {
	if handle.Server == nil {
		return fmt.Errorf("database %s has no server", handle.UUID)
	}

	// Copy what the goroutine needs; the handle belongs to the request
	server := *handle.Server
	container := handle.ContainerName()
	engine := string(handle.Engine)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if _, err := d.runner.Run(ctx, &server, []string{engines.RestartCommand(container)}); err != nil {
			logger.Error("Container restart failed",
				logger.Database(container, engine),
				logger.Err(err))
			return
		}
		logger.Info("Container restarted",
			logger.Database(container, engine),
			logger.Duration("took", time.Since(start)))
	}()
	return nil
}

// Wait blocks until every started restart has finished
func (d *Direct) Wait() {
	d.wg.Wait()
}

// Close waits for running restarts
func (d *Direct) Close() error {
	d.Wait()
	return nil
}

// Message is published for every restart request
type Message struct {
	UUID        string    `json:"uuid"`
	Engine      string    `json:"engine"`
	Container   string    `json:"container"`
	ServerID    int64     `json:"server_id"`
	ServerHost  string    `json:"server_host"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewMessage describes a restart of handle's container
func NewMessage(handle *models.DatabaseHandle) Message {
	msg := Message{
		UUID:        handle.UUID,
		Engine:      string(handle.Engine),
		Container:   handle.ContainerName(),
		RequestedAt: time.Now().UTC(),
	}
	if handle.Server != nil {
		msg.ServerID = handle.Server.ID
		msg.ServerHost = handle.Server.Host
	}
	return msg
}

// Publisher hands restart requests to an external worker over NATS
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS at url
func NewPublisher(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("dbadmin-restart"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Restart publisher connected to NATS",
		logger.String("url", url),
		logger.String("subject", subject))

	return &Publisher{conn: conn, subject: subject}, nil
}

// Request publishes a restart message
func (p *Publisher) Request(handle *models.DatabaseHandle) error {
	data, err := json.Marshal(NewMessage(handle))
	if err != nil {
		return fmt.Errorf("failed to encode restart request: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish restart request: %w", err)
	}

	logger.Info("Restart requested",
		logger.Database(handle.UUID, string(handle.Engine)),
		logger.String("subject", p.subject))
	return nil
}

// Close drains pending publishes and disconnects
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// IsConnected reports whether the NATS connection is up
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
