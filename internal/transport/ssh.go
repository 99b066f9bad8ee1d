package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrNoHostKeyPolicy is returned when neither known_hosts_path nor
// insecure_ignore_host_key is configured
var ErrNoHostKeyPolicy = errors.New("ssh host key verification needs transport.known_hosts_path (or transport.insecure_ignore_host_key: true)")

// SSH runs commands on a remote server over a fresh SSH session per call
type SSH struct {
	defaultUser    string
	defaultKey     []byte
	connectTimeout time.Duration
	hostKeys       ssh.HostKeyCallback
}

// NewSSH creates an SSH transport from configuration
func NewSSH(cfg *config.TransportConfig) (*SSH, error) {
	t := &SSH{
		defaultUser:    cfg.SSHUser,
		connectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
	}
	if t.defaultUser == "" {
		t.defaultUser = "root"
	}
	if t.connectTimeout <= 0 {
		t.connectTimeout = 10 * time.Second
	}

	if cfg.SSHKeyPath != "" {
		key, err := os.ReadFile(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		t.defaultKey = key
	}

	switch {
	case cfg.KnownHostsPath != "":
		callback, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		t.hostKeys = callback
	case cfg.InsecureIgnoreHostKey:
		logger.Warn("SSH host key verification disabled by insecure_ignore_host_key")
		t.hostKeys = ssh.InsecureIgnoreHostKey()
	default:
		return nil, ErrNoHostKeyPolicy
	}

	return t, nil
}

// Run implements Transport
func (t *SSH) Run(ctx context.Context, server *models.Server, commands []string) (string, error) {
	start := time.Now()

	client, err := t.dial(ctx, server)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open ssh session on %s: %w", server.Name, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdin = strings.NewReader(script(commands))
	session.Stdout = &stdout
	session.Stderr = &stderr

	// the script is read from stdin so its text never shows up in a remote argv
	done := make(chan error, 1)
	go func() {
		done <- session.Run("sh -s")
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	case err = <-done:
	}

	logger.Debug("Remote command finished",
		logger.String("server", server.Name),
		logger.Int("commands", len(commands)),
		logger.Duration("elapsed", time.Since(start)))

	if err != nil {
		return stdout.String(), commandError(server, err, stderr.String())
	}
	return stdout.String(), nil
}

func (t *SSH) dial(ctx context.Context, server *models.Server) (*ssh.Client, error) {
	key := t.defaultKey
	if server.PrivateKey != "" {
		key = []byte(server.PrivateKey)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("no private key available for server %s", server.Name)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key for %s: %w", server.Name, err)
	}

	user := server.User
	if user == "" {
		user = t.defaultUser
	}
	port := server.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(server.Host, strconv.Itoa(port))

	clientConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: t.hostKeys,
		Timeout:         t.connectTimeout,
	}

	dialer := net.Dialer{Timeout: t.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}
