package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// DefaultIPPort is the ser2net-style TCP port used when none is configured.
const DefaultIPPort = 2000

const defaultIPDialTimeout = 6 * time.Second

// IPTransport reaches a serial peripheral through a TCP serial bridge.
type IPTransport struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
}

func NewIPTransport(host string, port int) *IPTransport {
	if port == 0 {
		port = DefaultIPPort
	}

	return &IPTransport{host: host, port: port}
}

func (t *IPTransport) Name() string {
	return "ip"
}

func (t *IPTransport) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.host
}

func (t *IPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.targetLocked()
}

func (t *IPTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *IPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.targetLocked()
	logger := transportLogger("ip", "target", target)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if t.host == "" {
		logger.Warn("connect failed: host is empty")

		return errors.New("ip host is empty")
	}

	dialer := net.Dialer{Timeout: defaultIPDialTimeout}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial tcp: %w", err)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *IPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("ip", "target", t.targetLocked())
	if t.conn == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return nil
}

func (t *IPTransport) Read(ctx context.Context, p []byte) (int, error) {
	conn, err := t.currentConn()
	if err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := conn.Read(p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}

		return n, err
	}

	return n, nil
}

func (t *IPTransport) Write(ctx context.Context, p []byte) error {
	logger := transportLogger("ip")
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("write failed: not connected", "error", err)

		return err
	}

	// The write deadline is per connection, so it belongs to the lock holder.
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	if _, err := conn.Write(p); err != nil {
		logger.Warn("write failed", "len", len(p), "error", err)

		return fmt.Errorf("write tcp: %w", err)
	}
	logger.Debug("write", "len", len(p))

	return nil
}

func (t *IPTransport) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotConnected
	}

	return t.conn, nil
}

func (t *IPTransport) targetLocked() string {
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}
