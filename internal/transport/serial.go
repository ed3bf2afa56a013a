package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// The port is polled with a short timeout so reads can observe ctx cancellation.
const defaultSerialReadTimeout = 300 * time.Millisecond

type SerialTransport struct {
	portName string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	writeMu sync.Mutex
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) PortName() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.portName
}

func (t *SerialTransport) BaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.baudRate
}

func (t *SerialTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.portName == "" {
		return ""
	}

	return t.portName + "@" + strconv.Itoa(t.baudRate)
}

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.port != nil
}

func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("serial", "port", t.portName, "baud", t.baudRate)

	if t.port != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.portName == "" {
		logger.Warn("connect failed: port is empty")

		return errors.New("serial port is empty")
	}
	if t.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", t.baudRate)
	}

	logger.Info("opening port")
	port, err := serial.Open(t.portName, &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		logger.Warn("open port failed", "error", err)

		return fmt.Errorf("open serial port %q: %w", t.portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()

		return fmt.Errorf("set serial read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Debug("reset input buffer failed", "error", err)
	}
	t.port = port
	logger.Info("connected")

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("serial", "port", t.portName)
	if t.port == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return nil
}

func (t *SerialTransport) Read(ctx context.Context, p []byte) (int, error) {
	port, err := t.currentPort()
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := port.Read(p)
		if err != nil {
			if isPortClosed(err) {
				return n, io.EOF
			}

			return n, fmt.Errorf("read serial port: %w", err)
		}
		if n > 0 {
			return n, nil
		}
	}
}

func (t *SerialTransport) Write(ctx context.Context, p []byte) error {
	port, err := t.currentPort()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFull(ctx, port, p); err != nil {
		transportLogger("serial").Warn("write failed", "len", len(p), "error", err)

		return fmt.Errorf("write serial port: %w", err)
	}
	transportLogger("serial").Debug("write", "len", len(p))

	return nil
}

func (t *SerialTransport) currentPort() (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, ErrNotConnected
	}

	return t.port, nil
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortClosed
	}

	return false
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}

	return nil
}
