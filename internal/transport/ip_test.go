package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

func startLoopback(t *testing.T) (*net.TCPListener, string, int) {
	t.Helper()

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)

	return ln, addr.IP.String(), addr.Port
}

func TestIPTransportReadWriteRoundTrip(t *testing.T) {
	ln, host, port := startLoopback(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	tr := NewIPTransport(host, port)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	peer := <-accepted
	defer func() { _ = peer.Close() }()

	if err := tr.Write(context.Background(), []byte("{\"red\":1}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 64)
	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if got := string(buf[:n]); got != "{\"red\":1}\n" {
		t.Fatalf("unexpected bytes at peer: %q", got)
	}

	if _, err := peer.Write([]byte("{\"x\":1}\n")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	n, err = tr.Read(context.Background(), buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "{\"x\":1}\n" {
		t.Fatalf("unexpected bytes from transport: %q", got)
	}

	_ = peer.Close()
	if _, err := tr.Read(context.Background(), buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after peer close, got %v", err)
	}
}

func TestIPTransportReadObservesCancellation(t *testing.T) {
	ln, host, port := startLoopback(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	tr := NewIPTransport(host, port)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()
	peer := <-accepted
	defer func() { _ = peer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := tr.Read(ctx, make([]byte, 8))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestIPTransportWriteDeadlineBelongsToLockHolder(t *testing.T) {
	ln, host, port := startLoopback(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	tr := NewIPTransport(host, port)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()
	peer := <-accepted
	defer func() { _ = peer.Close() }()

	// Queue both writers behind the lock: first one without a deadline, then
	// one whose deadline has already passed.
	tr.writeMu.Lock()
	plainErr := make(chan error, 1)
	go func() { plainErr <- tr.Write(context.Background(), []byte("ok\n")) }()
	time.Sleep(20 * time.Millisecond)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	expiredErr := make(chan error, 1)
	go func() { expiredErr <- tr.Write(expired, []byte("late\n")) }()
	time.Sleep(20 * time.Millisecond)
	tr.writeMu.Unlock()

	if err := <-plainErr; err != nil {
		t.Fatalf("write without deadline failed: %v", err)
	}
	if err := <-expiredErr; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded for expired write, got %v", err)
	}

	buf := make([]byte, 16)
	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if got := string(buf[:n]); got != "ok\n" {
		t.Fatalf("unexpected bytes at peer: %q", got)
	}
}

func TestIPTransportNotConnected(t *testing.T) {
	tr := NewIPTransport("127.0.0.1", 1)

	if _, err := tr.Read(context.Background(), make([]byte, 1)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected %v on read, got %v", ErrNotConnected, err)
	}
	if err := tr.Write(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected %v on write, got %v", ErrNotConnected, err)
	}
}

func TestIPTransportStatusTarget(t *testing.T) {
	if got := NewIPTransport("", 0).StatusTarget(); got != "" {
		t.Fatalf("expected empty target, got %q", got)
	}
	want := net.JoinHostPort("bridge.local", strconv.Itoa(DefaultIPPort))
	if got := NewIPTransport("bridge.local", 0).StatusTarget(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
