package relay

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matst80/relayguard/internal/eventlog"
	"github.com/matst80/relayguard/internal/registry"
)

type memStore struct{ entries []string }

func (m *memStore) Load() ([]string, error) { return m.entries, nil }
func (m *memStore) Save(e []string) error   { m.entries = e; return nil }

// startEchoBackend runs a backend that echoes everything and counts accepts.
func startEchoBackend(t *testing.T, accepts *atomic.Int32) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepts.Add(1)
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
			}()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

// startRelay serves a relay in front of the given backend address.
func startRelay(t *testing.T, reg *registry.Registry, backendAddr string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("relay listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := New(reg, backendAddr, time.Second, eventlog.Nop{})
	go r.Serve(ctx, ln)
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
	})
	return ln
}

func TestRejectedSourceNeverDialsBackend(t *testing.T) {
	var accepts atomic.Int32
	backend := startEchoBackend(t, &accepts)

	reg := registry.New(&memStore{})
	reg.Add("10.99.0.0/16") // does not cover 127.0.0.1
	ln := startRelay(t, reg, backend.Addr().String())

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer c.Close()

	// The relay must close the connection without touching the backend.
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := c.Read(buf); err == nil {
		t.Fatalf("expected rejected connection to be closed")
	}
	time.Sleep(100 * time.Millisecond)
	if n := accepts.Load(); n != 0 {
		t.Errorf("backend saw %d connections for a rejected client", n)
	}
}

func TestForwardsAllowedSource(t *testing.T) {
	var accepts atomic.Int32
	backend := startEchoBackend(t, &accepts)

	reg := registry.New(&memStore{})
	reg.Add("127.0.0.1")
	ln := startRelay(t, reg, backend.Addr().String())

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer c.Close()

	msg := []byte("ping through the relay")
	if _, err := c.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, len(msg))
	if _, err := io.ReadFull(c, got); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(got) != string(msg) {
		t.Errorf("echo mismatch: got %q", got)
	}
	if n := accepts.Load(); n != 1 {
		t.Errorf("expected 1 backend connection, got %d", n)
	}
}

func TestBackendCloseTearsDownClient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close() // hang up immediately
		}
	}()

	reg := registry.New(&memStore{})
	reg.Add("127.0.0.0/8")
	relayLn := startRelay(t, reg, ln.Addr().String())

	c, err := net.Dial("tcp", relayLn.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer c.Close()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := c.Read(buf); err == nil {
		t.Errorf("expected client side to be closed after backend hangup")
	}
}

func TestClientCloseTearsDownBackend(t *testing.T) {
	backendConns := make(chan net.Conn, 1)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		backendConns <- c
	}()

	reg := registry.New(&memStore{})
	reg.Add("127.0.0.1/32")
	relayLn := startRelay(t, reg, ln.Addr().String())

	c, err := net.Dial("tcp", relayLn.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}

	var bc net.Conn
	select {
	case bc = <-backendConns:
	case <-time.After(2 * time.Second):
		t.Fatalf("backend never saw the forwarded connection")
	}
	defer bc.Close()

	_ = c.Close()

	// Both pumps must cascade: the backend side observes EOF or a reset.
	_ = bc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := bc.Read(buf); err == nil {
		t.Errorf("expected backend side to be closed after client hangup")
	}
}

func TestUnreachableBackendClosesClient(t *testing.T) {
	// Reserve a port and close it so the dial reliably fails.
	tmp, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := tmp.Addr().String()
	_ = tmp.Close()

	reg := registry.New(&memStore{})
	reg.Add("127.0.0.1/32")
	relayLn := startRelay(t, reg, deadAddr)

	c, err := net.Dial("tcp", relayLn.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer c.Close()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := c.Read(buf); err == nil {
		t.Errorf("expected connection to be closed after backend dial failure")
	}
}
