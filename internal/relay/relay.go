// Package relay implements the accept/forward pipeline: a listener loop that
// hands every accepted connection to a forwarder, which consults the
// allow-list registry, dials the fixed backend and pumps bytes in both
// directions until either side goes away.
package relay

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/matst80/relayguard/internal/eventlog"
	"github.com/matst80/relayguard/internal/obs"
	"github.com/matst80/relayguard/internal/registry"
)

const pumpBufSize = 4096

type Relay struct {
	registry    *registry.Registry
	backend     string
	dialTimeout time.Duration
	events      eventlog.Sink
}

func New(reg *registry.Registry, backend string, dialTimeout time.Duration, events eventlog.Sink) *Relay {
	return &Relay{registry: reg, backend: backend, dialTimeout: dialTimeout, events: events}
}

// Serve accepts connections until ctx is cancelled. The caller closes ln on
// cancellation, which unblocks Accept; already-forwarded connections are left
// to finish on their own (soft shutdown, no drain).
func (r *Relay) Serve(ctx context.Context, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				obs.Error("accept.temp", obs.Fields{"err": err.Error()})
				continue
			}
			return
		}
		go r.handle(c)
	}
}

func (r *Relay) handle(client net.Conn) {
	remote := client.RemoteAddr().String()
	r.events.Append(fmt.Sprintf("Connection attempt from %s", remote))

	ap, err := netip.ParseAddrPort(remote)
	if err != nil {
		obs.Error("conn.remote_addr", obs.Fields{"remote": remote, "err": err.Error()})
		obs.ErrorsTotal.WithLabelValues("remote_addr").Inc()
		_ = client.Close()
		return
	}
	srcIP := ap.Addr().Unmap()

	if !r.registry.CheckAllowed(srcIP) {
		obs.ConnectionsRejected.Inc()
		obs.Info("conn.rejected", obs.Fields{"src": remote})
		r.events.Append(fmt.Sprintf("Rejected: %s is not in the allowed list", srcIP))
		_ = client.Close()
		return
	}

	d := net.Dialer{Timeout: r.dialTimeout}
	backend, err := d.Dial("tcp", r.backend)
	if err != nil {
		obs.BackendDialErrors.Inc()
		obs.Error("conn.dial", obs.Fields{"src": remote, "backend": r.backend, "err": err.Error()})
		r.events.Append(fmt.Sprintf("Error connecting to destination: %v", err))
		_ = client.Close()
		return
	}

	obs.ConnectionsAccepted.Inc()
	obs.ActiveConnections.Inc()
	obs.Info("conn.forwarded", obs.Fields{"src": remote, "backend": r.backend})
	r.events.Append(fmt.Sprintf("Connection from %s accepted and forwarded", srcIP))
	r.events.Append(fmt.Sprintf("%s connected -> %s", remote, r.backend))

	start := time.Now()
	var wg sync.WaitGroup
	var once sync.Once
	closeBoth := func() { _ = client.Close(); _ = backend.Close() }
	wg.Add(2)
	go r.pump(&wg, &once, closeBoth, client, backend, fmt.Sprintf("%s -> %s", remote, r.backend), "client_to_backend")
	go r.pump(&wg, &once, closeBoth, backend, client, fmt.Sprintf("%s -> %s", r.backend, remote), "backend_to_client")
	go func() {
		wg.Wait()
		obs.ActiveConnections.Dec()
		obs.ConnectionDurationSecs.Observe(time.Since(start).Seconds())
	}()
}

// pump relays src to dst until EOF or an I/O error, then closes both ends so
// the opposite pump observes net.ErrClosed and tears down too. The error is
// never surfaced; only its classification lands in the completion record.
func (r *Relay) pump(wg *sync.WaitGroup, once *sync.Once, closeBoth func(), src, dst net.Conn, label, direction string) {
	defer wg.Done()
	var total int64
	start := time.Now()
	cause := "eof"
	buf := make([]byte, pumpBufSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				cause = classify(werr)
				break
			}
			total += int64(n)
		}
		if err != nil {
			cause = classify(err)
			break
		}
	}
	once.Do(closeBoth)
	obs.BytesTransferred.WithLabelValues(direction).Add(float64(total))
	r.events.Append(fmt.Sprintf("%s closed | Bytes: %d | Duration: %.2fs | Cause: %s", label, total, time.Since(start).Seconds(), cause))
}
