// Package console implements the interactive control loop that edits the
// allow-list while the relay is serving traffic. It is a local stdin/stdout
// protocol only; there is no network control surface.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matst80/relayguard/internal/eventlog"
	"github.com/matst80/relayguard/internal/obs"
	"github.com/matst80/relayguard/internal/registry"
)

const usage = "Available commands: add [ip or cidr], remove [ip or cidr], list, stop"

type Console struct {
	registry *registry.Registry
	in       io.Reader
	out      io.Writer
	events   eventlog.Sink
	stop     func()
}

// New wires a console over the given streams. stop is invoked at most once,
// on an exit command or end of input, and must be safe to call concurrently
// with a signal-driven shutdown (context.CancelFunc is).
func New(reg *registry.Registry, in io.Reader, out io.Writer, events eventlog.Sink, stop func()) *Console {
	return &Console{registry: reg, in: in, out: out, events: events, stop: stop}
}

// Run reads commands until shutdown is requested or the input stream ends.
func (c *Console) Run(ctx context.Context) {
	sc := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				obs.Error("console.read", obs.Fields{"err": err.Error()})
			}
			c.stop()
			return
		}
		if c.dispatch(strings.TrimSpace(sc.Text())) {
			return
		}
	}
}

// dispatch handles one command line and reports whether the loop should end.
func (c *Console) dispatch(line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "add":
		if arg == "" {
			fmt.Fprintln(c.out, usage)
			return false
		}
		c.add(arg)
	case "remove":
		if arg == "" {
			fmt.Fprintln(c.out, usage)
			return false
		}
		c.remove(arg)
	case "list":
		fmt.Fprintln(c.out, "Allowed IPs / Networks:")
		for _, n := range c.registry.List() {
			fmt.Fprintf(c.out, " - %s\n", n)
		}
	case "exit", "quit", "stop":
		c.events.Append("Stopping server via command")
		c.stop()
		return true
	default:
		fmt.Fprintln(c.out, usage)
	}
	return false
}

func (c *Console) add(arg string) {
	outcome, err := c.registry.Add(arg)
	switch outcome {
	case registry.InvalidFormat:
		fmt.Fprintf(c.out, "Invalid IP or network format: %s\n", arg)
	case registry.AlreadyPresent:
		fmt.Fprintf(c.out, "%s is already in the allowed list\n", arg)
	case registry.Added:
		c.events.Append(fmt.Sprintf("%s added to allowed list", arg))
		fmt.Fprintf(c.out, "%s added\n", arg)
	}
	c.reportPersist(err)
}

func (c *Console) remove(arg string) {
	outcome, err := c.registry.Remove(arg)
	switch outcome {
	case registry.InvalidFormat:
		fmt.Fprintf(c.out, "Invalid IP or network format: %s\n", arg)
	case registry.NotFound:
		fmt.Fprintf(c.out, "%s not found in allowed list\n", arg)
	case registry.Removed:
		c.events.Append(fmt.Sprintf("%s removed from allowed list", arg))
		fmt.Fprintf(c.out, "%s removed\n", arg)
	}
	c.reportPersist(err)
}

// reportPersist surfaces a failed allow-list save. The in-memory change has
// already taken effect; the operator needs to know the disk copy is stale.
func (c *Console) reportPersist(err error) {
	if err == nil {
		return
	}
	obs.Error("allowlist.persist", obs.Fields{"err": err.Error()})
	obs.ErrorsTotal.WithLabelValues("persist").Inc()
	fmt.Fprintf(c.out, "warning: failed to persist allow-list: %v\n", err)
}
