package registry

import (
	"net/netip"
	"sync"

	"github.com/matst80/relayguard/internal/obs"
)

// Outcome reports the result of a registry mutation or parse.
type Outcome int

const (
	Added Outcome = iota
	Removed
	AlreadyPresent
	NotFound
	InvalidFormat
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case AlreadyPresent:
		return "already-present"
	case NotFound:
		return "not-found"
	case InvalidFormat:
		return "invalid-format"
	default:
		return "unknown"
	}
}

// Registry is the mutable set of allowed networks. Entries keep insertion
// order for display and persistence; containment checks ignore order. All
// access goes through a single mutex, including the synchronous persist on
// mutation, so concurrent console edits and allow checks never interleave.
type Registry struct {
	mu       sync.Mutex
	networks []netip.Prefix
	store    Store
}

func New(store Store) *Registry {
	return &Registry{store: store}
}

// ParseNetwork accepts CIDR notation or a bare IP, which becomes a
// single-host network. The result is canonicalized (host bits masked).
func ParseNetwork(s string) (netip.Prefix, bool) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Masked(), true
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return netip.PrefixFrom(a, a.BitLen()), true
	}
	return netip.Prefix{}, false
}

// Load replaces the in-memory set with the persisted one. Entries that fail
// to parse are skipped with a warning rather than aborting the load.
func (r *Registry) Load() error {
	entries, err := r.store.Load()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks = r.networks[:0]
	for _, e := range entries {
		p, ok := ParseNetwork(e)
		if !ok {
			obs.Warn("registry.load.skip", obs.Fields{"entry": e})
			continue
		}
		if !r.containsLocked(p) {
			r.networks = append(r.networks, p)
		}
	}
	obs.AllowedNetworks.Set(float64(len(r.networks)))
	return nil
}

// CheckAllowed reports whether addr falls inside at least one entry.
func (r *Registry) CheckAllowed(addr netip.Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.networks {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}

// Add inserts a network and persists the full set. On a persist failure the
// in-memory insert stands and the error is returned for the caller to report;
// the on-disk copy stays stale until the next successful mutation.
func (r *Registry) Add(cidr string) (Outcome, error) {
	p, ok := ParseNetwork(cidr)
	if !ok {
		return InvalidFormat, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containsLocked(p) {
		return AlreadyPresent, nil
	}
	r.networks = append(r.networks, p)
	obs.AllowedNetworks.Set(float64(len(r.networks)))
	return Added, r.persistLocked()
}

// Remove deletes a network and persists the full set. Persist failures are
// handled as in Add.
func (r *Registry) Remove(cidr string) (Outcome, error) {
	p, ok := ParseNetwork(cidr)
	if !ok {
		return InvalidFormat, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.networks {
		if n == p {
			r.networks = append(r.networks[:i], r.networks[i+1:]...)
			obs.AllowedNetworks.Set(float64(len(r.networks)))
			return Removed, r.persistLocked()
		}
	}
	return NotFound, nil
}

// List returns the entries in insertion order.
func (r *Registry) List() []netip.Prefix {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]netip.Prefix, len(r.networks))
	copy(out, r.networks)
	return out
}

func (r *Registry) containsLocked(p netip.Prefix) bool {
	for _, n := range r.networks {
		if n == p {
			return true
		}
	}
	return false
}

func (r *Registry) persistLocked() error {
	entries := make([]string, len(r.networks))
	for i, n := range r.networks {
		entries[i] = n.String()
	}
	return r.store.Save(entries)
}
