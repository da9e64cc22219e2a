package registry

import "github.com/matst80/relayguard/internal/obs"

// Store persists the allow-list as a flat set of CIDR strings. The registry
// overwrites the full set on every mutation; there is no append path.
type Store interface {
	Load() ([]string, error)
	Save(entries []string) error
}

// NewStore creates either a file-backed or Redis-backed store based on
// configuration.
func NewStore(path, redisAddr, redisPassword string, redisDB int) (Store, error) {
	if redisAddr == "" {
		obs.Info("allowlist.backend", obs.Fields{"type": "file", "path": path})
		return newFileStore(path), nil
	}
	obs.Info("allowlist.backend", obs.Fields{"type": "redis", "addr": redisAddr})
	return newRedisStore(redisAddr, redisPassword, redisDB)
}
