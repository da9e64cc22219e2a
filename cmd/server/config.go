package main

import (
	"flag"
	"time"
)

// Config holds all runtime configuration derived from flags (future: env vars / file).
type Config struct {
	ListenAddr    string
	BackendAddr   string
	AllowListFile string
	LogFile       string
	MetricsAddr   string
	DialTimeout   time.Duration
	Debug         bool
	// Redis-backed allow-list persistence (shared across instances)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

var cfg Config

// init registers flags into the global flag set. main() simply parses and uses cfg.
func init() {
	flag.StringVar(&cfg.ListenAddr, "listen", ":25565", "public listen address")
	flag.StringVar(&cfg.BackendAddr, "backend", "127.0.0.1:25566", "backend address to forward admitted connections to")
	flag.StringVar(&cfg.AllowListFile, "allowlist", "allowed_ips.json", "allow-list file (JSON array of CIDR strings)")
	flag.StringVar(&cfg.LogFile, "log", "logs/relay.log", "connection event log file")
	flag.StringVar(&cfg.MetricsAddr, "metrics", ":9100", "metrics and health listen address")
	flag.DurationVar(&cfg.DialTimeout, "dial-timeout", 10*time.Second, "backend dial timeout")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "redis address for allow-list persistence; empty uses the file store")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database number")
}
