package main

import (
	"time"

	"github.com/matst80/relayguard/internal/registry"
)

// Stats is the current allow-list snapshot for the state API.
type Stats struct {
	Networks []string `json:"networks"`
	Count    int      `json:"count"`
	Now      string   `json:"now"`
}

func collectStats(reg *registry.Registry) Stats {
	list := reg.List()
	networks := make([]string, len(list))
	for i, n := range list {
		networks[i] = n.String()
	}
	return Stats{Networks: networks, Count: len(networks), Now: time.Now().UTC().Format(time.RFC3339)}
}
