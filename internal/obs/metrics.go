package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections       = promauto.NewGauge(prometheus.GaugeOpts{Name: "relayguard_active_connections", Help: "Currently forwarded connections"})
	AllowedNetworks         = promauto.NewGauge(prometheus.GaugeOpts{Name: "relayguard_allowed_networks", Help: "Networks currently in the allow-list"})
	ConnectionsAccepted     = promauto.NewCounter(prometheus.CounterOpts{Name: "relayguard_connections_accepted_total", Help: "Connections admitted and forwarded"})
	ConnectionsRejected     = promauto.NewCounter(prometheus.CounterOpts{Name: "relayguard_connections_rejected_total", Help: "Connections refused by the allow-list"})
	BackendDialErrors       = promauto.NewCounter(prometheus.CounterOpts{Name: "relayguard_backend_dial_errors_total", Help: "Failed dials to the backend"})
	BytesTransferred        = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relayguard_bytes_transferred_total", Help: "Relayed bytes by direction"}, []string{"direction"})
	ErrorsTotal             = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relayguard_errors_total", Help: "Errors by type"}, []string{"type"})
	ConnectionDurationSecs  = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relayguard_connection_duration_seconds", Help: "Forwarded connection lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
)
