package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted and persisted",
	})
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_cache_hits_total",
		Help: "Read-model cache hits",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_cache_misses_total",
		Help: "Read-model cache misses",
	})
)

func Init() {
	prometheus.MustRegister(Connections, MessagesSent, CacheHits, CacheMisses)
}

// Handler returns the scrape endpoint for Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
