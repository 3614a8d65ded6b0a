// Package metrics exposes the server's optional Prometheus endpoint.
// It is pure observability: nothing it records feeds back into
// simulation, so a server run with metrics disabled behaves
// identically to one with them on.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"duelcore/pkg/server"
)

// Registry bundles every counter/gauge/histogram the server reports.
type Registry struct {
	PacketsReceived prometheus.Counter
	PacketsSent     prometheus.Counter
	PacketsDropped  prometheus.Counter
	ShotsFired      prometheus.Counter
	ShotsHit        prometheus.Counter
	PeersConnected  prometheus.Gauge
	PeerTimeouts    prometheus.Counter
	TickDuration    prometheus.Histogram
}

// NewRegistry constructs and registers all metrics under the
// "duelcore_" prefix.
func NewRegistry() *Registry {
	return &Registry{
		PacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duelcore_packets_received_total",
			Help: "UDP packets received by the server.",
		}),
		PacketsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duelcore_packets_sent_total",
			Help: "UDP packets sent by the server.",
		}),
		PacketsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duelcore_packets_dropped_total",
			Help: "Inbound packets dropped due to a full packet pool.",
		}),
		ShotsFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duelcore_shots_fired_total",
			Help: "Shots resolved by the server.",
		}),
		ShotsHit: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duelcore_shots_hit_total",
			Help: "Shots that hit a player.",
		}),
		PeersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "duelcore_peers_connected",
			Help: "Currently connected peers.",
		}),
		PeerTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duelcore_peer_timeouts_total",
			Help: "Peers dropped for inactivity.",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "duelcore_tick_duration_seconds",
			Help:    "Wall-clock duration of one server tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

// Hooks adapts the registry to server.Hooks.
func (r *Registry) Hooks() server.Hooks {
	connected := 0
	return server.Hooks{
		PacketsReceived: r.PacketsReceived.Inc,
		PacketsSent:     r.PacketsSent.Inc,
		PacketsDropped:  r.PacketsDropped.Inc,
		ShotFired:       r.ShotsFired.Inc,
		ShotHit:         r.ShotsHit.Inc,
		PeerConnected: func() {
			connected++
			r.PeersConnected.Set(float64(connected))
		},
		PeerTimedOut: func() {
			if connected > 0 {
				connected--
			}
			r.PeersConnected.Set(float64(connected))
			r.PeerTimeouts.Inc()
		},
		TickDuration: func(d time.Duration) { r.TickDuration.Observe(d.Seconds()) },
	}
}

// Serve starts the /metrics HTTP listener and blocks until ctx is
// cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
