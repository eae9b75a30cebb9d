// Package metrics exposes Prometheus counters and gauges for the arbitrage
// bot: orders placed per venue/side, trade results, spread/threshold
// gauges, and position gauges, served at /metrics in Prometheus text
// exposition format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_orders_placed_total",
			Help: "Orders placed, by venue and side",
		},
		[]string{"venue", "side"},
	)

	OrdersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_orders_filled_total",
			Help: "Orders filled, by venue and side",
		},
		[]string{"venue", "side"},
	)

	MakerOrderTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_maker_order_timeouts_total",
			Help: "Maker post-only orders that timed out and were cancelled",
		},
	)

	TradesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_trades_completed_total",
			Help: "Completed maker+taker trade pairs, by direction (long|short) and close/open",
		},
		[]string{"direction", "kind"},
	)

	NakedPositionEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_naked_position_events_total",
			Help: "Times a naked (same-sign, both-venue) position was detected",
		},
	)

	TakerHedgeTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_taker_hedge_timeouts_total",
			Help: "Taker hedge orders whose terminal status was not confirmed within the safety timeout",
		},
	)

	TakerHedgeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_taker_hedge_failures_total",
			Help: "Taker hedge orders fully canceled without any fill",
		},
	)

	LongSpread = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_long_spread",
			Help: "Current long-direction spread (taker bid minus maker bid, in quote currency)",
		},
	)

	ShortSpread = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_short_spread",
			Help: "Current short-direction spread (maker ask minus taker ask, in quote currency)",
		},
	)

	LongThreshold = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_long_threshold",
			Help: "Current long-direction entry threshold, in quote currency",
		},
	)

	ShortThreshold = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_short_threshold",
			Help: "Current short-direction entry threshold, in quote currency",
		},
	)

	MakerPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_maker_position",
			Help: "Current maker venue position size (signed)",
		},
	)

	TakerPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_taker_position",
			Help: "Current taker venue position size (signed)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersPlaced, OrdersFilled, MakerOrderTimeouts,
		TradesCompleted, NakedPositionEvents,
		TakerHedgeTimeouts, TakerHedgeFailures,
		LongSpread, ShortSpread, LongThreshold, ShortThreshold,
		MakerPosition, TakerPosition,
	)
}

// Server exposes the registry over HTTP at /metrics.
type Server struct {
	httpServer *http.Server
}

// NewServer creates (but does not start) the metrics HTTP server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts serving until ctx is cancelled, then shuts down within 5s.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
