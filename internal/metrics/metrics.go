// Package metrics records per-run batch gauges and writes them in the
// Prometheus text format for a node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"swingTrader/internal/risk"
	"swingTrader/internal/screening"
	"swingTrader/internal/tracker"
)

// Batch holds the gauges for one daily run.
type Batch struct {
	reg *prometheus.Registry

	universe        prometheus.Gauge
	stageSurvivors  *prometheus.GaugeVec
	signalsAccepted prometheus.Gauge
	signalsRejected *prometheus.GaugeVec
	signalsTaken    prometheus.Gauge
	ingested        prometheus.Gauge
	actions         *prometheus.GaugeVec
	priceFailures   prometheus.Gauge
	activePositions prometheus.Gauge
	closedToday     prometheus.Gauge
	lastRun         *prometheus.GaugeVec
}

// New creates a Batch on its own registry.
func New() *Batch {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Batch{
		reg: reg,
		universe: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_screen_universe",
			Help: "Snapshots entering screening",
		}),
		stageSurvivors: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swingtrader_screen_survivors",
			Help: "Rows remaining after each screening sub-filter",
		}, []string{"layer", "filter"}),
		signalsAccepted: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_signals_accepted",
			Help: "Shortlist rows converted into trade signals",
		}),
		signalsRejected: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swingtrader_signals_rejected",
			Help: "Shortlist rows rejected by sizing or cost checks",
		}, []string{"reason"}),
		signalsTaken: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_signals_allocated",
			Help: "Signals kept after capacity allocation",
		}),
		ingested: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_positions_ingested",
			Help: "Signals opened as new positions this run",
		}),
		actions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swingtrader_tracker_actions",
			Help: "Tracker actions emitted this run",
		}, []string{"rule"}),
		priceFailures: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_price_failures",
			Help: "Active positions whose price could not be refreshed",
		}),
		activePositions: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_positions_active",
			Help: "Active positions after the run",
		}),
		closedToday: f.NewGauge(prometheus.GaugeOpts{
			Name: "swingtrader_positions_closed",
			Help: "Positions closed this run",
		}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swingtrader_last_run_timestamp_seconds",
			Help: "Unix time each stage last completed",
		}, []string{"stage"}),
	}
}

// Registry exposes the underlying registry.
func (b *Batch) Registry() *prometheus.Registry {
	return b.reg
}

// ObserveScreen records screening survivors.
func (b *Batch) ObserveScreen(res screening.Result, at time.Time) {
	b.universe.Set(float64(res.Universe))
	for _, s := range res.Stages {
		b.stageSurvivors.WithLabelValues(strconv.Itoa(s.Layer), s.Filter).Set(float64(s.Remaining))
	}
	b.lastRun.WithLabelValues("screen").Set(float64(at.Unix()))
}

// ObserveSignals records signal construction and allocation.
func (b *Batch) ObserveSignals(res risk.BuildResult, allocated int, at time.Time) {
	b.signalsAccepted.Set(float64(len(res.Signals)))
	for reason, n := range res.Rejected {
		b.signalsRejected.WithLabelValues(reason).Set(float64(n))
	}
	b.signalsTaken.Set(float64(allocated))
	b.lastRun.WithLabelValues("analyze").Set(float64(at.Unix()))
}

// ObserveTick records a tracker tick.
func (b *Batch) ObserveTick(res tracker.TickResult, active int, at time.Time) {
	b.ingested.Set(float64(res.Ingested))
	counts := make(map[string]int)
	for _, a := range res.Actions {
		counts[string(a.Rule)]++
	}
	for rule, n := range counts {
		b.actions.WithLabelValues(rule).Set(float64(n))
	}
	b.priceFailures.Set(float64(res.PriceFailures))
	b.activePositions.Set(float64(active))
	b.closedToday.Set(float64(len(res.Closed)))
	b.lastRun.WithLabelValues("track").Set(float64(at.Unix()))
}

// Write stores the gauges at path. An empty path disables writing.
func (b *Batch) Write(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, b.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
