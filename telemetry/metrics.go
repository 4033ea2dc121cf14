package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports simulation gauges and counters to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	Tick          prometheus.Gauge
	Creatures     prometheus.Gauge
	Plants        prometheus.Gauge
	Meats         prometheus.Gauge
	SpeciesTotal  prometheus.Gauge
	SpeciesActive prometheus.Gauge
	PlantMatter   prometheus.Gauge

	Events    *prometheus.CounterVec
	Reactions prometheus.Counter
	EatenMass prometheus.Counter
	TickTime  prometheus.Histogram
}

// NewMetrics registers the simulation metrics on a fresh registry. runID is
// attached to every series as a constant label.
func NewMetrics(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"run_id": runID}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lifesim",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		reg.MustRegister(g)
		return g
	}

	m := &Metrics{
		registry:      reg,
		Tick:          gauge("tick", "Current simulation tick."),
		Creatures:     gauge("creatures", "Living creatures."),
		Plants:        gauge("plants", "Plants in the world."),
		Meats:         gauge("meats", "Carcasses in the world."),
		SpeciesTotal:  gauge("species_total", "Species ever founded."),
		SpeciesActive: gauge("species_active", "Species with a living member."),
		PlantMatter:   gauge("plant_matter", "Plant matter held by all plants."),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "lifesim",
			Name:        "events_total",
			Help:        "Lifecycle events by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		Reactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "lifesim",
			Name:        "reactions_total",
			Help:        "Conversion rule reactions run by creatures.",
			ConstLabels: labels,
		}),
		EatenMass: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "lifesim",
			Name:        "eaten_mass_total",
			Help:        "Mass bitten out of plants and carcasses.",
			ConstLabels: labels,
		}),
		TickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "lifesim",
			Name:        "tick_seconds",
			Help:        "Wall time of one simulation step.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	reg.MustRegister(m.Events, m.Reactions, m.EatenMass, m.TickTime)
	return m
}

// Record counts an event. A nil Metrics ignores it.
func (m *Metrics) Record(ev Event) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(ev.Type.String()).Inc()
	if ev.Type == EventBite {
		m.EatenMass.Add(ev.Amount)
	}
}

// AddReactions counts conversion reactions.
func (m *Metrics) AddReactions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Reactions.Add(float64(n))
}

// Observe updates the gauges from a population sample.
func (m *Metrics) Observe(tick int, pop Population, d time.Duration) {
	if m == nil {
		return
	}
	m.Tick.Set(float64(tick))
	m.Creatures.Set(float64(pop.Creatures))
	m.Plants.Set(float64(pop.Plants))
	m.Meats.Set(float64(pop.Meats))
	m.SpeciesTotal.Set(float64(pop.SpeciesTotal))
	m.SpeciesActive.Set(float64(pop.SpeciesActive))
	m.PlantMatter.Set(pop.PlantMatter)
	m.TickTime.Observe(d.Seconds())
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics_listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
