package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordAndObserve(t *testing.T) {
	m := NewMetrics("run-1")

	m.Record(NewBirthEvent(1, 2, 1, "A"))
	m.Record(NewBirthEvent(2, 3, 1, "A"))
	m.Record(NewBiteEvent(2, 2, 12.5))
	m.AddReactions(7)
	m.Observe(42, Population{Creatures: 9, Plants: 4, SpeciesTotal: 3, SpeciesActive: 2}, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, line := range []string{
		`lifesim_events_total{run_id="run-1",type="creature_born"} 2`,
		`lifesim_eaten_mass_total{run_id="run-1"} 12.5`,
		`lifesim_reactions_total{run_id="run-1"} 7`,
		`lifesim_tick{run_id="run-1"} 42`,
		`lifesim_creatures{run_id="run-1"} 9`,
		`lifesim_tick_seconds_count{run_id="run-1"} 1`,
	} {
		assert.Contains(t, body, line)
	}
}

func TestNilMetricsIgnoresUpdates(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Record(NewDeathEvent(1, 1, "A", 10))
		m.AddReactions(3)
		m.Observe(1, Population{}, 0)
	})
}

func TestMetricsObserveSetsGauges(t *testing.T) {
	m := NewMetrics("run-1")
	m.Observe(300, Population{Meats: 4, SpeciesActive: 3, PlantMatter: 1e6}, time.Millisecond)
	m.AddReactions(-3)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Meats))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SpeciesActive))
	assert.Equal(t, 1e6, testutil.ToFloat64(m.PlantMatter))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Reactions))
}
