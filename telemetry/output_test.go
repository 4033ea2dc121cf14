package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	require.NoError(t, err)
	assert.Nil(t, om)

	// A nil manager accepts writes.
	assert.NoError(t, om.WriteTelemetry(WindowStats{}))
	assert.NoError(t, om.WriteSpecies([]SpeciesRow{{Species: "A"}}))
	assert.NoError(t, om.Close())
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	require.NoError(t, err)

	require.NoError(t, om.WriteTelemetry(WindowStats{WindowEndTick: 300, Creatures: 12}))
	require.NoError(t, om.WriteTelemetry(WindowStats{WindowEndTick: 600, Creatures: 15}))
	require.NoError(t, om.WriteSpecies([]SpeciesRow{
		{WindowEnd: 600, Species: "A", Members: 10},
		{WindowEnd: 600, Species: "B", Ancestor: "A", Members: 5, BornTick: 420},
	}))
	require.NoError(t, om.WriteBookmark(Bookmark{Type: BookmarkPopulationCrash, Tick: 600, Description: "drop"}))
	require.NoError(t, om.WritePerf(PerfStats{AvgTickDuration: time.Millisecond}, 600))
	require.NoError(t, om.Close())

	lines := readLines(t, filepath.Join(dir, "telemetry.csv"))
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "window_end,sim_time,creatures"), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "600,"), lines[2])

	species := readLines(t, filepath.Join(dir, "species.csv"))
	require.Len(t, species, 3)
	assert.Equal(t, "window_end,species,ancestor,members,born_tick", species[0])
	assert.Equal(t, "600,B,A,5,420", species[2])

	bookmarks := readLines(t, filepath.Join(dir, "bookmarks.csv"))
	assert.Equal(t, []string{"type,tick,description", "population_crash,600,drop"}, bookmarks)

	perf := readLines(t, filepath.Join(dir, "perf.csv"))
	require.Len(t, perf, 2)
	assert.True(t, strings.HasPrefix(perf[1], "600,1000,"), perf[1])
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
