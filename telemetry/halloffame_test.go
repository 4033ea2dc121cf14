package telemetry

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/lifesim/config"
)

func testHallConfig() config.HallOfFameConfig {
	return config.HallOfFameConfig{Enabled: true, Size: 3, MinChildren: 1, MinAge: 100}
}

func TestHallOfFameEntryCriteria(t *testing.T) {
	hof := NewHallOfFame(testHallConfig(), rand.New(rand.NewPCG(1, 2)))

	assert.False(t, hof.Consider(HallEntry{CreatureID: 1, Age: 50}), "young and childless")
	assert.True(t, hof.Consider(HallEntry{CreatureID: 2, Children: 1}), "reproduced")
	assert.True(t, hof.Consider(HallEntry{CreatureID: 3, Age: 150}), "old enough")
	assert.Equal(t, 2, hof.Len())
}

func TestHallOfFameOrderAndCapacity(t *testing.T) {
	hof := NewHallOfFame(testHallConfig(), rand.New(rand.NewPCG(1, 2)))

	hof.Consider(HallEntry{CreatureID: 1, Children: 1, Age: 10})
	hof.Consider(HallEntry{CreatureID: 2, Children: 3, Age: 10})
	hof.Consider(HallEntry{CreatureID: 3, Children: 1, Age: 500})
	// Full: a worse entry is rejected, a better one evicts the last.
	assert.False(t, hof.Consider(HallEntry{CreatureID: 4, Children: 1, Age: 5}))
	assert.True(t, hof.Consider(HallEntry{CreatureID: 5, Children: 2}))

	var ids []uint32
	for _, e := range hof.Entries() {
		ids = append(ids, e.CreatureID)
	}
	assert.Equal(t, []uint32{2, 5, 3}, ids)
}

func TestHallOfFameSampleCopiesTraits(t *testing.T) {
	hof := NewHallOfFame(testHallConfig(), rand.New(rand.NewPCG(1, 2)))
	assert.Nil(t, hof.Sample(), "empty hall")

	hof.Consider(HallEntry{CreatureID: 1, Children: 2, Traits: map[string]float64{"speed": 0.5}})
	e := hof.Sample()
	require.NotNil(t, e)
	e.Traits["speed"] = 1

	assert.Equal(t, 0.5, hof.Entries()[0].Traits["speed"], "sample must not alias the stored genome")
}

func TestHallOfFameJSONRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	hof := NewHallOfFame(testHallConfig(), rng)
	hof.Consider(HallEntry{CreatureID: 7, Species: "C", Children: 4, Age: 900, Traits: map[string]float64{"speed": 0.25}})
	hof.Consider(HallEntry{CreatureID: 8, Species: "D", Children: 1, Age: 300})

	data, err := hof.MarshalJSON()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "hall_of_fame.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadHallOfFameFromFile(path, testHallConfig(), rng)
	require.NoError(t, err)
	assert.Equal(t, hof.Entries(), loaded.Entries())
}

func TestLoadHallOfFameMissingFile(t *testing.T) {
	_, err := LoadHallOfFameFromFile(filepath.Join(t.TempDir(), "nope.json"), testHallConfig(), rand.New(rand.NewPCG(1, 2)))
	assert.Error(t, err)
}
