package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_SpeciationBurst(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick:  i * 300,
			Creatures:      40,
			SpeciesFounded: 1,
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick:  1500,
		Creatures:      40,
		SpeciesFounded: 4, // 4x the average of 1
	})
	if !hasBookmark(bookmarks, BookmarkSpeciationBurst) {
		t.Error("expected speciation_burst bookmark")
	}
}

func TestBookmarkDetector_PopulationCrash(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick: i * 300,
			Creatures:     100,
			Plants:        20,
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick: 1500,
		Creatures:     50, // 50% drop
		Plants:        20,
	})
	if !hasBookmark(bookmarks, BookmarkPopulationCrash) {
		t.Error("expected population_crash bookmark")
	}

	// The peak resets after a crash, so the same level does not fire again.
	bookmarks = bd.Check(WindowStats{WindowEndTick: 1800, Creatures: 50, Plants: 20})
	if hasBookmark(bookmarks, BookmarkPopulationCrash) {
		t.Error("population_crash fired twice for the same drop")
	}
}

func TestBookmarkDetector_PopulationRebound(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{
			WindowEndTick: i * 300,
			Creatures:     2, // critical low
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick: 900,
		Creatures:     10, // 5x the minimum of 2
	})
	if !hasBookmark(bookmarks, BookmarkPopulationRebound) {
		t.Error("expected population_rebound bookmark")
	}
}

func TestBookmarkDetector_MassExtinction(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick: i * 300,
			Creatures:     60,
			SpeciesActive: 8,
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick: 1500,
		Creatures:     60,
		SpeciesActive: 3,
	})
	if !hasBookmark(bookmarks, BookmarkMassExtinction) {
		t.Error("expected mass_extinction bookmark")
	}
}

func TestBookmarkDetector_StableEcosystem(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := -1
	for i := 0; i < 10; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick: i * 300,
			Creatures:     100,
			Plants:        20,
		})
		if hasBookmark(bookmarks, BookmarkStableEcosystem) {
			if fired >= 0 {
				t.Fatalf("stable_ecosystem fired again at window %d", i)
			}
			fired = i
		}
	}
	// Stability is measured from the fifth window on and needs five in a row.
	if fired != 8 {
		t.Errorf("stable_ecosystem fired at window %d, want 8", fired)
	}
}

func TestBookmarkDetector_NoHistoryNoBookmarks(t *testing.T) {
	bd := NewBookmarkDetector(10)
	if got := bd.Check(WindowStats{Creatures: 0}); len(got) != 0 {
		t.Errorf("first window produced %v, want none", got)
	}
}
