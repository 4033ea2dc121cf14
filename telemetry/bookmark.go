package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkSpeciationBurst   BookmarkType = "speciation_burst"
	BookmarkPopulationCrash   BookmarkType = "population_crash"
	BookmarkPopulationRebound BookmarkType = "population_rebound"
	BookmarkMassExtinction    BookmarkType = "mass_extinction"
	BookmarkStableEcosystem   BookmarkType = "stable_ecosystem"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int          `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	recentMin          int // minimum creature count since the last rebound
	recentPeak         int // peak creature count since the last crash
	activePeak         int // peak active species since the last extinction
	stableWindowsCount int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable ecosystem detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
		recentMin:   -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		for _, check := range []func(WindowStats) *Bookmark{
			bd.checkSpeciationBurst,
			bd.checkPopulationCrash,
			bd.checkPopulationRebound,
			bd.checkMassExtinction,
			bd.checkStableEcosystem,
		} {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}

	bd.addToHistory(stats)

	if bd.recentMin < 0 || stats.Creatures < bd.recentMin {
		bd.recentMin = stats.Creatures
	}
	if stats.Creatures > bd.recentPeak {
		bd.recentPeak = stats.Creatures
	}
	if stats.SpeciesActive > bd.activePeak {
		bd.activePeak = stats.SpeciesActive
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns the recorded windows, oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

// checkSpeciationBurst fires when a window founds more than twice the usual
// number of species.
func (bd *BookmarkDetector) checkSpeciationBurst(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.SpeciesFounded
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.SpeciesFounded) > avg*2 && stats.SpeciesFounded >= 3 {
		return &Bookmark{
			Type:        BookmarkSpeciationBurst,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d species founded, %.1fx average (%.2f)", stats.SpeciesFounded, float64(stats.SpeciesFounded)/avg, avg),
		}
	}
	return nil
}

// checkPopulationCrash fires when creatures drop more than 30% from the
// recent peak.
func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.recentPeak == 0 {
		return nil
	}

	drop := 1 - float64(stats.Creatures)/float64(bd.recentPeak)
	if drop > 0.30 && stats.Creatures < bd.recentPeak-10 {
		oldPeak := bd.recentPeak
		bd.recentPeak = stats.Creatures
		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population crashed %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Creatures),
		}
	}
	return nil
}

// checkPopulationRebound fires when a population that fell to a handful
// triples.
func (bd *BookmarkDetector) checkPopulationRebound(stats WindowStats) *Bookmark {
	if bd.recentMin < 0 || bd.recentMin > 3 {
		return nil
	}

	if stats.Creatures >= bd.recentMin*3 && stats.Creatures >= 6 {
		oldMin := bd.recentMin
		bd.recentMin = stats.Creatures
		return &Bookmark{
			Type:        BookmarkPopulationRebound,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population recovered from %d to %d", oldMin, stats.Creatures),
		}
	}
	return nil
}

// checkMassExtinction fires when the active species count halves from its peak.
func (bd *BookmarkDetector) checkMassExtinction(stats WindowStats) *Bookmark {
	if bd.activePeak < 4 {
		return nil
	}
	if stats.SpeciesActive*2 <= bd.activePeak {
		oldPeak := bd.activePeak
		bd.activePeak = stats.SpeciesActive
		return &Bookmark{
			Type:        BookmarkMassExtinction,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Active species fell from %d to %d", oldPeak, stats.SpeciesActive),
		}
	}
	return nil
}

// checkStableEcosystem fires once the creature and plant counts have kept a
// coefficient of variation below 20% for five consecutive windows.
func (bd *BookmarkDetector) checkStableEcosystem(stats WindowStats) *Bookmark {
	if stats.Creatures < 10 || stats.Plants < 3 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := history[len(history)-4:]
	creatures := make([]float64, len(recent))
	plants := make([]float64, len(recent))
	for i, h := range recent {
		creatures[i] = float64(h.Creatures)
		plants[i] = float64(h.Plants)
	}

	if cv2(creatures) < 0.04 && cv2(plants) < 0.04 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 {
		return &Bookmark{
			Type:        BookmarkStableEcosystem,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Stable ecosystem with %d creatures and %d plants over 5+ windows", stats.Creatures, stats.Plants),
		}
	}
	return nil
}

// cv2 returns the squared coefficient of variation.
func cv2(values []float64) float64 {
	mean, variance := stat.PopMeanVariance(values, nil)
	if mean == 0 {
		return 0
	}
	return variance / (mean * mean)
}
