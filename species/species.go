// Package species tracks named lineages of creatures whose genomes stay close
// to a founding genome.
package species

import (
	"math"

	"github.com/pthm-cable/lifesim/traits"
)

// DefaultThreshold is the mean trait similarity above which a child stays in
// its parent's species.
const DefaultThreshold = 0.8

// Color represents an RGB color for species visualization.
type Color struct {
	R, G, B uint8
}

// Species is a permanent node in the lineage forest.
type Species struct {
	Index    int
	Name     string
	Founding traits.Genome
	Ancestor *Species
	Color    Color
	BornTick int
}

// Depth returns the number of ancestors.
func (s *Species) Depth() int {
	d := 0
	for a := s.Ancestor; a != nil; a = a.Ancestor {
		d++
	}
	return d
}

// AncestorName returns the ancestor's name, or "" for a root species.
func (s *Species) AncestorName() string {
	if s.Ancestor == nil {
		return ""
	}
	return s.Ancestor.Name
}

// Name returns the spreadsheet-column encoding of a zero-based index:
// 0 -> A, 25 -> Z, 26 -> AA, 27 -> AB.
func Name(index int) string {
	var buf [16]byte
	i := len(buf)
	n := index + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// colorFor spreads hues by the golden angle.
func colorFor(index int) Color {
	const goldenAngle = 137.508
	hue := math.Mod(float64(index)*goldenAngle, 360.0)
	r, g, b := hsvToRGB(hue, 0.7, 0.9)
	return Color{R: r, G: g, B: b}
}

// hsvToRGB converts HSV to RGB.
func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	h = math.Mod(h, 360)
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255)
}
