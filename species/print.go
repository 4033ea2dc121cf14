package species

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the lineage forest to w, one species per line, indented by
// depth. members gives the living member count per species name and may be
// nil.
func (l *Lineage) Fprint(w io.Writer, members map[string]int) error {
	for _, root := range l.Roots() {
		if err := l.fprintNode(w, root, 0, members); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lineage) fprintNode(w io.Writer, sp *Species, depth int, members map[string]int) error {
	line := fmt.Sprintf("%s%s born=%d", strings.Repeat("  ", depth), sp.Name, sp.BornTick)
	if n := members[sp.Name]; n > 0 {
		line += fmt.Sprintf(" members=%d", n)
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, child := range l.Children(sp) {
		if err := l.fprintNode(w, child, depth+1, members); err != nil {
			return err
		}
	}
	return nil
}
