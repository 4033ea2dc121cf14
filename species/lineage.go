package species

import (
	"github.com/pthm-cable/lifesim/traits"
)

// Lineage is the append-only list of every species created in a world.
type Lineage struct {
	set       *traits.Set
	threshold float64
	all       []*Species
	byName    map[string]*Species
	created   int // names handed out so far
	tick      int
}

// NewLineage returns an empty lineage. A threshold outside (0, 1) uses DefaultThreshold.
func NewLineage(set *traits.Set, threshold float64) *Lineage {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Lineage{
		set:       set,
		threshold: threshold,
		byName:    make(map[string]*Species),
	}
}

// SetTick records the tick stamped on newly founded species.
func (l *Lineage) SetTick(tick int) { l.tick = tick }

// nextName returns the next unused generated name.
func (l *Lineage) nextName() string {
	for {
		name := Name(l.created)
		l.created++
		if _, taken := l.byName[name]; !taken {
			return name
		}
	}
}

func (l *Lineage) append(name string, founding traits.Genome, ancestor *Species) *Species {
	sp := &Species{
		Index:    len(l.all),
		Name:     name,
		Founding: founding.Clone(),
		Ancestor: ancestor,
		Color:    colorFor(len(l.all)),
		BornTick: l.tick,
	}
	l.all = append(l.all, sp)
	l.byName[name] = sp
	return sp
}

// Found creates a new species with the given founding genome.
func (l *Lineage) Found(founding traits.Genome, ancestor *Species) *Species {
	return l.append(l.nextName(), founding, ancestor)
}

// ChildSpecies returns parent if child stays similar to parent's founding
// genome, or a newly founded descendant otherwise. A nil parent always
// founds a root species.
//
// Similarity is accumulated as a running mean over the traits and the walk
// stops as soon as it exceeds the threshold.
func (l *Lineage) ChildSpecies(parent *Species, child traits.Genome) *Species {
	if parent == nil {
		return l.Found(child, nil)
	}
	n := float64(l.set.Len())
	var mean float64
	for i, t := range l.set.Traits() {
		mean += t.Similarity(parent.Founding[i], child[i]) / n
		if mean > l.threshold {
			return parent
		}
	}
	return l.Found(child, parent)
}

// Restore appends a persisted species under its saved name. The ancestor must
// already be restored; an unknown ancestor name yields a root species.
func (l *Lineage) Restore(name string, founding traits.Genome, ancestorName string) *Species {
	if sp, ok := l.byName[name]; ok {
		return sp
	}
	return l.append(name, founding, l.byName[ancestorName])
}

// Lookup returns the species with the given name, or nil.
func (l *Lineage) Lookup(name string) *Species {
	return l.byName[name]
}

// All returns every species in creation order. The slice must not be modified.
func (l *Lineage) All() []*Species { return l.all }

// Len returns the number of species ever created.
func (l *Lineage) Len() int { return len(l.all) }

// Children returns the direct descendants of sp in creation order.
func (l *Lineage) Children(sp *Species) []*Species {
	var out []*Species
	for _, s := range l.all {
		if s.Ancestor == sp {
			out = append(out, s)
		}
	}
	return out
}

// Roots returns the species without ancestors.
func (l *Lineage) Roots() []*Species {
	return l.Children(nil)
}
