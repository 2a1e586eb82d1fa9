package duty

import (
	"sort"
	"time"
)

// SortNewestFirst returns a copy of all ordered by descending anchor instant.
// Ties put the draft first, then recorded duties, then ghosts, then order by
// ID, so the result never depends on input order.
func SortNewestFirst(all []Duty, loc *time.Location) []Duty {
	out := make([]Duty, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Anchor(loc), out[j].Anchor(loc)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		if ri, rj := originRank(out[i].Origin), originRank(out[j].Origin); ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func originRank(o Origin) int {
	switch o {
	case OriginDraft:
		return 0
	case OriginRecorded:
		return 1
	default:
		return 2
	}
}

// Previous returns the entry after index i in a newest-first sequence.
func Previous(sorted []Duty, i int) *Duty {
	if i < 0 || i+1 >= len(sorted) {
		return nil
	}
	p := sorted[i+1]
	return &p
}

// PreviousOf finds the duty immediately older than the one with the given ID.
// ok is false when the ID is not in all.
func (r Rules) PreviousOf(all []Duty, id string) (d Duty, prev *Duty, ok bool) {
	sorted := SortNewestFirst(all, r.Location())
	for i, x := range sorted {
		if x.ID == id {
			return x, Previous(sorted, i), true
		}
	}
	return Duty{}, nil, false
}
