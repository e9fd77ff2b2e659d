// Package merge implements the track point consolidation engine: any number
// of overlapping exports for one (session, user) pair fold into a single
// deduplicated, chronologically ordered timeline.
package merge

import (
	"sort"

	"phonetrack-timeline/internal/models"
)

// Consolidate folds an existing timeline (may be nil) and freshly extracted
// point lists into one deduplicated, sorted sequence.
//
// Duplicate resolution scans in concatenation order: the first occurrence of
// an identity key is kept, later ones drop silently. The sort is stable, so
// points sharing a timestamp keep their concatenation order. Feeding the
// output back in as the existing sequence is a no-op, which is what makes
// repeated incremental runs safe.
func Consolidate(existing []models.TrackPoint, lists ...[]models.TrackPoint) []models.TrackPoint {
	total := len(existing)
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[models.PointKey]struct{}, total)
	unique := make([]models.TrackPoint, 0, total)
	keep := func(pts []models.TrackPoint) {
		for _, p := range pts {
			k := p.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			unique = append(unique, p)
		}
	}
	keep(existing)
	for _, l := range lists {
		keep(l)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Time.Before(unique[j].Time)
	})
	return unique
}
