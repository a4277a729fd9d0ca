package detection

import "sort"

// NonMaxSuppress keeps the highest-scoring candidates and drops every
// remaining candidate whose IoU with a kept one is greater than iouThreshold.
// At most maxKeep candidates are returned (no limit when maxKeep <= 0).
//
// Candidates are ranked by Score descending; equal scores keep their input
// order, so the result is deterministic for a deterministic pool.
func NonMaxSuppress(cands []ScoredCandidate, iouThreshold float64, maxKeep int) []ScoredCandidate {
	if len(cands) == 0 {
		return nil
	}

	pool := make([]ScoredCandidate, len(cands))
	copy(pool, cands)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })

	suppressed := make([]bool, len(pool))
	keep := make([]ScoredCandidate, 0, min(len(pool), max(maxKeep, 1)))
	for i := range pool {
		if suppressed[i] {
			continue
		}
		keep = append(keep, pool[i])
		if maxKeep > 0 && len(keep) == maxKeep {
			break
		}
		for j := i + 1; j < len(pool); j++ {
			if !suppressed[j] && IoU(pool[i].Box, pool[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}
