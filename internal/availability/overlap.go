package availability

// DetectOverlaps returns every entry overlapping candidate, in timeline order.
func DetectOverlaps(candidate Interval, entries []Entry) []Entry {
	var matches []Entry
	for _, e := range entries {
		if Overlaps(candidate, e.Interval) {
			matches = append(matches, e)
		}
	}
	return matches
}

// OverlapPair is one overlap found by the sweep. Earlier is the entry that
// held the furthest end seen so far when Later started.
type OverlapPair struct {
	Earlier Entry `json:"earlier"`
	Later   Entry `json:"later"`
}

// SweepOverlaps finds overlaps in one left-to-right pass over the sorted
// entries, tracking the furthest end seen.
func SweepOverlaps(entries []Entry) []OverlapPair {
	if len(entries) < 2 {
		return nil
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortEntries(sorted)

	var pairs []OverlapPair
	active := sorted[0]
	for _, e := range sorted[1:] {
		if e.Start < active.End {
			pairs = append(pairs, OverlapPair{Earlier: active, Later: e})
		}
		if e.End > active.End {
			active = e
		}
	}
	return pairs
}

func CountOverlaps(entries []Entry) int {
	return len(SweepOverlaps(entries))
}
