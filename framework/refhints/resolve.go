package refhints

// ResolveAnchors maps each outline entry to the selection start of the
// smallest symbol whose range contains the entry start. Entries with no
// enclosing symbol anchor at their own start.
//
// Equal spans prefer the earlier selection start; a full tie keeps the
// first candidate seen.
func ResolveAnchors(entries []OutlineEntry, symbols []FlatSymbol) []Anchor {
	anchors := make([]Anchor, len(entries))
	for i, entry := range entries {
		best := -1
		for j := range symbols {
			sym := &symbols[j]
			if !sym.Range.Contains(entry.Start) {
				continue
			}
			if best < 0 || better(sym, &symbols[best]) {
				best = j
			}
		}
		if best < 0 {
			anchors[i] = Anchor{Offset: entry.Start}
			continue
		}
		anchors[i] = Anchor{
			Offset: symbols[best].SelectionRange.Start,
			Symbol: symbols[best].Name,
		}
	}
	return anchors
}

func better(candidate, current *FlatSymbol) bool {
	cs, ps := candidate.Range.Span(), current.Range.Span()
	if cs != ps {
		return cs < ps
	}
	return candidate.SelectionRange.Start < current.SelectionRange.Start
}
