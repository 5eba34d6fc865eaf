package coins

// ClassifiedCoin is a candidate that matched a template well enough to count.
type ClassifiedCoin struct {
	Denomination Denomination `json:"denomination"`
	Side         Side         `json:"side"`

	// MatchPercent is the winning template's best overlap percentage.
	MatchPercent float64 `json:"match_percent"`
}

// Key returns the template key of the coin.
func (c ClassifiedCoin) Key() TemplateKey {
	return TemplateKey{Denomination: c.Denomination, Side: c.Side}
}

// Label returns the human readable coin name, e.g. "Quarter (Heads Up)".
func (c ClassifiedCoin) Label() string {
	return c.Key().Label()
}

// Classify picks the template with the highest overlap.
//
// The scan starts from 0.0 at index 0 and only a strictly greater overlap
// replaces the current best, so on ties the lower template index wins. A coin
// is returned only when the best overlap is strictly above threshold; the
// winning index is returned either way.
func Classify(matches []MatchResult, threshold float64) (*ClassifiedCoin, int) {
	best, bestIdx := 0.0, 0
	for i, m := range matches {
		if m.BestOverlapPercent > best {
			best, bestIdx = m.BestOverlapPercent, i
		}
	}

	if len(matches) == 0 || best <= threshold {
		return nil, bestIdx
	}

	key := matches[bestIdx].Key
	return &ClassifiedCoin{
		Denomination: key.Denomination,
		Side:         key.Side,
		MatchPercent: best,
	}, bestIdx
}
