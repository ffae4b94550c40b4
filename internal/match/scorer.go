// Package match scores candidate names against a query using token overlap.
package match

// Score rates candidate tokens against query tokens. The score is the number
// of common tokens discounted by a length-difference penalty, so candidates
// whose token count diverges from the query score lower even with the same
// overlap. Zero overlap scores zero.
func Score(queryTokens, candidateTokens []string) float64 {
	common := commonTokens(queryTokens, candidateTokens)
	if common == 0 {
		return 0
	}

	lenDiff := len(queryTokens) - len(candidateTokens)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	lengthPenalty := 1.0 / (1.0 + float64(lenDiff))

	return float64(common) * lengthPenalty
}

// Acceptable reports whether a candidate with the given overlap passes the
// minimum-evidence rule: at least two common tokens, relaxed to one when the
// query itself is short (<= 2 tokens).
func Acceptable(queryTokens []string, common int) bool {
	if common >= 2 {
		return true
	}
	return len(queryTokens) <= 2 && common >= 1
}

// SelectBest picks the highest-scoring candidate from an ordered list of
// token sets, applying the minimum-evidence rule. Ties break to the earliest
// candidate, so selection is stable and deterministic. Returns the winning
// index and score, or -1 when no candidate is acceptable.
func SelectBest(queryTokens []string, candidateTokens [][]string) (int, float64) {
	best := -1
	bestScore := 0.0

	for i, tokens := range candidateTokens {
		common := commonTokens(queryTokens, tokens)
		if !Acceptable(queryTokens, common) {
			continue
		}
		score := Score(queryTokens, tokens)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	return best, bestScore
}

func commonTokens(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, tok := range b {
		set[tok] = struct{}{}
	}
	common := 0
	for _, tok := range a {
		if _, ok := set[tok]; ok {
			common++
		}
	}
	return common
}
