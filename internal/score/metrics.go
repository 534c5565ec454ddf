package score

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/xrash/smetrics"
)

// The metrics in this file share one edge-case policy: two empty inputs are
// vacuously identical and score 100, exactly one empty input scores 0. All
// ratio-to-integer conversions truncate toward zero, never round, so 85.7
// becomes 85.

// LevenshteinScore rates a against b from the rune-level Levenshtein edit
// distance (unit costs), normalized by the longer input's rune length:
// 100 means identical, 0 means every position differs.
func LevenshteinScore(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int((1 - float64(dist)/float64(longest)) * 100)
}

// SequenceScore rates a against b with the Ratcliff/Obershelp ratio: find
// the longest common contiguous block, recurse over the unmatched pieces on
// either side, and relate the total matched length M to the combined input
// length T as 2*M/T. The ratio is symmetric in its arguments.
func SequenceScore(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	return int(seqRatio(a, b) * 100)
}

// seqRatio computes the Ratcliff/Obershelp ratio over individual runes.
func seqRatio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// FuzzyScore rates a against b with an indel ratio: edit distance where a
// substitution costs 2 (one delete plus one insert), normalized by the
// combined input length. The contract is that of the classic fuzz.ratio:
// symmetric, 100 iff the inputs are equal, monotonically decreasing with
// edit distance.
//
// Convention for empty inputs: two empty strings score 100 explicitly.
// When exactly one input is empty the formula itself yields 0, because the
// distance degenerates to the combined length.
//
// Distance and length are measured in bytes, not runes. Normalized text for
// the supported languages is ASCII after accent stripping, where the two
// agree; multi-byte letters that survive normalization (ø, ß, CJK) weigh in
// proportion to their encoded length.
func FuzzyScore(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	lenSum := len(a) + len(b)
	return int((1 - float64(dist)/float64(lenSum)) * 100)
}
