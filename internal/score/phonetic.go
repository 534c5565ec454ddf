package score

import (
	"slices"
	"strings"
)

// FoldRule replaces every occurrence of each character in Group with the
// single-character representative To.
type FoldRule struct {
	To    string
	Group string
}

// DefaultFoldRules returns the standard folding table for confusable
// Spanish consonant groups: b/v, the c/k/s/z sibilants, g/j, ll/y and r.
// The returned slice is a fresh copy on every call.
//
// Rules are applied strictly in table order and groups overlap on purpose:
// the c rule first folds k, s and z toward c, the s rule then folds c
// toward s, and the z rule folds s toward z, so the whole sibilant group
// settles on z. Reordering the table changes the folded output.
func DefaultFoldRules() []FoldRule {
	return []FoldRule{
		{To: "b", Group: "bv"},
		{To: "v", Group: "bv"},
		{To: "c", Group: "cksz"},
		{To: "s", Group: "scz"},
		{To: "z", Group: "zs"},
		{To: "g", Group: "gj"},
		{To: "j", Group: "jg"},
		{To: "l", Group: "lly"},
		{To: "y", Group: "yll"},
		{To: "r", Group: "rr"},
	}
}

// defaultFolder backs PhoneticScore. Read-only after initialization.
var defaultFolder = NewFolder(DefaultFoldRules())

// Folder applies a phonetic folding table. A Folder is immutable after
// construction and safe for concurrent use; build one with [NewFolder].
type Folder struct {
	rules []FoldRule
}

// NewFolder returns a [Folder] over a private copy of rules, so later
// mutation of the argument slice cannot change folding behaviour.
func NewFolder(rules []FoldRule) Folder {
	return Folder{rules: slices.Clone(rules)}
}

// Fold lowercases s and applies every rule in table order, replacing each
// character of the rule's group with the rule's representative across the
// whole string.
func (f Folder) Fold(s string) string {
	s = strings.ToLower(s)
	for _, rule := range f.rules {
		for _, c := range rule.Group {
			s = strings.ReplaceAll(s, string(c), rule.To)
		}
	}
	return s
}

// Score folds both inputs and rates the folded strings with
// [SequenceScore].
func (f Folder) Score(a, b string) int {
	return SequenceScore(f.Fold(a), f.Fold(b))
}

// PhoneticScore folds both inputs with the default table
// ([DefaultFoldRules]) and rates the folded strings with [SequenceScore],
// so confusable spellings such as "casa" and "caza" score as identical.
func PhoneticScore(a, b string) int {
	return defaultFolder.Score(a, b)
}
