package pkgdelta

import (
	"sort"
	"strings"
)

// CompareVersions orders two package version strings.  Versions are
// tokenized into maximal digit runs and letter runs; anything else is
// a separator.  Digit runs compare numerically, letter runs bytewise,
// and a digit run sorts before a letter run in the same position.  A
// version that is a strict token-prefix of another is older:
// 1.0 < 1.0.1.
func CompareVersions(a, b string) int {
	at := tokenize(a)
	bt := tokenize(b)
	for i := 0; i < len(at) && i < len(bt); i++ {
		if c := compareToken(at[i], bt[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(at) < len(bt):
		return -1
	case len(at) > len(bt):
		return 1
	}
	return 0
}

// CompareKeys orders duplicate-class keys lexicographically by
// (version, tag, revision).  Revisions compare numerically.
func CompareKeys(a, b ClassKey) int {
	if c := CompareVersions(a.Version, b.Version); c != 0 {
		return c
	}
	if c := strings.Compare(a.Tag, b.Tag); c != 0 {
		return c
	}
	return compareNumeric(a.Revision, b.Revision)
}

// SortKeys returns the duplicate-class keys sorted oldest first.
// The input is not modified.
func SortKeys(keys []ClassKey) (sorted []ClassKey) {
	sorted = append(sorted, keys...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareKeys(sorted[i], sorted[j]) < 0
	})
	return
}

func tokenize(s string) (tokens []string) {
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isDigit(c):
			j := i
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		case isAlpha(c):
			j := i
			for j < len(s) && isAlpha(s[j]) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		default:
			// separator
			i++
		}
	}
	return
}

func compareToken(a, b string) int {
	an := isDigit(a[0])
	bn := isDigit(b[0])
	switch {
	case an && bn:
		return compareNumeric(a, b)
	case an && !bn:
		return -1
	case !an && bn:
		return 1
	}
	return strings.Compare(a, b)
}

// compareNumeric compares two digit strings of arbitrary length
// without converting them, so huge date-style versions can't
// overflow.  Non-digit input falls back to a bytewise compare.
func compareNumeric(a, b string) int {
	if !allDigits(a) || !allDigits(b) {
		return strings.Compare(a, b)
	}
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
