package pkgdelta

import (
	"sort"
)

// VersionEdge is an ordered artifact pair meaning "a delta
// transforming From into To is wanted".
type VersionEdge struct {
	From string
	To   string
}

// BuildEdges produces the directed delta pairs for one family: every
// artifact is paired with every artifact of a later (or equal-ranked
// but distinct) duplicate-class, oldest to newest.  The edge set is
// deliberately dense -- clients several versions behind still want a
// single delta to the newest -- and eligibility filtering happens
// downstream, not here.
//
// Members sharing an identical (version, tag, revision) class are
// never paired with each other, even when their content digests
// differ: such artifacts are content-duplicates for delta purposes.
//
// Classes that compare equal under the version ordering but are not
// identical are tie-broken by their smallest member filename, so edge
// enumeration is reproducible across runs regardless of map
// iteration order.
func BuildEdges(family Family) (edges []VersionEdge) {
	classes := make(map[ClassKey][]string)
	for filename, key := range family {
		ck := key.Class()
		classes[ck] = append(classes[ck], filename)
	}

	keys := make([]ClassKey, 0, len(classes))
	for ck := range classes {
		sort.Strings(classes[ck])
		keys = append(keys, ck)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := CompareKeys(keys[i], keys[j]); c != 0 {
			return c < 0
		}
		return classes[keys[i]][0] < classes[keys[j]][0]
	})

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			for _, from := range classes[keys[i]] {
				for _, to := range classes[keys[j]] {
					edges = append(edges, VersionEdge{From: from, To: to})
				}
			}
		}
	}
	return
}
