package pkgdelta

import (
	"io/ioutil"
	"sort"

	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// FamilyID names a version family: all variants of one logical
// package.
type FamilyID struct {
	Category string
	Name     string
}

// Family is the set of artifacts in one family, keyed by filename so
// the same artifact can never be considered twice.
type Family map[string]*ArtifactKey

// FamilyGroup maps family identity to its members.
type FamilyGroup map[FamilyID]Family

// Scan lists dir and groups its recognized artifact filenames into
// families.  Entries that don't parse are dropped without error.
// Scan reads names only, never content, and holds no cache -- callers
// re-scan on every run because the directory may be mutated between
// phases by unrelated publishing tools.
func Scan(dir string) (fg FamilyGroup, err error) {
	defer Return(&err)

	entries, err := ioutil.ReadDir(dir)
	Ck(err)

	fg = make(FamilyGroup)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, ok := ParseArtifact(entry.Name())
		if !ok {
			log.Debugf("scan: skipping %s", entry.Name())
			continue
		}
		id := FamilyID{Category: key.Category, Name: key.Name}
		if fg[id] == nil {
			fg[id] = make(Family)
		}
		fg[id][entry.Name()] = key
	}
	return fg, nil
}

// SortedIDs returns the family identities in a stable order so that
// callers iterating a FamilyGroup produce reproducible output.
func (fg FamilyGroup) SortedIDs() (ids []FamilyID) {
	for id := range fg {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Category != ids[j].Category {
			return ids[i].Category < ids[j].Category
		}
		return ids[i].Name < ids[j].Name
	})
	return
}
