package pkgdelta

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// artifact and delta filename extensions
const (
	PkgExt     = ".pkg"
	DeltaExt   = ".pdelta"
	SidecarExt = ".sha256"
)

// DeltaSubdir is the fixed subdirectory, relative to an artifact
// directory, where delta artifacts and their digest sidecars live.
const DeltaSubdir = "deltas"

// ArtifactKey is the structured form of an artifact filename.  It is
// derived purely from the name -- building one never touches file
// content.  Two artifacts belong to the same family iff Category and
// Name match.
type ArtifactKey struct {
	Category      string
	Name          string
	Version       string
	Tag           string // optional
	ContentDigest string // optional, hex
	Revision      string // "0" when absent
}

// ClassKey identifies a duplicate-class within a family: artifacts
// sharing Version, Tag and Revision differ only by content digest and
// are never useful delta endpoints for each other.
type ClassKey struct {
	Version  string
	Tag      string
	Revision string
}

// Class returns the duplicate-class key of an artifact.
func (key *ArtifactKey) Class() ClassKey {
	return ClassKey{Version: key.Version, Tag: key.Tag, Revision: key.Revision}
}

var revRe = regexp.MustCompile(`-r(\d+)$`)

// ParseArtifact parses an artifact filename of the form
//
//	[category:]name-version[-rN][~tag][#digest].pkg
//
// into an ArtifactKey.  Parsing is total: a name that doesn't match
// the grammar yields ok == false, never an error, because artifact
// directories routinely contain stray files that are simply not ours.
func ParseArtifact(filename string) (key *ArtifactKey, ok bool) {
	if strings.ContainsAny(filename, "/\x00") {
		return nil, false
	}
	if !strings.HasSuffix(filename, PkgExt) {
		return nil, false
	}
	stem := strings.TrimSuffix(filename, PkgExt)

	key = &ArtifactKey{Revision: "0"}

	if i := strings.Index(stem, ":"); i >= 0 {
		key.Category = stem[:i]
		stem = stem[i+1:]
	}

	if i := strings.LastIndex(stem, "#"); i >= 0 {
		key.ContentDigest = stem[i+1:]
		stem = stem[:i]
		if !isHex(key.ContentDigest) {
			return nil, false
		}
	}

	if i := strings.LastIndex(stem, "~"); i >= 0 {
		key.Tag = stem[i+1:]
		stem = stem[:i]
		if key.Tag == "" {
			return nil, false
		}
	}

	if m := revRe.FindStringSubmatch(stem); m != nil {
		key.Revision = m[1]
		stem = stem[:len(stem)-len(m[0])]
	}

	// name ends at the last '-' that is followed by a digit
	split := -1
	for i := len(stem) - 1; i > 0; i-- {
		if stem[i] == '-' && i+1 < len(stem) && isDigit(stem[i+1]) {
			split = i
			break
		}
	}
	if split <= 0 {
		return nil, false
	}
	key.Name = stem[:split]
	key.Version = stem[split+1:]

	return key, true
}

// Filename is the inverse of ParseArtifact.  A "0" revision is
// omitted, so keys parsed from names carrying an explicit -r0 do not
// round-trip byte-identically.
func (key *ArtifactKey) Filename() string {
	var b strings.Builder
	if key.Category != "" {
		b.WriteString(key.Category)
		b.WriteString(":")
	}
	b.WriteString(key.Name)
	b.WriteString("-")
	b.WriteString(key.Version)
	if key.Revision != "" && key.Revision != "0" {
		fmt.Fprintf(&b, "-r%s", key.Revision)
	}
	if key.Tag != "" {
		b.WriteString("~")
		b.WriteString(key.Tag)
	}
	if key.ContentDigest != "" {
		b.WriteString("#")
		b.WriteString(key.ContentDigest)
	}
	b.WriteString(PkgExt)
	return b.String()
}

// DeltaName derives the canonical delta filename for a (from, to)
// artifact pair and their content fingerprint.  The fingerprint is
// folded through sha256 and truncated so the name stays well under
// filesystem limits while remaining a pure function of the two
// artifacts' content.
func DeltaName(fromFilename, toFilename, fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	short := hex.EncodeToString(sum[:])[:16]
	from := strings.TrimSuffix(fromFilename, PkgExt)
	to := strings.TrimSuffix(toFilename, PkgExt)
	return from + "--" + to + "." + short + DeltaExt
}

// SidecarName derives the digest sidecar filename for a delta.
func SidecarName(deltaName string) string {
	return deltaName + SidecarExt
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && !(c >= 'a' && c <= 'f') && !(c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
