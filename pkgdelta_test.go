package pkgdelta

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/stevegt/goadapt"
)

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

// setup returns a fresh artifact directory and a config with size
// bounds opened wide enough for small test artifacts.
func setup(t *testing.T) (dir string, cfg *Config) {
	dir = t.TempDir()
	cfg = DefaultConfig()
	cfg.MinSize = 0
	return
}

// mkpkg writes an artifact file with the given content.
func mkpkg(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	err := ioutil.WriteFile(filepath.Join(dir, name), content, 0644)
	Ck(err)
}

// mkfamily parses a set of filenames into a Family, failing the test
// on any name that doesn't parse.
func mkfamily(t *testing.T, names ...string) (family Family) {
	t.Helper()
	family = make(Family)
	for _, name := range names {
		key, ok := ParseArtifact(name)
		tassert(t, ok, "unparsable test filename %s", name)
		family[name] = key
	}
	return
}

// fakeBackend records generation calls and writes a stub delta.
type fakeBackend struct {
	calls []string
}

func (f *fakeBackend) Generate(fromPath, toPath, deltaPath string) error {
	f.calls = append(f.calls, filepath.Base(fromPath)+" -> "+filepath.Base(toPath))
	return ioutil.WriteFile(deltaPath, []byte("fake delta"), 0644)
}

func listDir(t *testing.T, dir string) (names []string) {
	t.Helper()
	entries, err := ioutil.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	Ck(err)
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return
}
