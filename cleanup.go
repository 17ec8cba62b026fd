package pkgdelta

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// Sweeper prunes delta artifacts that the current artifact set no
// longer justifies.  It never generates anything.
type Sweeper struct {
	Cfg *Config
	Out io.Writer
}

// NewSweeper wires a Sweeper with stdout as the product stream.
func NewSweeper(cfg *Config) *Sweeper {
	return &Sweeper{Cfg: cfg, Out: os.Stdout}
}

// Cleanup recomputes the required delta set for dir from scratch --
// the artifact directory is the single source of truth, so persisting
// delta intent separately would only invite drift -- and removes
// every on-disk delta (and its sidecar) outside that set.  A failed
// removal marks the batch failed but sweeping continues.
func (s *Sweeper) Cleanup(dir string) (err error) {
	defer Return(&err)

	deltaDir := filepath.Join(dir, s.Cfg.DeltaDir)
	existing, err := listDeltas(deltaDir)
	Ck(err)

	required, err := s.requiredDeltas(dir)
	Ck(err)

	var stale []string
	for _, name := range existing {
		if !required[name] {
			stale = append(stale, name)
		}
	}

	if len(stale) == 0 {
		log.Infof("%s: no stale deltas", dir)
		return nil
	}

	failed := false
	for _, name := range stale {
		deltaPath := filepath.Join(deltaDir, name)
		err = os.Remove(deltaPath + SidecarExt)
		if err != nil && !os.IsNotExist(err) {
			log.Errorf("cleanup: %v", err)
		}
		err = os.Remove(deltaPath)
		if err != nil {
			log.Errorf("cleanup: %v", err)
			failed = true
			continue
		}
		fmt.Fprintf(s.Out, "removed %s\n", deltaPath)
	}
	if failed {
		return errors.Errorf("cleanup %s: some deltas could not be removed", dir)
	}
	return nil
}

// requiredDeltas derives the set of delta filenames the current
// artifact set justifies, using the same edge and fingerprint logic
// as generation.  Pairs whose source files are missing are skipped:
// a vanished artifact justifies no deltas.
func (s *Sweeper) requiredDeltas(dir string) (required map[string]bool, err error) {
	defer Return(&err)

	fg, err := Scan(dir)
	Ck(err)

	required = make(map[string]bool)
	for _, id := range fg.SortedIDs() {
		for _, edge := range BuildEdges(fg[id]) {
			fromPath := filepath.Join(dir, edge.From)
			toPath := filepath.Join(dir, edge.To)
			fp, err := Fingerprint(s.Cfg.Hash, fromPath, toPath)
			if os.IsNotExist(errors.Cause(err)) {
				continue
			}
			if err != nil {
				log.Errorf("fingerprint %s -> %s: %v", edge.From, edge.To, err)
				continue
			}
			required[DeltaName(edge.From, edge.To, fp)] = true
		}
	}
	return required, nil
}

// listDeltas returns the delta filenames under deltaDir, sorted.  A
// missing delta directory simply means there is nothing to sweep.
func listDeltas(deltaDir string) (names []string, err error) {
	defer Return(&err)

	entries, err := ioutil.ReadDir(deltaDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	Ck(err)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), DeltaExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
