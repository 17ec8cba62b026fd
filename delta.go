package pkgdelta

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"

	"github.com/t7a/pkgdelta/backend"
)

// Reconciler drives delta generation for one or more artifact
// directories.  Product lines (paths of generated deltas) go to Out;
// everything else is logrus diagnostics on stderr.
type Reconciler struct {
	Cfg     *Config
	Backend backend.Backend
	Out     io.Writer
}

// NewReconciler wires a Reconciler with stdout as the product stream.
func NewReconciler(cfg *Config, be backend.Backend) *Reconciler {
	return &Reconciler{Cfg: cfg, Backend: be, Out: os.Stdout}
}

// Reconcile generates the missing deltas for the given edges of one
// directory.  Every per-pair condition degrades to "skip this pair,
// continue the batch": vanished files are an expected race with
// concurrent repository publishing, size bounds are expected policy,
// and backend failures are reported but must never abort the
// remaining pairs.  The returned error reflects only whether the
// batch itself could run.
func (r *Reconciler) Reconcile(dir string, edges []VersionEdge) (err error) {
	defer Return(&err)

	deltaDir := filepath.Join(dir, r.Cfg.DeltaDir)

	for _, edge := range edges {
		fromPath := filepath.Join(dir, edge.From)
		toPath := filepath.Join(dir, edge.To)

		size, err := FileSize(fromPath)
		if os.IsNotExist(err) {
			// vanished between scan and now
			continue
		}
		if err != nil {
			log.Errorf("reconcile: %v", err)
			continue
		}
		if size <= r.Cfg.MinSize || size > r.Cfg.MaxSize {
			log.Infof("skipping %s -> %s: size %d out of bounds", edge.From, edge.To, size)
			continue
		}

		fp, err := Fingerprint(r.Cfg.Hash, fromPath, toPath)
		if os.IsNotExist(errors.Cause(err)) {
			continue
		}
		if err != nil {
			log.Errorf("fingerprint %s -> %s: %v", edge.From, edge.To, err)
			continue
		}

		name := DeltaName(edge.From, edge.To, fp)
		deltaPath := filepath.Join(deltaDir, name)
		sidecarPath := filepath.Join(deltaDir, SidecarName(name))
		if exists(deltaPath) && exists(sidecarPath) {
			log.Debugf("already have %s", name)
			continue
		}

		err = os.MkdirAll(deltaDir, 0755)
		if err != nil {
			log.Errorf("reconcile: %v", err)
			continue
		}

		err = r.Backend.Generate(fromPath, toPath, deltaPath)
		if err != nil {
			log.Errorf("generate %s -> %s: %v", edge.From, edge.To, err)
			continue
		}

		err = WriteDigestSidecar(deltaPath)
		if err != nil {
			log.Errorf("sidecar for %s: %v", name, err)
			continue
		}

		fmt.Fprintln(r.Out, deltaPath)
	}
	return nil
}

// ReconcileDir scans one directory and generates its missing deltas.
func (r *Reconciler) ReconcileDir(dir string) (err error) {
	defer Return(&err)

	fg, err := Scan(dir)
	Ck(err)

	for _, id := range fg.SortedIDs() {
		err = r.Reconcile(dir, BuildEdges(fg[id]))
		Ck(err)
	}
	return nil
}

// WriteDigestSidecar writes the sha256 sidecar for a delta file,
// atomically, so a crashed run can never leave a truncated sidecar
// that looks authoritative.
func WriteDigestSidecar(deltaPath string) (err error) {
	defer Return(&err)

	hexdigest, err := HashFile("sha256", deltaPath)
	Ck(err)

	line := DigestLine(hexdigest, filepath.Base(deltaPath))
	err = renameio.WriteFile(deltaPath+SidecarExt, []byte(line), 0644)
	Ck(err)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
