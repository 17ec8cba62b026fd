package pkgdelta

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runGenerate runs one generate pass over dir, returning the product
// lines and the recording backend.
func runGenerate(t *testing.T, dir string, cfg *Config, fake *fakeBackend) (out *bytes.Buffer) {
	t.Helper()
	out = &bytes.Buffer{}
	r := &Reconciler{Cfg: cfg, Backend: fake, Out: out}
	err := r.ReconcileDir(dir)
	tassert(t, err == nil, "ReconcileDir err %v", err)
	return
}

func runCleanup(t *testing.T, dir string, cfg *Config) (out *bytes.Buffer, err error) {
	t.Helper()
	out = &bytes.Buffer{}
	s := &Sweeper{Cfg: cfg, Out: out}
	err = s.Cleanup(dir)
	return
}

func outLines(out *bytes.Buffer) []string {
	trimmed := strings.TrimSpace(out.String())
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestGenerateScenario(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	mkpkg(t, dir, "app-1.1.pkg", []byte("content of version one one"))
	mkpkg(t, dir, "app-2.0.pkg", []byte("content of version two zero"))

	fake := &fakeBackend{}
	out := runGenerate(t, dir, cfg, fake)

	want := []string{
		"app-1.0.pkg -> app-1.1.pkg",
		"app-1.0.pkg -> app-2.0.pkg",
		"app-1.1.pkg -> app-2.0.pkg",
	}
	tassert(t, len(fake.calls) == len(want), "calls %v", fake.calls)
	for i := range want {
		tassert(t, fake.calls[i] == want[i], "call %d: got %q want %q", i, fake.calls[i], want[i])
	}

	lines := outLines(out)
	tassert(t, len(lines) == 3, "product lines %v", lines)

	// one delta plus one sidecar per pair
	names := listDir(t, filepath.Join(dir, cfg.DeltaDir))
	tassert(t, len(names) == 6, "delta dir: %v", names)
	deltas := 0
	for _, name := range names {
		if strings.HasSuffix(name, DeltaExt) {
			deltas++
			sidecar := filepath.Join(dir, cfg.DeltaDir, SidecarName(name))
			tassert(t, exists(sidecar), "missing sidecar for %s", name)
		}
	}
	tassert(t, deltas == 3, "got %d deltas", deltas)
}

func TestGenerateIdempotent(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	mkpkg(t, dir, "app-1.1.pkg", []byte("content of version one one"))

	fake := &fakeBackend{}
	first := runGenerate(t, dir, cfg, fake)
	tassert(t, len(outLines(first)) == 1, "first run lines %v", outLines(first))
	tassert(t, len(fake.calls) == 1, "first run calls %v", fake.calls)

	before := listDir(t, filepath.Join(dir, cfg.DeltaDir))

	second := runGenerate(t, dir, cfg, fake)
	tassert(t, len(outLines(second)) == 0, "second run emitted %v", outLines(second))
	tassert(t, len(fake.calls) == 1, "second run regenerated: %v", fake.calls)

	after := listDir(t, filepath.Join(dir, cfg.DeltaDir))
	tassert(t, len(before) == len(after), "delta set changed across idempotent runs")
}

func TestGenerateContentChange(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	mkpkg(t, dir, "app-1.1.pkg", []byte("content of version one one"))

	fake := &fakeBackend{}
	runGenerate(t, dir, cfg, fake)

	// byte-identical replacement: nothing to do
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	out := runGenerate(t, dir, cfg, fake)
	tassert(t, len(outLines(out)) == 0, "identical replacement regenerated: %v", outLines(out))

	// content change invalidates the cached name and forces regeneration
	mkpkg(t, dir, "app-1.0.pkg", []byte("rebuilt version one zero"))
	out = runGenerate(t, dir, cfg, fake)
	tassert(t, len(outLines(out)) == 1, "content change not regenerated: %v", outLines(out))
	tassert(t, len(fake.calls) == 2, "calls %v", fake.calls)
}

func TestGenerateSizeBounds(t *testing.T) {
	dir, cfg := setup(t)
	cfg.MinSize = 10
	cfg.MaxSize = 100

	// from-size decides eligibility: 1.0 is over the upper bound,
	// 1.2 is at/below the lower bound, 1.1 is within bounds
	mkpkg(t, dir, "app-1.0.pkg", bytes.Repeat([]byte("x"), 200))
	mkpkg(t, dir, "app-1.1.pkg", bytes.Repeat([]byte("y"), 50))
	mkpkg(t, dir, "app-1.2.pkg", bytes.Repeat([]byte("z"), 5))
	mkpkg(t, dir, "app-1.3.pkg", bytes.Repeat([]byte("w"), 60))

	fake := &fakeBackend{}
	runGenerate(t, dir, cfg, fake)

	want := []string{
		"app-1.1.pkg -> app-1.2.pkg",
		"app-1.1.pkg -> app-1.3.pkg",
	}
	tassert(t, len(fake.calls) == len(want), "calls %v", fake.calls)
	for i := range want {
		tassert(t, fake.calls[i] == want[i], "call %d: got %q want %q", i, fake.calls[i], want[i])
	}
}

func TestGenerateVanishedSource(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	mkpkg(t, dir, "app-1.1.pkg", []byte("content of version one one"))

	fg, err := Scan(dir)
	tassert(t, err == nil, "Scan err %v", err)
	edges := BuildEdges(fg[FamilyID{Name: "app"}])

	// artifact vanishes between scan and reconcile: silent skip
	err = os.Remove(filepath.Join(dir, "app-1.0.pkg"))
	tassert(t, err == nil, "remove err %v", err)

	fake := &fakeBackend{}
	out := &bytes.Buffer{}
	r := &Reconciler{Cfg: cfg, Backend: fake, Out: out}
	err = r.Reconcile(dir, edges)
	tassert(t, err == nil, "Reconcile err %v", err)
	tassert(t, len(fake.calls) == 0, "calls %v", fake.calls)
	tassert(t, out.Len() == 0, "output %q", out.String())
}

func TestCleanupScenario(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	mkpkg(t, dir, "app-1.1.pkg", []byte("content of version one one"))
	mkpkg(t, dir, "app-2.0.pkg", []byte("content of version two zero"))

	fake := &fakeBackend{}
	runGenerate(t, dir, cfg, fake)

	// deleting an artifact obsoletes every delta it was the source of
	err := os.Remove(filepath.Join(dir, "app-1.0.pkg"))
	tassert(t, err == nil, "remove err %v", err)

	out, err := runCleanup(t, dir, cfg)
	tassert(t, err == nil, "Cleanup err %v", err)
	removed := outLines(out)
	tassert(t, len(removed) == 2, "removed %v", removed)
	for _, line := range removed {
		tassert(t, strings.Contains(line, "app-1.0--"), "unexpected removal %q", line)
	}

	// cleanup completeness: what survives is exactly the recomputed
	// required set
	s := &Sweeper{Cfg: cfg, Out: ioutil.Discard}
	required, err := s.requiredDeltas(dir)
	tassert(t, err == nil, "requiredDeltas err %v", err)
	var surviving []string
	for _, name := range listDir(t, filepath.Join(dir, cfg.DeltaDir)) {
		if strings.HasSuffix(name, DeltaExt) {
			surviving = append(surviving, name)
		}
	}
	tassert(t, len(surviving) == len(required), "surviving %v required %v", surviving, required)
	for _, name := range surviving {
		tassert(t, required[name], "stale delta survived: %s", name)
	}
}

func TestCleanupNothingStale(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))
	mkpkg(t, dir, "app-1.1.pkg", []byte("content of version one one"))

	fake := &fakeBackend{}
	runGenerate(t, dir, cfg, fake)

	out, err := runCleanup(t, dir, cfg)
	tassert(t, err == nil, "Cleanup err %v", err)
	tassert(t, out.Len() == 0, "output %q", out.String())
}

func TestCleanupNoDeltaDir(t *testing.T) {
	dir, cfg := setup(t)
	mkpkg(t, dir, "app-1.0.pkg", []byte("content of version one zero"))

	out, err := runCleanup(t, dir, cfg)
	tassert(t, err == nil, "Cleanup err %v", err)
	tassert(t, out.Len() == 0, "output %q", out.String())
}

func TestWriteDigestSidecar(t *testing.T) {
	dir, _ := setup(t)
	deltaPath := filepath.Join(dir, "app-1.0--app-1.1.cafe.pdelta")
	err := ioutil.WriteFile(deltaPath, []byte("delta bytes"), 0644)
	tassert(t, err == nil, "write err %v", err)

	err = WriteDigestSidecar(deltaPath)
	tassert(t, err == nil, "WriteDigestSidecar err %v", err)

	buf, err := ioutil.ReadFile(deltaPath + SidecarExt)
	tassert(t, err == nil, "read sidecar err %v", err)
	hexdigest, err := HashFile("sha256", deltaPath)
	tassert(t, err == nil, "HashFile err %v", err)
	want := DigestLine(hexdigest, filepath.Base(deltaPath))
	tassert(t, string(buf) == want, "sidecar %q want %q", buf, want)
}
