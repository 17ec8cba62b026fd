// Package runlock provides advisory, process-scoped mutual exclusion
// bound to a filesystem path: a lock file plus a non-blocking
// exclusive flock on it.  Overlapping scheduled runs of the same
// batch job use it to fail fast instead of interleaving mutations on
// the same directory.
package runlock

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
)

// ErrContended reports that another process holds the lock.  Callers
// are expected to exit without doing any work.
var ErrContended = errors.New("lock held by another process")

// Lock is an owned lock handle.  It is returned by TryAcquire and
// consumed by Release; threading the handle through the caller
// replaces the per-process lock-file registry older tools kept.
type Lock struct {
	Path string
	fh   *os.File
}

// TryAcquire takes the lock at path without blocking.  Contention is
// reported immediately as ErrContended.  The acquiring pid is written
// into the file for diagnostics only; correctness rests entirely on
// the flock.
func TryAcquire(path string) (lk *Lock, err error) {
	defer Return(&err)

	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	Ck(err)

	err = syscall.Flock(int(fh.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK {
		fh.Close()
		return nil, ErrContended
	}
	if err != nil {
		fh.Close()
		return nil, errors.Wrapf(err, "flock %s", path)
	}

	// diagnostics only
	err = fh.Truncate(0)
	Ck(err)
	_, err = fmt.Fprintf(fh, "%d\n", os.Getpid())
	Ck(err)

	return &Lock{Path: path, fh: fh}, nil
}

// Release drops the lock: funlock, close, remove.  A lock file that
// is already gone counts as success -- another process may race us on
// the file itself, and all we care about is that the lock is no
// longer held.
func (lk *Lock) Release() (err error) {
	defer Return(&err)

	err = syscall.Flock(int(lk.fh.Fd()), syscall.LOCK_UN)
	Ck(err)
	err = lk.fh.Close()
	Ck(err)
	err = os.Remove(lk.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
