/*

Pkgdelta keeps a directory of versioned binary package artifacts in
sync with a derived set of delta artifacts -- binary patches that
transform one package version into a newer one -- so that clients can
fetch a small patch instead of re-downloading a full package.

The core loop scans a flat directory of artifact filenames, groups
them into version families, decides deterministically which directed
version pairs want a delta, and reconciles the on-disk delta set
against that decision: missing deltas are generated, obsolete ones are
pruned.  The directory itself is the only persisted index -- delta
intent is recomputed from filenames and content digests on every run,
so repository mutations made by other tools can never cause drift.

Patch generation is delegated to a Backend (see the backend
subpackage), cross-process mutual exclusion lives in the runlock
subpackage, continuous operation in the watch subpackage, and cmd/pd
is the command line front end.

*/
package pkgdelta
