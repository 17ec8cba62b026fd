package pkgdelta

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"syscall"

	. "github.com/stevegt/goadapt"
	"github.com/zeebo/blake3"
)

// NewHash returns a hash engine for one of the supported digest
// algorithms.
func NewHash(algo string) (h hash.Hash, err error) {
	switch algo {
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	case "blake3":
		h = blake3.New()
	default:
		err = fmt.Errorf("%w: %s", syscall.ENOSYS, algo)
	}
	return
}

// HashFile returns the hex digest of a file's content.  A missing
// file surfaces as the raw open error so callers can treat the
// vanished-under-us race with os.IsNotExist.
func HashFile(algo, path string) (hexdigest string, err error) {
	h, err := NewHash(algo)
	if err != nil {
		return
	}
	fh, err := os.Open(path)
	if err != nil {
		return
	}
	defer fh.Close()
	_, err = io.Copy(h, fh)
	if err != nil {
		return
	}
	return bin2hex(h.Sum(nil)), nil
}

// Fingerprint computes the content fingerprint of a delta pair: the
// concatenation of the two artifacts' hex digests.  The fingerprint
// is a pure function of artifact content -- byte-identical
// replacement of an artifact leaves it unchanged, while any content
// change invalidates every derived delta name.
func Fingerprint(algo, fromPath, toPath string) (fp string, err error) {
	fromDigest, err := HashFile(algo, fromPath)
	if err != nil {
		return
	}
	toDigest, err := HashFile(algo, toPath)
	if err != nil {
		return
	}
	return fromDigest + toDigest, nil
}

// FileSize returns the byte size of a file.
func FileSize(path string) (n int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	return info.Size(), nil
}

func bin2hex(bin []byte) (hexstr string) {
	return hex.EncodeToString(bin)
}

// DigestLine formats the digest sidecar content: hex digest, two
// spaces, basename -- the same shape sha256sum(1) emits, so sidecars
// can be checked with stock tools.
func DigestLine(hexdigest, basename string) string {
	return Spf("%s  %s\n", hexdigest, basename)
}
