package backend

import (
	"bytes"
	"crypto/sha256"
	"io"
	"io/ioutil"
	"os"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	resticRabin "github.com/restic/chunker"
	. "github.com/stevegt/goadapt"
)

// Chunked is the built-in delta engine.  Both files are cut into
// content-defined chunks with a rabin chunker; chunks of the new file
// that already exist in the old file become copy references, the rest
// travel as a zstd-compressed literal stream.  The container is a
// msgpack header behind a fixed magic.
type Chunked struct {
	MinChunk uint
	MaxChunk uint
}

// chunkerPol is a fixed rabin polynomial.  Unlike a store that only
// needs internal consistency, delta names are a pure function of
// artifact content, so chunk boundaries must be reproducible across
// processes and hosts.
const chunkerPol = resticRabin.Pol(0x3DA3358B4DC173)

const chunkedMagic = "PKDELTA1"

const (
	kiB = 1024

	defMinChunk = 2 * kiB
	defMaxChunk = 64 * kiB
)

// op describes one span of the reconstructed file: either a copy out
// of the old file or the next Length bytes of the literal stream.
type op struct {
	Copy   bool
	Offset int64
	Length int64
}

type header struct {
	Ops []op
}

// NewChunked returns a Chunked backend with default chunk bounds.
func NewChunked() *Chunked {
	return &Chunked{MinChunk: defMinChunk, MaxChunk: defMaxChunk}
}

// Generate writes the delta transforming fromPath into toPath.  The
// delta file lands atomically or not at all.
func (c *Chunked) Generate(fromPath, toPath, deltaPath string) (err error) {
	defer Return(&err)

	refs, err := c.index(fromPath)
	Ck(err)

	toFh, err := os.Open(toPath)
	Ck(err)
	defer toFh.Close()

	var ops []op
	var literals bytes.Buffer
	err = c.chunks(toFh, func(chunk resticRabin.Chunk) error {
		sum := sha256.Sum256(chunk.Data)
		if ref, ok := refs[sum]; ok && ref.length == int64(chunk.Length) {
			ops = append(ops, op{Copy: true, Offset: ref.offset, Length: ref.length})
			return nil
		}
		literals.Write(chunk.Data)
		ops = append(ops, op{Length: int64(chunk.Length)})
		return nil
	})
	Ck(err)

	buf, err := encode(header{Ops: ops}, literals.Bytes())
	Ck(err)

	err = renameio.WriteFile(deltaPath, buf, 0644)
	Ck(err)
	return nil
}

// Apply reconstructs the new file from the old file and a delta,
// writing it atomically to outPath.  Reconciliation never calls this;
// it exists so the delta format is verifiable end to end.
func (c *Chunked) Apply(fromPath, deltaPath, outPath string) (err error) {
	defer Return(&err)

	hdr, literals, err := decodeFile(deltaPath)
	Ck(err)

	from, err := ioutil.ReadFile(fromPath)
	Ck(err)

	var out bytes.Buffer
	rest := literals
	for _, o := range hdr.Ops {
		if o.Copy {
			if o.Offset < 0 || o.Offset+o.Length > int64(len(from)) {
				return errors.Errorf("corrupt delta %s: copy out of range", deltaPath)
			}
			out.Write(from[o.Offset : o.Offset+o.Length])
			continue
		}
		if o.Length > int64(len(rest)) {
			return errors.Errorf("corrupt delta %s: literal underrun", deltaPath)
		}
		out.Write(rest[:o.Length])
		rest = rest[o.Length:]
	}

	err = renameio.WriteFile(outPath, out.Bytes(), 0644)
	Ck(err)
	return nil
}

type ref struct {
	offset int64
	length int64
}

// index cuts the old file into chunks and records where each distinct
// chunk lives.
func (c *Chunked) index(path string) (refs map[[sha256.Size]byte]ref, err error) {
	defer Return(&err)

	fh, err := os.Open(path)
	Ck(err)
	defer fh.Close()

	refs = make(map[[sha256.Size]byte]ref)
	err = c.chunks(fh, func(chunk resticRabin.Chunk) error {
		sum := sha256.Sum256(chunk.Data)
		if _, ok := refs[sum]; !ok {
			refs[sum] = ref{offset: int64(chunk.Start), length: int64(chunk.Length)}
		}
		return nil
	})
	Ck(err)
	return refs, nil
}

func (c *Chunked) chunks(rd io.Reader, fn func(resticRabin.Chunk) error) (err error) {
	chunker := resticRabin.NewWithBoundaries(rd, chunkerPol, c.MinChunk, c.MaxChunk)
	buf := make([]byte, c.MaxChunk)
	for {
		chunk, err := chunker.Next(buf)
		if errors.Cause(err) == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
}
