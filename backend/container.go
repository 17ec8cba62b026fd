package backend

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
	"github.com/vmihailenco/msgpack"
)

// encode assembles a delta container: magic, big-endian header
// length, msgpack header, zstd-compressed literal stream.
func encode(hdr header, literals []byte) (buf []byte, err error) {
	defer Return(&err)

	hdrBuf, err := msgpack.Marshal(hdr)
	Ck(err)

	enc, err := zstd.NewWriter(nil)
	Ck(err)
	defer enc.Close()
	compressed := enc.EncodeAll(literals, nil)

	var out bytes.Buffer
	out.WriteString(chunkedMagic)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrBuf)))
	out.Write(lenBuf[:])
	out.Write(hdrBuf)
	out.Write(compressed)
	return out.Bytes(), nil
}

// decodeFile parses a delta container back into its header and
// literal stream.
func decodeFile(path string) (hdr header, literals []byte, err error) {
	defer Return(&err)

	buf, err := ioutil.ReadFile(path)
	Ck(err)

	if len(buf) < len(chunkedMagic)+4 || string(buf[:len(chunkedMagic)]) != chunkedMagic {
		err = errors.Errorf("not a delta file: %s", path)
		return
	}
	buf = buf[len(chunkedMagic):]

	hdrLen := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < hdrLen {
		err = errors.Errorf("truncated delta file: %s", path)
		return
	}

	err = msgpack.Unmarshal(buf[:hdrLen], &hdr)
	if err != nil {
		err = errors.Wrapf(err, "delta header %s", path)
		return
	}

	dec, err := zstd.NewReader(nil)
	Ck(err)
	defer dec.Close()
	literals, err = dec.DecodeAll(buf[hdrLen:], nil)
	if err != nil {
		err = errors.Wrapf(err, "delta literals %s", path)
		return
	}
	return hdr, literals, nil
}
