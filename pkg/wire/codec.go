// Package wire implements component C5's bit-exact encoding of the host→
// client and client→host frame protocol described by spec §6.1: little-
// endian, explicit-width integers, no varints. Grounded on
// amantus-ai-vibetunnel/linux/pkg/terminal/buffer.go's SerializeToBinary/
// encodeCell (explicit offset, encoding/binary little-endian writes),
// generalized from a single snapshot format to the full host/client frame
// set plus the §4.5 chunking algorithm.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by decode helpers when the input is truncated.
var ErrShortBuffer = errors.New("wire: short buffer")

// encoder appends little-endian fields to a growable byte slice.
type encoder struct {
	buf []byte
}

func newEncoder(sizeHint int) *encoder {
	return &encoder{buf: make([]byte, 0, sizeHint)}
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) bytes(b []byte) { e.buf = append(e.buf, b...) }

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) boolByte(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) bytesLen() int { return len(e.buf) }

// decoder reads little-endian fields from a byte slice, tracking an offset
// and returning ErrShortBuffer on underrun.
type decoder struct {
	buf []byte
	off int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) u8() (uint8, error) {
	if d.remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) boolByte() (bool, error) {
	v, err := d.u8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.remaining() < n {
		return nil, ErrShortBuffer
	}
	v := d.buf[d.off : d.off+n]
	d.off += n
	return v, nil
}

func (d *decoder) atEnd() bool { return d.remaining() == 0 }
