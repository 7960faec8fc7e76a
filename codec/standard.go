package codec

import (
	"encoding/binary"
	"math"

	"github.com/Tap30/pulse-go/errors"
)

// Substrate tags of the standard binary message format.
const (
	tagNull        byte = 0
	tagTrue        byte = 1
	tagFalse       byte = 2
	tagInt32       byte = 3
	tagInt64       byte = 4
	tagLargeInt    byte = 5
	tagFloat64     byte = 6
	tagString      byte = 7
	tagUint8List   byte = 8
	tagInt32List   byte = 9
	tagInt64List   byte = 10
	tagFloat64List byte = 11
	tagList        byte = 12
	tagMap         byte = 13
	tagFloat32List byte = 14

	// maxSubstrateTag is the highest tag reserved by the substrate.
	maxSubstrateTag = tagFloat32List
)

// Extension tags. They sit outside the substrate range so a plain
// standard-format reader rejects them instead of misreading them.
const (
	TagTimestamp byte = 128 // int64 milliseconds since the Unix epoch
	TagURI       byte = 129 // size-prefixed UTF-8
)

var order = binary.LittleEndian

type writer struct {
	buf []byte
}

func (w *writer) putByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) putBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// align pads with zeros so the next write starts at a multiple of n from
// the start of the message.
func (w *writer) align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) putSize(n int) {
	switch {
	case n < 254:
		w.putByte(byte(n))
	case n <= math.MaxUint16:
		w.putByte(254)
		w.buf = order.AppendUint16(w.buf, uint16(n))
	default:
		w.putByte(255)
		w.buf = order.AppendUint32(w.buf, uint32(n))
	}
}

func (w *writer) putInt32(v int32) {
	w.buf = order.AppendUint32(w.buf, uint32(v))
}

func (w *writer) putInt64(v int64) {
	w.buf = order.AppendUint64(w.buf, uint64(v))
}

func (w *writer) putFloat64(v float64) {
	w.align(8)
	w.buf = order.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *writer) putString(s string) {
	w.putSize(len(s))
	w.buf = append(w.buf, s...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) truncated(need int) error {
	return errors.Malformed(r.pos, "truncated: need %d bytes, have %d", need, r.remaining())
}

func (r *reader) getByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, r.truncated(1)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.truncated(n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) align(n int) error {
	pad := (n - r.pos%n) % n
	_, err := r.take(pad)
	return err
}

func (r *reader) getSize() (int, error) {
	b, err := r.getByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 254:
		raw, err := r.take(2)
		if err != nil {
			return 0, err
		}
		return int(order.Uint16(raw)), nil
	case 255:
		raw, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return int(order.Uint32(raw)), nil
	}
	return int(b), nil
}

func (r *reader) getInt32() (int32, error) {
	raw, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(order.Uint32(raw)), nil
}

func (r *reader) getInt64() (int64, error) {
	raw, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(order.Uint64(raw)), nil
}

func (r *reader) getFloat64() (float64, error) {
	if err := r.align(8); err != nil {
		return 0, err
	}
	raw, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(order.Uint64(raw)), nil
}

// getElements reads a size prefix for n elements of width bytes each and
// checks it against the remaining input before anything is allocated.
func (r *reader) getElements(width int) (int, error) {
	n, err := r.getSize()
	if err != nil {
		return 0, err
	}
	if n > r.remaining()/width {
		return 0, r.truncated(n * width)
	}
	return n, nil
}
