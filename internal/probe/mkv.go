package probe

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Matroska/WebM element IDs, written with their length-indicator bits as is
// conventional for EBML.
const (
	idEBMLHeader     = 0x1A45DFA3
	idSegment        = 0x18538067
	idSegmentInfo    = 0x1549A966
	idTimestampScale = 0x2AD7B1
	idDuration       = 0x4489

	// nanoseconds per tick when Segment Info carries no TimestampScale
	mkvDefaultTimestampScale = 1_000_000
)

// MKVDuration walks the EBML tree in the buffer down to the segment-info
// duration and returns it in seconds. Duration is expressed in
// TimestampScale units; TimestampScale is nanoseconds per unit.
func MKVDuration(buf []byte) (int64, bool) {
	pos := 0
	scale := uint64(mkvDefaultTimestampScale)

	for pos < len(buf) {
		id, n, ok := readElementID(buf, pos)
		if !ok {
			return 0, false
		}
		pos += n

		size, n, sizeKnown, ok := readVINT(buf, pos)
		if !ok {
			return 0, false
		}
		pos += n

		switch id {
		case idEBMLHeader, idSegment, idSegmentInfo:
			// Containers: descend by carrying on at their first child
			continue

		case idTimestampScale:
			v, ok := readElementUint(buf, pos, size, sizeKnown)
			if !ok {
				return 0, false
			}
			scale = v
			pos += int(size)

		case idDuration:
			d, ok := readElementFloat(buf, pos, size, sizeKnown)
			if !ok {
				return 0, false
			}
			return int64(d * float64(scale) / 1e9), true

		default:
			if !sizeKnown || pos+int(size) < pos {
				return 0, false // cannot make forward progress
			}
			pos += int(size)
		}
	}
	return 0, false
}

// readElementID decodes an EBML element ID at pos. Unlike sizes, the
// length-indicator bits stay part of the value.
func readElementID(buf []byte, pos int) (id uint64, n int, ok bool) {
	if pos >= len(buf) {
		return 0, 0, false
	}
	first := buf[pos]
	if first == 0 {
		return 0, 0, false
	}
	n = bits.LeadingZeros8(first) + 1
	if pos+n > len(buf) || n > 4 {
		return 0, 0, false
	}
	for i := 0; i < n; i++ {
		id = id<<8 | uint64(buf[pos+i])
	}
	return id, n, true
}

// readVINT decodes an EBML variable-length integer (element size) at pos.
// sizeKnown is false for the reserved all-ones "unknown size" encoding.
func readVINT(buf []byte, pos int) (v uint64, n int, sizeKnown, ok bool) {
	if pos >= len(buf) {
		return 0, 0, false, false
	}
	first := buf[pos]
	if first == 0 {
		return 0, 0, false, false
	}
	n = bits.LeadingZeros8(first) + 1
	if pos+n > len(buf) || n > 8 {
		return 0, 0, false, false
	}

	v = uint64(first) & (0xFF >> n)
	allOnes := v == uint64(0xFF>>n)
	for i := 1; i < n; i++ {
		b := buf[pos+i]
		v = v<<8 | uint64(b)
		allOnes = allOnes && b == 0xFF
	}
	return v, n, !allOnes, true
}

// readElementUint reads an unsigned big-endian integer spanning the
// element's declared size.
func readElementUint(buf []byte, pos int, size uint64, sizeKnown bool) (uint64, bool) {
	if !sizeKnown || size == 0 || size > 8 || pos+int(size) > len(buf) {
		return 0, false
	}
	var v uint64
	for i := 0; i < int(size); i++ {
		v = v<<8 | uint64(buf[pos+i])
	}
	return v, true
}

// readElementFloat reads an IEEE-754 float, single or double precision
// depending on the declared element size.
func readElementFloat(buf []byte, pos int, size uint64, sizeKnown bool) (float64, bool) {
	if !sizeKnown || pos+int(size) > len(buf) {
		return 0, false
	}
	switch size {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(buf[pos : pos+4]))), true
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(buf[pos : pos+8])), true
	default:
		return 0, false
	}
}
