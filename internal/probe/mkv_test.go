package probe

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// ebmlID encodes an element ID (marker bits included, as stored).
func ebmlID(id uint64) []byte {
	var out []byte
	for id > 0 {
		out = append([]byte{byte(id)}, out...)
		id >>= 8
	}
	return out
}

// ebmlSize encodes a small element size as a single-byte VINT.
func ebmlSize(n int) []byte {
	return []byte{0x80 | byte(n)}
}

// element builds id + size + payload.
func element(id uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(ebmlID(id))
	buf.Write(ebmlSize(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// container builds id + size but leaves the payload to be appended by the
// caller, matching how the walker descends instead of skipping.
func container(id uint64, payloadLen int) []byte {
	var buf bytes.Buffer
	buf.Write(ebmlID(id))
	buf.Write(ebmlSize(payloadLen))
	return buf.Bytes()
}

func floatBytes32(f float32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, math.Float32bits(f))
	return out
}

func floatBytes64(f float64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, math.Float64bits(f))
	return out
}

func uintBytes(v uint64, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// makeMKV builds header + segment + info wrapping the given info children.
func makeMKV(infoChildren ...[]byte) []byte {
	var info bytes.Buffer
	for _, c := range infoChildren {
		info.Write(c)
	}

	var buf bytes.Buffer
	buf.Write(element(idEBMLHeader, nil))
	buf.Write(container(idSegment, 0x7E)) // walker descends, size is nominal
	buf.Write(container(idSegmentInfo, info.Len()))
	buf.Write(info.Bytes())
	return buf.Bytes()
}

func TestMKVDurationScaleVariants(t *testing.T) {
	tests := []struct {
		name     string
		children [][]byte
		want     int64
	}{
		{
			"float32 with default scale written out",
			[][]byte{
				element(idTimestampScale, uintBytes(1_000_000, 3)),
				element(idDuration, floatBytes32(5400000.0)),
			},
			5400,
		},
		{
			"float64 duration",
			[][]byte{
				element(idTimestampScale, uintBytes(1_000_000, 3)),
				element(idDuration, floatBytes64(5400000.0)),
			},
			5400,
		},
		{
			"custom timestamp scale",
			[][]byte{
				element(idTimestampScale, uintBytes(500_000, 3)),
				element(idDuration, floatBytes64(5400000.0)),
			},
			2700,
		},
		{
			"missing scale falls back to nanoseconds default",
			[][]byte{
				element(idDuration, floatBytes32(5400000.0)),
			},
			5400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seconds, ok := MKVDuration(makeMKV(tt.children...))
			if !ok {
				t.Fatal("MKVDuration() reported no result")
			}
			if seconds != tt.want {
				t.Errorf("MKVDuration() = %d, want %d", seconds, tt.want)
			}
		})
	}
}

func TestMKVDurationSkipsUnknownElements(t *testing.T) {
	// MuxingApp (0x4D80) sits in Segment Info before the duration
	muxer := element(0x4D80, []byte("hoarderwatch-test"))
	buf := makeMKV(
		muxer,
		element(idTimestampScale, uintBytes(1_000_000, 3)),
		element(idDuration, floatBytes64(120000.0)),
	)

	seconds, ok := MKVDuration(buf)
	if !ok {
		t.Fatal("MKVDuration() reported no result")
	}
	if seconds != 120 {
		t.Errorf("MKVDuration() = %d, want 120", seconds)
	}
}

func TestMKVDurationUnknownSizeSegment(t *testing.T) {
	// Live-captured segments use the reserved all-ones size; the walker
	// must still descend into them.
	var buf bytes.Buffer
	buf.Write(element(idEBMLHeader, nil))
	buf.Write(ebmlID(idSegment))
	buf.WriteByte(0xFF) // unknown size
	buf.Write(container(idSegmentInfo, 11))
	buf.Write(element(idDuration, floatBytes64(300000.0)))

	seconds, ok := MKVDuration(buf.Bytes())
	if !ok {
		t.Fatal("MKVDuration() reported no result")
	}
	if seconds != 300 {
		t.Errorf("MKVDuration() = %d, want 300", seconds)
	}
}

func TestMKVDurationMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"zero first byte", []byte{0x00, 0x00, 0x00}},
		{"no duration element", makeMKV(
			element(idTimestampScale, uintBytes(1_000_000, 3)),
		)},
		{"duration with odd size", makeMKV(
			element(idDuration, []byte{0x01, 0x02, 0x03}),
		)},
		{"unknown size on non-container", makeMKV(
			append(ebmlID(0x4D80), 0xFF),
		)},
		{"truncated element payload", append(ebmlID(idDuration), 0x88)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if seconds, ok := MKVDuration(tt.buf); ok {
				t.Errorf("MKVDuration() = %d, want no result", seconds)
			}
		})
	}
}
