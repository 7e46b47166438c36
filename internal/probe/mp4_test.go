package probe

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// makeBox creates an ISO-BMFF box with the given type and payload
func makeBox(boxType string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(8+len(payload)))
	copy(buf[4:8], boxType)
	copy(buf[8:], payload)
	return buf
}

// makeMvhd creates an mvhd box body for the given version
func makeMvhd(version byte, timescale uint32, duration uint64) []byte {
	var body bytes.Buffer
	body.WriteByte(version)
	body.Write([]byte{0, 0, 0}) // flags

	switch version {
	case 0:
		body.Write(make([]byte, 8)) // creation + modification time
		binary.Write(&body, binary.BigEndian, timescale)
		binary.Write(&body, binary.BigEndian, uint32(duration))
	case 1:
		body.Write(make([]byte, 16))
		binary.Write(&body, binary.BigEndian, timescale)
		binary.Write(&body, binary.BigEndian, duration)
	}

	// rate, volume, reserved, matrix, predefined, next track id
	body.Write(make([]byte, 80))

	return makeBox("mvhd", body.Bytes())
}

func TestMP4DurationVersions(t *testing.T) {
	tests := []struct {
		name    string
		version byte
		want    int64
	}{
		{"version 0", 0, 5400},
		{"version 1", 1, 5400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var file bytes.Buffer
			file.Write(makeBox("ftyp", make([]byte, 12)))
			mdia := makeBox("mdia", makeMvhd(tt.version, 1000, 5_400_000))
			trak := makeBox("trak", mdia)
			file.Write(makeBox("moov", trak))
			file.Write(makeBox("mdat", make([]byte, 64)))

			seconds, ok := MP4Duration(file.Bytes())
			if !ok {
				t.Fatal("MP4Duration() reported no result")
			}
			if seconds != tt.want {
				t.Errorf("MP4Duration() = %d, want %d", seconds, tt.want)
			}
		})
	}
}

func TestMP4DurationMvhdDirectlyInMoov(t *testing.T) {
	// mvhd normally sits directly under moov, not under trak/mdia
	var file bytes.Buffer
	file.Write(makeBox("ftyp", make([]byte, 12)))
	file.Write(makeBox("moov", makeMvhd(0, 90000, 90000*75)))

	seconds, ok := MP4Duration(file.Bytes())
	if !ok {
		t.Fatal("MP4Duration() reported no result")
	}
	if seconds != 75 {
		t.Errorf("MP4Duration() = %d, want 75", seconds)
	}
}

func TestMP4DurationSkipsOpaqueBoxes(t *testing.T) {
	var file bytes.Buffer
	file.Write(makeBox("ftyp", make([]byte, 12)))
	file.Write(makeBox("free", make([]byte, 300)))
	file.Write(makeBox("moov", makeMvhd(0, 1000, 60_000)))

	seconds, ok := MP4Duration(file.Bytes())
	if !ok {
		t.Fatal("MP4Duration() reported no result")
	}
	if seconds != 60 {
		t.Errorf("MP4Duration() = %d, want 60", seconds)
	}
}

func TestMP4DurationMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"random bytes", []byte("this is definitely not an mp4 file at all")},
		{"no mvhd", bytes.Join([][]byte{
			makeBox("ftyp", make([]byte, 12)),
			makeBox("mdat", make([]byte, 64)),
		}, nil)},
		{"box size below header", func() []byte {
			b := makeBox("ftyp", make([]byte, 12))
			binary.BigEndian.PutUint32(b[:4], 4) // no forward progress
			return b
		}()},
		{"zero timescale", makeBox("moov", makeMvhd(0, 0, 5_400_000))},
		{"unknown mvhd version", makeBox("moov", func() []byte {
			b := makeMvhd(0, 1000, 5_400_000)
			b[8] = 9 // version byte
			return b
		}())},
		{"truncated mvhd", makeBox("moov", makeBox("mvhd", []byte{0, 0, 0, 0}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if seconds, ok := MP4Duration(tt.buf); ok {
				t.Errorf("MP4Duration() = %d, want no result", seconds)
			}
		})
	}
}
