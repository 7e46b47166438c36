package probe

import "encoding/binary"

const mp4BoxHeaderSize = 8

// MP4Duration walks ISO-BMFF boxes in the buffer until it finds the movie
// header (mvhd) and returns its declared duration in seconds. The movie
// header sits near the front of well-formed files, so the first ~64 KiB is
// normally enough; files with the moov box at the end report no result.
func MP4Duration(buf []byte) (int64, bool) {
	pos := 0
	for pos+mp4BoxHeaderSize <= len(buf) {
		size := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		boxType := string(buf[pos+4 : pos+8])

		switch boxType {
		case "moov", "trak", "mdia":
			// Container boxes: enter rather than skip
			pos += mp4BoxHeaderSize
			continue
		case "mvhd":
			return parseMvhd(buf[pos+mp4BoxHeaderSize:])
		}

		// size 0 means the box extends to end of file
		if size == 0 {
			return 0, false
		}
		if size < mp4BoxHeaderSize {
			return 0, false // malformed, no forward progress
		}
		pos += size
	}
	return 0, false
}

// parseMvhd reads timescale and duration from an mvhd box body (the bytes
// following the size/type header).
func parseMvhd(body []byte) (int64, bool) {
	if len(body) < 1 {
		return 0, false
	}

	var timescale uint32
	var duration uint64

	switch body[0] {
	case 0:
		// version(1) flags(3) creation(4) modification(4)
		if len(body) < 12+8 {
			return 0, false
		}
		timescale = binary.BigEndian.Uint32(body[12:16])
		duration = uint64(binary.BigEndian.Uint32(body[16:20]))
	case 1:
		// version(1) flags(3) creation(8) modification(8)
		if len(body) < 20+12 {
			return 0, false
		}
		timescale = binary.BigEndian.Uint32(body[20:24])
		duration = binary.BigEndian.Uint64(body[24:32])
	default:
		return 0, false
	}

	if timescale == 0 {
		return 0, false
	}
	return int64(duration / uint64(timescale)), true
}
