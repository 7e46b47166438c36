package probe

const (
	tsPacketSize = 188
	tsSyncByte   = 0x47

	// PES stream id ranges we accept timestamps from
	tsAudioStreamMin = 0xC0
	tsAudioStreamMax = 0xDF
	tsVideoStreamMin = 0xE0
	tsVideoStreamMax = 0xEF

	// PTS values tick at 90 kHz
	ptsClockHz = 90000
)

// TSDuration derives play duration from a transport stream by subtracting the
// first presentation timestamp found in head from the last one found in tail.
// When tail is nil (server ignored the range request) the last PTS is taken
// from head as well, which yields a best-effort lower bound.
//
// PTS values are 33 bits and wrap around after roughly 26.5 hours; recordings
// straddling a wrap come out with lastPts <= firstPts and report no result.
func TSDuration(head, tail []byte) (int64, bool) {
	first, ok := ExtractFirstPTS(head)
	if !ok {
		return 0, false
	}

	if tail == nil {
		tail = head
	}
	last, ok := ExtractLastPTS(tail)
	if !ok {
		return 0, false
	}

	if last <= first {
		return 0, false
	}
	return (last - first) / ptsClockHz, true
}

// ExtractFirstPTS scans forward through 188-byte packets and returns the
// first presentation timestamp carried in a PES header.
func ExtractFirstPTS(buf []byte) (int64, bool) {
	pts := int64(-1)
	scanPackets(buf, func(p int64) bool {
		pts = p
		return false // stop at first hit
	})
	return pts, pts >= 0
}

// ExtractLastPTS scans the entire buffer and returns the last presentation
// timestamp found.
func ExtractLastPTS(buf []byte) (int64, bool) {
	pts := int64(-1)
	scanPackets(buf, func(p int64) bool {
		pts = p
		return true // keep overwriting with later matches
	})
	return pts, pts >= 0
}

// scanPackets walks the buffer packet by packet, invoking visit for every PTS
// found. visit returns false to stop the scan early.
func scanPackets(buf []byte, visit func(pts int64) bool) {
	// Recordings sliced at arbitrary byte offsets rarely start on a packet
	// boundary; resync on the first 0x47.
	start := 0
	for start < len(buf) && buf[start] != tsSyncByte {
		start++
	}

	for off := start; off+tsPacketSize <= len(buf); off += tsPacketSize {
		pkt := buf[off : off+tsPacketSize]
		if pkt[0] != tsSyncByte {
			continue
		}

		payloadUnitStart := pkt[1]&0x40 != 0
		hasAdaptation := pkt[3]&0x20 != 0
		hasPayload := pkt[3]&0x10 != 0
		if !payloadUnitStart || !hasPayload {
			continue
		}

		payload := 4
		if hasAdaptation {
			payload += 1 + int(pkt[4])
		}

		pts, ok := parsePESTimestamp(pkt, payload)
		if !ok {
			continue
		}
		if !visit(pts) {
			return
		}
	}
}

// parsePESTimestamp reads a PTS out of a PES header starting at offset within
// the packet, if the payload actually is a PES header for an audio or video
// elementary stream carrying one.
func parsePESTimestamp(pkt []byte, offset int) (int64, bool) {
	// start code (3) + stream id (1) + length (2) + flags (2) + header len (1)
	// + timestamp (5)
	if offset < 0 || offset+14 > len(pkt) {
		return 0, false
	}
	pes := pkt[offset:]

	if pes[0] != 0x00 || pes[1] != 0x00 || pes[2] != 0x01 {
		return 0, false
	}

	streamID := pes[3]
	video := streamID >= tsVideoStreamMin && streamID <= tsVideoStreamMax
	audio := streamID >= tsAudioStreamMin && streamID <= tsAudioStreamMax
	if !video && !audio {
		return 0, false
	}

	if pes[7]&0x80 == 0 {
		return 0, false // no PTS present
	}

	// 33 bits spread over 5 bytes with interleaved marker bits
	ts := pes[9:14]
	pts := int64(ts[0]>>1&0x07)<<30 |
		int64(ts[1])<<22 |
		int64(ts[2]>>1)<<15 |
		int64(ts[3])<<7 |
		int64(ts[4]>>1)
	return pts, true
}
