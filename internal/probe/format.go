package probe

import "strings"

// Container represents a media container format we know how to probe.
type Container int

const (
	ContainerTS Container = iota
	ContainerMP4
	ContainerMKV
)

// String returns a human-readable container name
func (c Container) String() string {
	switch c {
	case ContainerMP4:
		return "mp4"
	case ContainerMKV:
		return "mkv"
	default:
		return "ts"
	}
}

// DetectContainer maps a file-extension hint to a container format.
// The PVR records to transport stream natively, so anything unrecognized
// (including an empty hint) falls back to ContainerTS.
func DetectContainer(extHint string) Container {
	switch strings.ToLower(strings.TrimPrefix(extHint, ".")) {
	case "mp4", "m4v":
		return ContainerMP4
	case "mkv", "webm":
		return ContainerMKV
	default:
		return ContainerTS
	}
}

// HeadBytes returns how much of the file start the container's prober needs.
func (c Container) HeadBytes() int64 {
	switch c {
	case ContainerMP4, ContainerMKV:
		return headerProbeBytes
	default:
		return headFetchBytes
	}
}

// NeedsTail reports whether the prober wants a slice from the end of the
// file. Only the transport-stream prober does (last PTS lives there); MP4 and
// MKV durations come from header metadata.
func (c Container) NeedsTail() bool {
	return c == ContainerTS
}

// Duration dispatches to the container's parsing function. head holds bytes
// from the file start; tail holds bytes from the end, or nil when the server
// returned a single undifferentiated buffer (tail extraction then runs over
// head as a best effort). Returns the detected play duration in seconds,
// or ok=false when the buffers hold no usable structure.
func (c Container) Duration(head, tail []byte) (seconds int64, ok bool) {
	switch c {
	case ContainerMP4:
		return MP4Duration(head)
	case ContainerMKV:
		return MKVDuration(head)
	default:
		return TSDuration(head, tail)
	}
}
