package probe

import "testing"

func TestDetectContainer(t *testing.T) {
	tests := []struct {
		hint string
		want Container
	}{
		{"mp4", ContainerMP4},
		{"m4v", ContainerMP4},
		{"MP4", ContainerMP4},
		{".mp4", ContainerMP4},
		{"mkv", ContainerMKV},
		{"webm", ContainerMKV},
		{"ts", ContainerTS},
		{"m2ts", ContainerTS},
		{"avi", ContainerTS},
		{"", ContainerTS},
	}

	for _, tt := range tests {
		t.Run("hint "+tt.hint, func(t *testing.T) {
			if got := DetectContainer(tt.hint); got != tt.want {
				t.Errorf("DetectContainer(%q) = %v, want %v", tt.hint, got, tt.want)
			}
		})
	}
}

func TestContainerHeadBytes(t *testing.T) {
	if got := ContainerTS.HeadBytes(); got != headFetchBytes {
		t.Errorf("ContainerTS.HeadBytes() = %d, want %d", got, headFetchBytes)
	}
	if got := ContainerMP4.HeadBytes(); got != headerProbeBytes {
		t.Errorf("ContainerMP4.HeadBytes() = %d, want %d", got, headerProbeBytes)
	}
	if got := ContainerMKV.HeadBytes(); got != headerProbeBytes {
		t.Errorf("ContainerMKV.HeadBytes() = %d, want %d", got, headerProbeBytes)
	}
}

func TestContainerNeedsTail(t *testing.T) {
	if !ContainerTS.NeedsTail() {
		t.Error("ContainerTS.NeedsTail() = false, want true")
	}
	if ContainerMP4.NeedsTail() || ContainerMKV.NeedsTail() {
		t.Error("header-metadata containers should not need a tail fetch")
	}
}
