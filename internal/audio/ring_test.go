package audio

import (
	"bytes"
	"testing"
)

func TestRingKeepsMostRecentSamples(t *testing.T) {
	r := NewRing(4)
	r.Write([]int16{1, 2, 3, 4, 5, 6})

	got := r.Snapshot()
	want := []int16{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("snapshot length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", got, want)
		}
	}
}

func TestRingReadLastPartialFill(t *testing.T) {
	r := NewRing(8)
	r.Write([]int16{10, 20, 30})

	got := r.ReadLast(5)
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	if got[0] != 10 || got[2] != 30 {
		t.Fatalf("unexpected samples %v", got)
	}
}

func TestWriteBytesDecodesLittleEndian(t *testing.T) {
	r := NewRing(4)
	r.WriteBytes([]byte{0x01, 0x00, 0xff, 0xff, 0x00}) // trailing odd byte ignored

	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2", len(got))
	}
	if got[0] != 1 || got[1] != -1 {
		t.Fatalf("samples = %v, want [1 -1]", got)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := EncodeWAV([]int16{0, 1, -1}, 16000)

	if len(wav) != 44+6 {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+6)
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) {
		t.Errorf("missing RIFF magic")
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Errorf("missing WAVE magic")
	}
	if !bytes.Equal(wav[36:40], []byte("data")) {
		t.Errorf("missing data chunk")
	}
}
