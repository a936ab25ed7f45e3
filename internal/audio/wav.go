package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps PCM16 mono samples in a minimal RIFF/WAVE container.
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	dataBytes := len(pcm) * 2
	var b bytes.Buffer

	// RIFF header
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+dataBytes))
	b.WriteString("WAVE")

	// fmt chunk
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))           // chunk size
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))            // PCM
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))            // mono
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))   // sample rate
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(&b, binary.LittleEndian, uint16(2))            // block align
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))           // bits per sample

	// data chunk
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(dataBytes))
	for _, s := range pcm {
		_ = binary.Write(&b, binary.LittleEndian, s)
	}
	return b.Bytes()
}
