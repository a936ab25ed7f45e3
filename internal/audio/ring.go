// Package audio holds PCM16 plumbing shared by the session capture and the
// archival path.
package audio

import "sync"

// Ring is a bounded buffer of PCM16 samples keeping the most recent N. The
// session recorder uses it so an unbounded meeting cannot grow memory without
// limit.
type Ring struct {
	mu   sync.Mutex
	buf  []int16
	pos  int
	full bool
}

func NewRing(size int) *Ring {
	return &Ring{buf: make([]int16, size)}
}

func (r *Ring) Write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos++
		if r.pos >= len(r.buf) {
			r.pos = 0
			r.full = true
		}
	}
}

// WriteBytes appends little-endian PCM16 bytes. Odd trailing bytes are
// ignored.
func (r *Ring) WriteBytes(data []byte) {
	n := len(data) / 2
	if n == 0 {
		return
	}
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	r.Write(samples)
}

// ReadLast returns up to the last n samples in arrival order.
func (r *Ring) ReadLast(n int) []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.buf) {
		n = len(r.buf)
	}

	available := len(r.buf)
	if !r.full {
		available = r.pos
	}
	if n > available {
		n = available
	}

	if n == 0 {
		return []int16{}
	}

	out := make([]int16, n)

	start := r.pos - n
	if start < 0 {
		start += len(r.buf)
	}

	if start+n <= len(r.buf) {
		copy(out, r.buf[start:start+n])
	} else {
		firstPart := len(r.buf) - start
		copy(out, r.buf[start:])
		copy(out[firstPart:], r.buf[:n-firstPart])
	}

	return out
}

// Snapshot returns everything currently buffered, oldest first.
func (r *Ring) Snapshot() []int16 {
	return r.ReadLast(len(r.buf))
}

// Clear resets the ring buffer, discarding all stored audio.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.full = false
}
