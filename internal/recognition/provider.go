// Package recognition defines the contract with the upstream speech
// recognizer and a websocket client implementing it.
package recognition

import "context"

// StreamConfig carries the parameters for opening one recognition stream.
type StreamConfig struct {
	// Language is a hint for the recognizer's input language. It cannot be
	// changed once the stream is open.
	Language string
	// SampleRate of the PCM16 mono audio that will be sent, in Hz.
	SampleRate int
}

// Stream is one open bidirectional channel to the recognizer.
type Stream interface {
	// SendAudio forwards one raw PCM16 frame. Callers must not send before a
	// KindReady event has been observed.
	SendAudio(data []byte) error
	// Events returns the decoded upstream event stream. The channel is closed
	// after a KindClosed event is delivered.
	Events() <-chan Event
	// Close releases the upstream handle. Safe to call more than once.
	Close() error
}

// Provider opens recognition streams. The production implementation dials a
// websocket; tests substitute fakes.
type Provider interface {
	OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
