// Package session owns one speaking connection's streaming channel to the
// upstream recognizer and tracks partial versus finalized results.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Musab74/OnAir-backend/internal/audio"
	"github.com/Musab74/OnAir-backend/internal/language"
	"github.com/Musab74/OnAir-backend/internal/recognition"
)

// ErrReadyTimeout is reported when the upstream never acknowledges readiness
// within the configured wait. Fatal to the connection.
var ErrReadyTimeout = errors.New("upstream recognizer ready timeout")

// State of the session's upstream channel.
type State int

const (
	StateConnecting State = iota
	StateAwaitingReady
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Observer receives the session's typed result events. Callbacks run on the
// session's event goroutine and must not block for long.
type Observer interface {
	OnPartial(text string)
	OnFinal(text, detectedLanguage string)
	OnError(err error)
	OnClosed()
}

// Config for one streaming session.
type Config struct {
	MeetingID   string
	SpeakerID   string
	SpeakerName string

	// LanguageHint seeds the recognizer's input language and the initial
	// speaker-feedback translation target.
	LanguageHint string

	SampleRate       int
	ReadyTimeout     time.Duration
	WatchdogInterval time.Duration
	// CaptureSeconds bounds the archival ring buffer.
	CaptureSeconds int
}

const (
	defaultSampleRate       = 16000
	defaultReadyTimeout     = 5 * time.Second
	defaultWatchdogInterval = 60 * time.Second
	defaultCaptureSeconds   = 600
	audioQueueDepth         = 100
)

// Session proxies audio to one upstream recognition stream.
type Session struct {
	ID  string
	cfg Config

	provider recognition.Provider
	observer Observer
	logger   *log.Logger

	audioCh chan []byte
	done    chan struct{}
	capture *audio.Ring

	mu            sync.Mutex
	state         State
	stream        recognition.Stream
	targetLang    string
	lastPartial   string
	lastActivity  time.Time
	readyTimer    *time.Timer
	watchdog      *time.Timer
	readyArmed    bool
	watchdogArmed bool
	watchdogTrips int
	droppedFrames int

	fatalOnce  sync.Once
	closedOnce sync.Once
}

func New(provider recognition.Provider, observer Observer, logger *log.Logger, cfg Config) *Session {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = defaultWatchdogInterval
	}
	if cfg.CaptureSeconds <= 0 {
		cfg.CaptureSeconds = defaultCaptureSeconds
	}
	return &Session{
		ID:         uuid.NewString(),
		cfg:        cfg,
		provider:   provider,
		observer:   observer,
		logger:     logger,
		audioCh:    make(chan []byte, audioQueueDepth),
		done:       make(chan struct{}),
		capture:    audio.NewRing(cfg.SampleRate * cfg.CaptureSeconds),
		state:      StateConnecting,
		targetLang: language.Normalize(cfg.LanguageHint),
	}
}

// MeetingID returns the meeting this session speaks into.
func (s *Session) MeetingID() string { return s.cfg.MeetingID }

// Start opens the upstream channel and begins the bounded wait for its ready
// acknowledgment.
func (s *Session) Start(ctx context.Context) error {
	stream, err := s.provider.OpenStream(ctx, recognition.StreamConfig{
		Language:   s.cfg.LanguageHint,
		SampleRate: s.cfg.SampleRate,
	})
	if err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return fmt.Errorf("open recognition stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.state = StateAwaitingReady
	s.readyArmed = true
	s.readyTimer = time.AfterFunc(s.cfg.ReadyTimeout, func() {
		s.mu.Lock()
		s.readyArmed = false
		waiting := s.state == StateAwaitingReady
		s.mu.Unlock()
		if waiting {
			s.fatal(ErrReadyTimeout)
		}
	})
	s.mu.Unlock()

	go s.eventLoop()
	go s.writeLoop()
	return nil
}

// IngestAudio queues one PCM16 frame for the upstream. Never blocks the
// caller; frames are dropped while the upstream is not streaming or when the
// queue is full. The upstream rejects audio before readiness, so early frames
// are not buffered.
func (s *Session) IngestAudio(data []byte) {
	s.mu.Lock()
	streaming := s.state == StateStreaming
	s.lastActivity = time.Now()
	s.mu.Unlock()
	if !streaming {
		return
	}

	s.capture.WriteBytes(data)

	select {
	case s.audioCh <- data:
	default:
		s.mu.Lock()
		s.droppedFrames++
		dropped := s.droppedFrames
		s.mu.Unlock()
		if dropped%100 == 1 {
			s.logger.Warn("audio queue full, dropping frames",
				"session", s.ID, "dropped", dropped)
		}
	}
}

// UpdateLanguage changes the speaker-feedback translation target. The
// upstream input-language hint cannot change mid-stream, so this never
// restarts the connection. No-op when the value is unchanged.
func (s *Session) UpdateLanguage(lang string) {
	normalized := language.Normalize(lang)
	s.mu.Lock()
	defer s.mu.Unlock()
	if normalized == s.targetLang {
		return
	}
	s.targetLang = normalized
	s.logger.Info("feedback language updated", "session", s.ID, "language", normalized)
}

// TargetLanguage returns the current speaker-feedback translation target.
func (s *Session) TargetLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLang
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WatchdogTrips counts forced-finalization intervals that elapsed without a
// final result. Observability only.
func (s *Session) WatchdogTrips() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchdogTrips
}

// ActiveTimers reports how many of the session's timers are currently armed.
// Zero after Stop.
func (s *Session) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if s.readyArmed {
		n++
	}
	if s.watchdogArmed {
		n++
	}
	return n
}

// CapturedWAV returns the buffered session audio wrapped as WAV, for
// archival on stop.
func (s *Session) CapturedWAV() []byte {
	pcm := s.capture.Snapshot()
	if len(pcm) == 0 {
		return nil
	}
	return audio.EncodeWAV(pcm, s.cfg.SampleRate)
}

// Stop closes the session. Idempotent: timers are cancelled and the upstream
// handle released exactly once, synchronously, so no late event from a dead
// session can be delivered.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.readyTimer != nil {
		s.readyTimer.Stop()
	}
	s.readyArmed = false
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdogArmed = false
	stream := s.stream
	s.mu.Unlock()

	close(s.done)
	if stream != nil {
		_ = stream.Close()
	}

	s.closedOnce.Do(func() {
		s.observer.OnClosed()
	})
}

func (s *Session) fatal(err error) {
	s.fatalOnce.Do(func() {
		s.logger.Error("session fatal error", "session", s.ID, "error", err)
		s.observer.OnError(err)
	})
	s.Stop()
}

// writeLoop drains the audio queue into the upstream stream.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.audioCh:
			s.mu.Lock()
			stream := s.stream
			streaming := s.state == StateStreaming
			s.mu.Unlock()
			if !streaming || stream == nil {
				continue
			}
			if err := stream.SendAudio(data); err != nil {
				s.logger.Warn("audio send failed", "session", s.ID, "error", err)
				return
			}
		}
	}
}

// eventLoop consumes decoded upstream events until the stream closes.
func (s *Session) eventLoop() {
	for ev := range s.stream.Events() {
		switch ev.Kind {
		case recognition.KindReady:
			s.onReady()
		case recognition.KindPartial:
			s.onPartial(ev.Text)
		case recognition.KindFinal:
			s.onFinal(ev.Text, ev.DetectedLanguage)
		case recognition.KindError:
			s.fatal(ev.Err)
			return
		case recognition.KindClosed:
			if recognition.FatalClose(ev.Code) && s.State() != StateClosed {
				s.fatal(fmt.Errorf("upstream closed: code=%d reason=%s", ev.Code, ev.Reason))
			} else {
				s.Stop()
			}
			return
		}
	}
	// Channel closed without a terminal event.
	s.Stop()
}

func (s *Session) onReady() {
	s.mu.Lock()
	if s.state != StateAwaitingReady {
		s.mu.Unlock()
		return
	}
	if s.readyTimer != nil {
		s.readyTimer.Stop()
	}
	s.readyArmed = false
	s.state = StateStreaming
	s.armWatchdogLocked()
	s.mu.Unlock()
	s.logger.Info("upstream ready", "session", s.ID, "meeting", s.cfg.MeetingID)
}

func (s *Session) onPartial(text string) {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.lastPartial = text
	s.lastActivity = time.Now()
	s.armWatchdogLocked()
	s.mu.Unlock()

	s.observer.OnPartial(text)
}

func (s *Session) onFinal(text, detectedLanguage string) {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.lastPartial = ""
	s.lastActivity = time.Now()
	s.armWatchdogLocked()
	s.mu.Unlock()

	s.observer.OnFinal(text, detectedLanguage)
}

// armWatchdogLocked (re)starts the forced-finalization watchdog. Caller holds
// s.mu.
func (s *Session) armWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdogArmed = true
	s.watchdog = time.AfterFunc(s.cfg.WatchdogInterval, s.watchdogFired)
}

// watchdogFired flags continuous speech without a final boundary. The
// upstream is expected to auto-segment long utterances, so this only logs; it
// never fabricates a final result from partial text.
func (s *Session) watchdogFired() {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.watchdogArmed = false
		s.mu.Unlock()
		return
	}
	s.watchdogTrips++
	trips := s.watchdogTrips
	partial := s.lastPartial
	s.watchdog = time.AfterFunc(s.cfg.WatchdogInterval, s.watchdogFired)
	s.mu.Unlock()

	s.logger.Warn("no final result within watchdog interval",
		"session", s.ID,
		"meeting", s.cfg.MeetingID,
		"trips", trips,
		"partialLen", len(partial))
}
