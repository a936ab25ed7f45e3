package registry

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Musab74/OnAir-backend/internal/broadcast"
	"github.com/Musab74/OnAir-backend/internal/recognition"
	"github.com/Musab74/OnAir-backend/internal/session"
)

type fakeConn struct {
	id          string
	participant string
	name        string

	mu   sync.Mutex
	sent []any
}

func (c *fakeConn) ID() string            { return c.id }
func (c *fakeConn) ParticipantID() string { return c.participant }
func (c *fakeConn) DisplayName() string   { return c.name }

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) eventsOf(kind string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, v := range c.sent {
		switch e := v.(type) {
		case SubtitleUpdate:
			if kind == eventSubtitleUpdate {
				out = append(out, e)
			}
		case TranslationFailed:
			if kind == eventTranslationFailed {
				out = append(out, e)
			}
		case PartialTranscript:
			if kind == eventPartialTranscript {
				out = append(out, e)
			}
		case FinalTranscript:
			if kind == eventFinalTranscript {
				out = append(out, e)
			}
		case ErrorEvent:
			if kind == eventError {
				out = append(out, e)
			}
		}
	}
	return out
}

type fakeStream struct {
	events    chan recognition.Event
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan recognition.Event, 16)}
}

func (f *fakeStream) SendAudio([]byte) error           { return nil }
func (f *fakeStream) Events() <-chan recognition.Event { return f.events }

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (f *fakeProvider) OpenStream(context.Context, recognition.StreamConfig) (recognition.Stream, error) {
	s := newFakeStream()
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeProvider) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

type countingTranslator struct {
	mu    sync.Mutex
	calls int
	out   string
}

func (c *countingTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.out != "" {
		return c.out, nil
	}
	return "번역된 텍스트: " + text, nil
}

func (c *countingTranslator) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func newTestRegistry(provider *fakeProvider, tr *countingTranslator) *Registry {
	logger := log.New(io.Discard)
	engine := broadcast.NewEngine(tr, nil, logger)
	return New(provider, tr, engine, nil, logger, Config{
		ReadyTimeout:     time.Second,
		WatchdogInterval: time.Minute,
	})
}

func TestSubscribeUnsubscribe(t *testing.T) {
	r := newTestRegistry(&fakeProvider{}, &countingTranslator{})
	conn := &fakeConn{id: "c1", participant: "p1", name: "Ann"}

	if err := r.Connect(conn); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := r.Subscribe("c1", "m1", "ko"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := r.SubscriberCount("m1"); got != 1 {
		t.Errorf("subscribers = %d, want 1", got)
	}
	if got := r.Preferences().Get("m1", "p1"); got != "ko" {
		t.Errorf("stored preference = %q, want ko", got)
	}

	if err := r.Unsubscribe("c1", "m1"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if got := r.SubscriberCount("m1"); got != 0 {
		t.Errorf("subscribers = %d after unsubscribe, want 0", got)
	}
	// Preference persists past unsubscribe.
	if got := r.Preferences().Get("m1", "p1"); got != "ko" {
		t.Errorf("preference after unsubscribe = %q, want ko", got)
	}
}

func TestSubscribeReplacesPreviousMeeting(t *testing.T) {
	r := newTestRegistry(&fakeProvider{}, &countingTranslator{})
	conn := &fakeConn{id: "c1", participant: "p1", name: "Ann"}
	_ = r.Connect(conn)

	_ = r.Subscribe("c1", "m1", "ko")
	_ = r.Subscribe("c1", "m2", "ko")

	if got := r.SubscriberCount("m1"); got != 0 {
		t.Errorf("old meeting still has %d subscriber(s)", got)
	}
	if got := r.SubscriberCount("m2"); got != 1 {
		t.Errorf("new meeting has %d subscriber(s), want 1", got)
	}
}

func TestDisconnectCleansEverything(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestRegistry(provider, &countingTranslator{})
	conn := &fakeConn{id: "c1", participant: "p1", name: "Ann"}
	_ = r.Connect(conn)
	_ = r.Subscribe("c1", "m1", "ko")

	if err := r.StartSession(context.Background(), "c1", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	provider.last().events <- recognition.Event{Kind: recognition.KindReady}
	waitFor(t, time.Second, func() bool { return r.ActiveSessions() == 1 })

	r.Disconnect("c1")

	if got := r.SubscriberCount("m1"); got != 0 {
		t.Errorf("subscribers = %d after disconnect, want 0", got)
	}
	if got := r.ActiveSessions(); got != 0 {
		t.Errorf("active sessions = %d after disconnect, want 0", got)
	}
	// Preference survives the disconnect for reconnects within the meeting.
	if got := r.Preferences().Get("m1", "p1"); got != "ko" {
		t.Errorf("preference after disconnect = %q, want ko", got)
	}

	// Second disconnect is a no-op.
	r.Disconnect("c1")
}

func TestKoreanEnglishScenario(t *testing.T) {
	provider := &fakeProvider{}
	tr := &countingTranslator{out: "안녕하세요"}
	r := newTestRegistry(provider, tr)

	speaker := &fakeConn{id: "sp", participant: "p-speaker", name: "Speaker"}
	x := &fakeConn{id: "cx", participant: "p-x", name: "X"}
	y := &fakeConn{id: "cy", participant: "p-y", name: "Y"}
	for _, c := range []*fakeConn{speaker, x, y} {
		_ = r.Connect(c)
	}
	_ = r.Subscribe("cx", "m1", "ko")
	_ = r.Subscribe("cy", "m1", "en")

	if err := r.StartSession(context.Background(), "sp", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	stream := provider.last()
	stream.events <- recognition.Event{Kind: recognition.KindReady}
	stream.events <- recognition.Event{
		Kind: recognition.KindFinal, Text: "hello everyone, welcome back", DetectedLanguage: "en",
	}

	waitFor(t, time.Second, func() bool {
		return len(x.eventsOf(eventSubtitleUpdate)) == 1
	})

	updates := x.eventsOf(eventSubtitleUpdate)
	got := updates[0].(SubtitleUpdate)
	if got.TranslatedText != "안녕하세요" {
		t.Errorf("translated text = %q", got.TranslatedText)
	}
	if got.TargetLanguage != "ko" || got.SourceLanguage != "en" {
		t.Errorf("languages = %s->%s, want en->ko", got.SourceLanguage, got.TargetLanguage)
	}

	if n := len(y.eventsOf(eventSubtitleUpdate)); n != 0 {
		t.Errorf("same-language subscriber received %d update(s), want 0", n)
	}

	// One call for the ko group plus at most one for speaker feedback
	// (speaker hint en == source en, so feedback needs no call).
	if calls := tr.callCount(); calls != 1 {
		t.Errorf("translation calls = %d, want exactly 1", calls)
	}
}

func TestNoisyFinalNeverReachesBroadcast(t *testing.T) {
	provider := &fakeProvider{}
	tr := &countingTranslator{}
	r := newTestRegistry(provider, tr)

	speaker := &fakeConn{id: "sp", participant: "p1", name: "Speaker"}
	viewer := &fakeConn{id: "cv", participant: "p2", name: "Viewer"}
	_ = r.Connect(speaker)
	_ = r.Connect(viewer)
	_ = r.Subscribe("cv", "m1", "ko")

	if err := r.StartSession(context.Background(), "sp", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	stream := provider.last()
	stream.events <- recognition.Event{Kind: recognition.KindReady}
	stream.events <- recognition.Event{
		Kind: recognition.KindFinal, Text: "uh um ah", DetectedLanguage: "en",
	}
	// Follow with a clean final so we can tell processing finished.
	stream.events <- recognition.Event{
		Kind: recognition.KindFinal, Text: "now we can begin the meeting", DetectedLanguage: "en",
	}

	waitFor(t, time.Second, func() bool {
		return len(viewer.eventsOf(eventSubtitleUpdate)) == 1
	})

	update := viewer.eventsOf(eventSubtitleUpdate)[0].(SubtitleUpdate)
	if !strings.Contains(update.OriginalText, "begin the meeting") {
		t.Errorf("unexpected delivery: %+v", update)
	}
}

func TestPartialForwardedToSpeakerOnly(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestRegistry(provider, &countingTranslator{})

	speaker := &fakeConn{id: "sp", participant: "p1", name: "Speaker"}
	viewer := &fakeConn{id: "cv", participant: "p2", name: "Viewer"}
	_ = r.Connect(speaker)
	_ = r.Connect(viewer)
	_ = r.Subscribe("cv", "m1", "ko")

	if err := r.StartSession(context.Background(), "sp", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	stream := provider.last()
	stream.events <- recognition.Event{Kind: recognition.KindReady}
	stream.events <- recognition.Event{Kind: recognition.KindPartial, Text: "hello eve"}

	waitFor(t, time.Second, func() bool {
		return len(speaker.eventsOf(eventPartialTranscript)) == 1
	})
	if n := len(viewer.eventsOf(eventPartialTranscript)); n != 0 {
		t.Errorf("viewer received %d partial(s), want 0", n)
	}
}

func TestSpeakerFeedbackSameLanguageNoTranslation(t *testing.T) {
	provider := &fakeProvider{}
	tr := &countingTranslator{}
	r := newTestRegistry(provider, tr)

	speaker := &fakeConn{id: "sp", participant: "p1", name: "Speaker"}
	_ = r.Connect(speaker)

	if err := r.StartSession(context.Background(), "sp", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	stream := provider.last()
	stream.events <- recognition.Event{Kind: recognition.KindReady}
	stream.events <- recognition.Event{
		Kind: recognition.KindFinal, Text: "good morning everyone", DetectedLanguage: "en",
	}

	waitFor(t, time.Second, func() bool {
		return len(speaker.eventsOf(eventFinalTranscript)) == 1
	})
	ft := speaker.eventsOf(eventFinalTranscript)[0].(FinalTranscript)
	if ft.TranslatedText != "good morning everyone" {
		t.Errorf("same-language feedback = %q, want original text unchanged", ft.TranslatedText)
	}
	if tr.callCount() != 0 {
		t.Errorf("translation calls = %d, want 0 when source == target", tr.callCount())
	}
}

func TestStartSessionTwiceRejected(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestRegistry(provider, &countingTranslator{})
	conn := &fakeConn{id: "c1", participant: "p1", name: "Ann"}
	_ = r.Connect(conn)

	if err := r.StartSession(context.Background(), "c1", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := r.StartSession(context.Background(), "c1", "m1", "en"); err != ErrSessionActive {
		t.Errorf("second StartSession error = %v, want ErrSessionActive", err)
	}
	_ = r.StopSession("c1")
}

func TestOperationsOnUnknownConnection(t *testing.T) {
	r := newTestRegistry(&fakeProvider{}, &countingTranslator{})
	if err := r.Subscribe("nope", "m1", "ko"); err != ErrUnknownConnection {
		t.Errorf("Subscribe error = %v, want ErrUnknownConnection", err)
	}
	if err := r.StartSession(context.Background(), "nope", "m1", "en"); err != ErrUnknownConnection {
		t.Errorf("StartSession error = %v, want ErrUnknownConnection", err)
	}
	if err := r.Subscribe("nope", "", "ko"); err != ErrMissingMeetingID {
		t.Errorf("empty meeting error = %v, want ErrMissingMeetingID", err)
	}
	// Audio for unknown connections drops silently.
	r.IngestAudioChunk("nope", []byte{0, 0})
}

func TestStopSessionLeavesNoTimers(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestRegistry(provider, &countingTranslator{})
	conn := &fakeConn{id: "c1", participant: "p1", name: "Ann"}
	_ = r.Connect(conn)

	if err := r.StartSession(context.Background(), "c1", "m1", "en"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	provider.last().events <- recognition.Event{Kind: recognition.KindReady}
	waitFor(t, time.Second, func() bool { return r.ActiveSessions() == 1 })

	if err := r.StopSession("c1"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if got := r.ActiveSessions(); got != 0 {
		t.Errorf("active sessions = %d, want 0", got)
	}
	if err := r.StopSession("c1"); err != ErrNoSession {
		t.Errorf("second StopSession error = %v, want ErrNoSession", err)
	}
}

var _ session.Observer = (*sessionObserver)(nil)
