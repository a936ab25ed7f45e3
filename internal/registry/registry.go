// Package registry owns the connection, subscription and session bookkeeping
// for the live subtitle engine. All shared maps are mutated under one mutex;
// callers only get atomic operations, never the raw maps.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Musab74/OnAir-backend/internal/broadcast"
	"github.com/Musab74/OnAir-backend/internal/language"
	"github.com/Musab74/OnAir-backend/internal/quality"
	"github.com/Musab74/OnAir-backend/internal/recognition"
	"github.com/Musab74/OnAir-backend/internal/session"
	"github.com/Musab74/OnAir-backend/internal/translate"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrMissingMeetingID  = errors.New("meeting id required")
	ErrSessionActive     = errors.New("session already active for this connection")
	ErrNoSession         = errors.New("no active session for this connection")
)

// ClientConn is one connected client as the registry sees it. The gateway
// adapts the websocket transport to this interface; tests use fakes.
type ClientConn interface {
	ID() string
	ParticipantID() string
	DisplayName() string
	Send(v any) error
}

// RecordingStore archives session audio on stop. Optional.
type RecordingStore interface {
	SaveRecording(ctx context.Context, meetingID, sessionID string, wav []byte) error
}

// Config for the registry's sessions.
type Config struct {
	SampleRate       int
	ReadyTimeout     time.Duration
	WatchdogInterval time.Duration
}

type connState struct {
	conn      ClientConn
	meetingID string // subscribed meeting, empty if none
	sess      *session.Session
}

// Registry routes inbound audio and outbound events, and owns the lifecycle
// of every StreamSession and subscription.
type Registry struct {
	cfg        Config
	provider   recognition.Provider
	translator translate.Translator
	engine     *broadcast.Engine
	prefs      *PreferenceStore
	recordings RecordingStore
	logger     *log.Logger

	mu       sync.Mutex
	conns    map[string]*connState
	meetings map[string]map[string]ClientConn // meetingID -> connID -> conn
}

func New(provider recognition.Provider, translator translate.Translator, engine *broadcast.Engine, recordings RecordingStore, logger *log.Logger, cfg Config) *Registry {
	return &Registry{
		cfg:        cfg,
		provider:   provider,
		translator: translator,
		engine:     engine,
		prefs:      NewPreferenceStore(),
		recordings: recordings,
		logger:     logger,
		conns:      make(map[string]*connState),
		meetings:   make(map[string]map[string]ClientConn),
	}
}

// Preferences exposes the store for transcript tooling.
func (r *Registry) Preferences() *PreferenceStore { return r.prefs }

// Connect registers a new client connection.
func (r *Registry) Connect(conn ClientConn) error {
	if conn.ID() == "" {
		return ErrUnknownConnection
	}
	r.mu.Lock()
	r.conns[conn.ID()] = &connState{conn: conn}
	total := len(r.conns)
	r.mu.Unlock()
	r.logger.Info("client connected",
		"conn", conn.ID(), "participant", conn.ParticipantID(), "total", total)
	return nil
}

// Disconnect removes the connection from every structure it could appear in:
// the subscriber set of its meeting, the session table, and the connection
// table. Stored language preferences survive for reconnects.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	r.removeSubscriberLocked(connID, state.meetingID)
	sess := state.sess
	r.mu.Unlock()

	if sess != nil {
		sess.Stop()
		r.archiveRecording(sess)
	}
	r.logger.Info("client disconnected", "conn", connID)
}

// Subscribe adds the connection to a meeting's subtitle stream and stores its
// language preference. A connection subscribes to at most one meeting; an
// existing subscription is replaced.
func (r *Registry) Subscribe(connID, meetingID, lang string) error {
	if meetingID == "" {
		return ErrMissingMeetingID
	}
	normalized := language.Normalize(lang)

	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	if state.meetingID != "" && state.meetingID != meetingID {
		r.removeSubscriberLocked(connID, state.meetingID)
	}
	state.meetingID = meetingID
	subs, ok := r.meetings[meetingID]
	if !ok {
		subs = make(map[string]ClientConn)
		r.meetings[meetingID] = subs
	}
	subs[connID] = state.conn
	conn := state.conn
	r.mu.Unlock()

	r.prefs.Set(meetingID, conn.ParticipantID(), normalized)
	r.send(conn, SubscribeAck{Type: eventSubscribeAck, MeetingID: meetingID, Language: normalized})
	r.logger.Info("subscribed", "conn", connID, "meeting", meetingID, "language", normalized)
	return nil
}

// Unsubscribe removes the connection from a meeting's subscriber set. The
// stored preference is kept.
func (r *Registry) Unsubscribe(connID, meetingID string) error {
	if meetingID == "" {
		return ErrMissingMeetingID
	}
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	if state.meetingID == meetingID {
		state.meetingID = ""
	}
	r.removeSubscriberLocked(connID, meetingID)
	conn := state.conn
	r.mu.Unlock()

	r.send(conn, UnsubscribeAck{Type: eventUnsubscribeAck, MeetingID: meetingID})
	return nil
}

// StartSession opens a streaming recognition session for the connection. At
// most one active session per connection.
func (r *Registry) StartSession(ctx context.Context, connID, meetingID, languageHint string) error {
	if meetingID == "" {
		return ErrMissingMeetingID
	}
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	if state.sess != nil && state.sess.State() != session.StateClosed {
		r.mu.Unlock()
		return ErrSessionActive
	}
	conn := state.conn
	r.mu.Unlock()

	obs := &sessionObserver{
		r:          r,
		conn:       conn,
		meetingID:  meetingID,
		sourceHint: language.Normalize(languageHint),
	}
	sess := session.New(r.provider, obs, r.logger, session.Config{
		MeetingID:        meetingID,
		SpeakerID:        conn.ParticipantID(),
		SpeakerName:      conn.DisplayName(),
		LanguageHint:     languageHint,
		SampleRate:       r.cfg.SampleRate,
		ReadyTimeout:     r.cfg.ReadyTimeout,
		WatchdogInterval: r.cfg.WatchdogInterval,
	})
	obs.sess = sess

	if err := sess.Start(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	// The connection may have vanished while the upstream was dialing.
	state, ok = r.conns[connID]
	if !ok {
		r.mu.Unlock()
		sess.Stop()
		return ErrUnknownConnection
	}
	state.sess = sess
	r.mu.Unlock()

	r.send(conn, SessionStarted{Type: eventSessionStarted, MeetingID: meetingID})
	r.logger.Info("session started",
		"conn", connID, "meeting", meetingID, "session", sess.ID)
	return nil
}

// StopSession closes the connection's active session.
func (r *Registry) StopSession(connID string) error {
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	sess := state.sess
	state.sess = nil
	r.mu.Unlock()

	if sess == nil {
		return ErrNoSession
	}
	sess.Stop()
	r.archiveRecording(sess)
	return nil
}

// UpdateLanguage changes the connection's preferred language: the stored
// subscription preference and, if a session is active, its speaker-feedback
// target.
func (r *Registry) UpdateLanguage(connID, lang string) error {
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	meetingID := state.meetingID
	sess := state.sess
	participantID := state.conn.ParticipantID()
	r.mu.Unlock()

	if meetingID != "" {
		r.prefs.Set(meetingID, participantID, lang)
	}
	if sess != nil {
		sess.UpdateLanguage(lang)
	}
	return nil
}

// IngestAudioChunk forwards one audio frame to the connection's session.
// Fire-and-forget: unknown connections and missing sessions drop silently so
// the transport goroutine is never blocked or failed by stray frames.
func (r *Registry) IngestAudioChunk(connID string, data []byte) {
	r.mu.Lock()
	state, ok := r.conns[connID]
	var sess *session.Session
	if ok {
		sess = state.sess
	}
	r.mu.Unlock()

	if sess != nil {
		sess.IngestAudio(data)
	}
}

// ActiveSessions counts sessions not yet closed. Zero after every connection
// is gone.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, state := range r.conns {
		if state.sess != nil && state.sess.State() != session.StateClosed {
			n++
		}
	}
	return n
}

// SubscriberCount reports the size of a meeting's subscriber set.
func (r *Registry) SubscriberCount(meetingID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.meetings[meetingID])
}

// removeSubscriberLocked removes connID from a meeting's subscriber set and
// cleans up the set when empty. Caller holds r.mu.
func (r *Registry) removeSubscriberLocked(connID, meetingID string) {
	if meetingID == "" {
		return
	}
	subs, ok := r.meetings[meetingID]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(r.meetings, meetingID)
	}
}

func (r *Registry) send(conn ClientConn, v any) {
	if err := conn.Send(v); err != nil {
		r.logger.Warn("send failed", "conn", conn.ID(), "error", err)
	}
}

func (r *Registry) archiveRecording(sess *session.Session) {
	if r.recordings == nil {
		return
	}
	wav := sess.CapturedWAV()
	if len(wav) == 0 {
		return
	}
	meetingID := sess.MeetingID()
	sessionID := sess.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.recordings.SaveRecording(ctx, meetingID, sessionID, wav); err != nil {
			r.logger.Warn("recording archive failed",
				"meeting", meetingID, "session", sessionID, "error", err)
		}
	}()
}

// broadcastUtterance snapshots the meeting's subscribers and preferences and
// hands the utterance to the broadcast engine.
func (r *Registry) broadcastUtterance(utt broadcast.Utterance) {
	r.mu.Lock()
	subs := r.meetings[utt.MeetingID]
	recipients := make([]broadcast.Recipient, 0, len(subs))
	for _, conn := range subs {
		recipients = append(recipients, &recipientAdapter{r: r, conn: conn})
	}
	r.mu.Unlock()

	prefs := r.prefs.Snapshot(utt.MeetingID)
	r.engine.Broadcast(context.Background(), utt, recipients, prefs)
}

// recipientAdapter exposes a ClientConn to the broadcast engine, keyed by
// participant id so preferences survive reconnects.
type recipientAdapter struct {
	r    *Registry
	conn ClientConn
}

func (a *recipientAdapter) ID() string { return a.conn.ParticipantID() }

func (a *recipientAdapter) DeliverSubtitle(d broadcast.Delivery) {
	a.r.send(a.conn, SubtitleUpdate{
		Type:           eventSubtitleUpdate,
		MeetingID:      d.MeetingID,
		SpeakerID:      d.SpeakerID,
		SpeakerName:    d.SpeakerName,
		OriginalText:   d.OriginalText,
		TranslatedText: d.TranslatedText,
		SourceLanguage: d.SourceLanguage,
		TargetLanguage: d.TargetLanguage,
		Timestamp:      d.Timestamp,
	})
}

func (a *recipientAdapter) NotifyTranslationFailed(target, preview string) {
	a.r.send(a.conn, TranslationFailed{
		Type:                eventTranslationFailed,
		TargetLanguage:      target,
		OriginalTextPreview: preview,
	})
}

// sessionObserver routes one session's events: partials go to the speaker
// only, accepted finals fan out to the meeting.
type sessionObserver struct {
	r          *Registry
	conn       ClientConn
	meetingID  string
	sourceHint string
	sess       *session.Session
}

func (o *sessionObserver) OnPartial(text string) {
	o.r.send(o.conn, PartialTranscript{
		Type:     eventPartialTranscript,
		Text:     text,
		Language: o.sourceHint,
	})
}

func (o *sessionObserver) OnFinal(text, detectedLanguage string) {
	if !quality.Accept(text) {
		o.r.logger.Debug("final rejected by quality filter",
			"meeting", o.meetingID, "length", len(text))
		return
	}
	source := language.Normalize(detectedLanguage)
	utt := broadcast.Utterance{
		MeetingID:      o.meetingID,
		SpeakerID:      o.conn.ParticipantID(),
		SpeakerName:    o.conn.DisplayName(),
		Text:           text,
		SourceLanguage: source,
		Timestamp:      time.Now().UnixMilli(),
	}
	go o.r.broadcastUtterance(utt)
	o.sendSpeakerFeedback(text, source)
}

// sendSpeakerFeedback echoes the finalized utterance back to the speaker,
// translated into their own target language when it differs from the source.
// When the languages match, the original text is returned unchanged and no
// translation call is made.
func (o *sessionObserver) sendSpeakerFeedback(text, source string) {
	target := o.sess.TargetLanguage()
	translated := text
	if target != source {
		ctx, cancel := context.WithTimeout(context.Background(), translate.DefaultTimeout)
		defer cancel()
		out, err := o.r.translator.Translate(ctx, text, source, target)
		if err != nil {
			o.r.logger.Warn("speaker feedback translation failed",
				"meeting", o.meetingID, "error", err)
			translated = ""
		} else {
			translated = out
		}
	}
	o.r.send(o.conn, FinalTranscript{
		Type:           eventFinalTranscript,
		Text:           text,
		TranslatedText: translated,
		SourceLanguage: source,
		TargetLanguage: target,
		SpeakerID:      o.conn.ParticipantID(),
		SpeakerName:    o.conn.DisplayName(),
	})
}

func (o *sessionObserver) OnError(err error) {
	o.r.send(o.conn, ErrorEvent{Type: eventError, Message: err.Error()})
}

func (o *sessionObserver) OnClosed() {
	o.r.send(o.conn, SessionStopped{Type: eventSessionStopped})
}
