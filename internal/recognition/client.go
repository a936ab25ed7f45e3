package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// WSProvider dials the recognizer's websocket endpoint.
type WSProvider struct {
	URL    string
	Logger *log.Logger
}

// startMessage is sent once after the socket opens, before any audio.
type startMessage struct {
	Type       string `json:"type"`
	Language   string `json:"language,omitempty"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
}

// wireMessage is the provider's JSON envelope for text frames.
type wireMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (p *WSProvider) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}

	start := startMessage{
		Type:       "start",
		Language:   cfg.Language,
		Encoding:   "pcm_s16le",
		SampleRate: cfg.SampleRate,
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send start message: %w", err)
	}

	s := &wsStream{
		conn:   conn,
		events: make(chan Event, 32),
		logger: p.Logger,
	}
	go s.readLoop()
	return s, nil
}

type wsStream struct {
	conn   *websocket.Conn
	events chan Event
	logger *log.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *wsStream) SendAudio(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *wsStream) Events() <-chan Event {
	return s.events
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// readLoop decodes upstream frames into Events until the socket dies. The
// terminal event is always KindClosed, after which the channel is closed.
func (s *wsStream) readLoop() {
	defer close(s.events)
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			code := websocket.CloseNoStatusReceived
			reason := err.Error()
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
				reason = ce.Text
			}
			s.events <- Event{Kind: KindClosed, Code: code, Reason: reason}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if s.logger != nil {
				s.logger.Warn("undecodable recognizer frame", "error", err)
			}
			continue
		}

		switch msg.Type {
		case "ready":
			s.events <- Event{Kind: KindReady}
		case "partial":
			s.events <- Event{Kind: KindPartial, Text: msg.Text}
		case "final":
			s.events <- Event{
				Kind:             KindFinal,
				Text:             msg.Text,
				DetectedLanguage: msg.Language,
			}
		case "error":
			s.events <- Event{
				Kind: KindError,
				Err:  fmt.Errorf("recognizer: %s", msg.Message),
			}
		default:
			if s.logger != nil {
				s.logger.Warn("unknown recognizer message type", "type", msg.Type)
			}
		}
	}
}
