// Package gateway terminates client websocket connections and translates
// between wire frames and registry operations. The core never imports this
// package.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Musab74/OnAir-backend/internal/auth"
	"github.com/Musab74/OnAir-backend/internal/registry"
)

// inboundMessage is the JSON envelope for client control frames. Audio
// arrives as binary frames and never passes through JSON.
type inboundMessage struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId,omitempty"`
	Language  string `json:"language,omitempty"`
}

type Gateway struct {
	registry *registry.Registry
	verifier *auth.Verifier
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func New(reg *registry.Registry, verifier *auth.Verifier, allowedOrigins []string, logger *log.Logger) *Gateway {
	return &Gateway{
		registry: reg,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins, logger),
		},
	}
}

// originChecker allows all origins when none are configured (development
// mode), matching exact origins otherwise.
func originChecker(allowed []string, logger *log.Logger) func(*http.Request) bool {
	if len(allowed) == 0 {
		logger.Warn("no allowed origins configured, accepting all (development mode)")
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if strings.TrimSpace(a) == origin {
				return true
			}
		}
		logger.Warn("rejected websocket origin", "origin", origin)
		return false
	}
}

// HandleWS authenticates and upgrades one client connection, then pumps
// frames until the socket closes.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractBearer(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	identity, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Warn("rejected connection", "error", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:       uuid.NewString(),
		identity: *identity,
		conn:     conn,
	}
	if err := g.registry.Connect(c); err != nil {
		conn.Close()
		return
	}

	go g.readLoop(c)
}

func (g *Gateway) readLoop(c *client) {
	defer func() {
		g.registry.Disconnect(c.id)
		c.conn.Close()
	}()

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("websocket read error", "conn", c.id, "error", err)
			}
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			g.registry.IngestAudioChunk(c.id, data)
		case websocket.TextMessage:
			g.handleControl(c, data)
		}
	}
}

func (g *Gateway) handleControl(c *client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.sendError(c, "malformed message")
		return
	}

	var err error
	switch msg.Type {
	case "subscribeSubtitles":
		err = g.registry.Subscribe(c.id, msg.MeetingID, msg.Language)
	case "unsubscribeSubtitles":
		err = g.registry.Unsubscribe(c.id, msg.MeetingID)
	case "startSession":
		err = g.registry.StartSession(context.Background(), c.id, msg.MeetingID, msg.Language)
	case "stopSession":
		err = g.registry.StopSession(c.id)
	case "updateLanguage":
		err = g.registry.UpdateLanguage(c.id, msg.Language)
	default:
		g.sendError(c, "unknown message type: "+msg.Type)
		return
	}

	if err != nil {
		g.logger.Warn("control message failed",
			"conn", c.id, "type", msg.Type, "error", err)
		g.sendError(c, err.Error())
	}
}

func (g *Gateway) sendError(c *client, message string) {
	_ = c.Send(registry.ErrorEvent{Type: "error", Message: message})
}
