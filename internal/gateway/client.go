package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Musab74/OnAir-backend/internal/auth"
)

// client adapts one websocket connection to registry.ClientConn. Writes are
// serialized; gorilla allows only one concurrent writer.
type client struct {
	id       string
	identity auth.Identity

	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) ID() string            { return c.id }
func (c *client) ParticipantID() string { return c.identity.ParticipantID }
func (c *client) DisplayName() string   { return c.identity.DisplayName }

func (c *client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}
