package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"infrasim/internal/run"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// client is one WebSocket connection attached to the broadcaster. It
// implements run.Subscriber; Deliver queues into the send channel and
// the write pump serializes onto the wire.
type client struct {
	conn     *websocket.Conn
	hub      *run.Broadcaster
	registry run.Registry
	logger   *slog.Logger
	send     chan run.Event
}

func newClient(conn *websocket.Conn, hub *run.Broadcaster, registry run.Registry, logger *slog.Logger) *client {
	return &client{
		conn:     conn,
		hub:      hub,
		registry: registry,
		logger:   logger,
		send:     make(chan run.Event, sendBuffer),
	}
}

// Deliver implements run.Subscriber. Non-blocking; a slow client drops
// events rather than stalling the hub.
func (c *client) Deliver(ev run.Event) error {
	select {
	case c.send <- ev:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

// controlMessage is what clients send to manage their subscriptions.
type controlMessage struct {
	Action   string `json:"action"`
	RunID    string `json:"runId,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// readPump consumes control messages until the connection drops, then
// detaches the client from the hub.
func (c *client) readPump() {
	defer func() {
		c.hub.Drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg controlMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "err", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg controlMessage) {
	switch msg.Action {
	case "subscribe-run":
		if msg.RunID != "" {
			c.hub.SubscribeRun(msg.RunID, c)
		}
	case "unsubscribe-run":
		if msg.RunID != "" {
			c.hub.UnsubscribeRun(msg.RunID, c)
		}
	case "join-tenant":
		if msg.TenantID != "" {
			c.hub.JoinTenant(msg.TenantID, c)
		}
	case "leave-tenant":
		if msg.TenantID != "" {
			c.hub.LeaveTenant(msg.TenantID, c)
		}
	case "request-cancel":
		if msg.RunID != "" {
			if err := c.registry.RequestCancel(msg.RunID); err != nil {
				c.logger.Warn("cancel via websocket failed", "run_id", msg.RunID, "err", err)
			}
		}
	default:
		c.logger.Debug("unknown websocket action", "action", msg.Action)
	}
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.logger.Warn("event marshal failed", "kind", ev.Kind, "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
