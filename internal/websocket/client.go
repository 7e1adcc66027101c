package websocket

import (
	"context"
	"errors"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one connected UI. It only receives notifications.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte // marshaled Message frames
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Run serves the connection until the peer goes away, ctx ends or the hub
// drops the client. The client is registered for exactly that long.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead answers pings and close frames for us; a data frame from the
	// UI closes the connection with StatusPolicyViolation.
	ctx = c.conn.CloseRead(ctx)

	err := c.deliver(ctx)
	switch {
	case err == nil:
		c.conn.Close(ws.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled), ws.CloseStatus(err) != -1:
	default:
		c.hub.logger.Debug("websocket client", "error", err)
		c.conn.Close(ws.StatusInternalError, "write failed")
	}
}

// deliver writes queued frames and keeps the connection alive with pings.
// It returns nil once the hub closes the send channel.
func (c *Client) deliver(ctx context.Context) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := c.write(ctx, frame); err != nil {
				return err
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, frame)
}
