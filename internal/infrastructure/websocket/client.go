package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nbcore/notebookcore/internal/coordinator"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client adapts one WebSocket connection to a single notebook's
// coordinator.Subscriber. One Client exists per open connection; it owns
// no subscription indexing because the Broadcaster it reads from is
// already scoped to one notebook.
type Client struct {
	conn   *websocket.Conn
	co     *coordinator.Coordinator
	sub    *coordinator.Subscriber
	userID string
	log    *logger.Logger
}

func NewClient(conn *websocket.Conn, co *coordinator.Coordinator, userID string, log *logger.Logger) *Client {
	return &Client{
		conn:   conn,
		co:     co,
		sub:    co.Subscribe(),
		userID: userID,
		log:    log,
	}
}

// Run drives both pumps and blocks until the connection closes. Callers
// run it in the goroutine that accepted the upgrade.
func (c *Client) Run() {
	done := make(chan struct{})
	go c.writePump(done)
	c.readPump()
	<-done
	c.co.Unsubscribe(c.sub)
}

// readPump parses inbound run_cell commands until the connection closes
// or a read error occurs.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket unexpected close", "user_id", c.userID, "error", err)
			}
			return
		}

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendResponse(NewErrorResponse("error", "invalid command format"))
			continue
		}
		c.handleCommand(&cmd)
	}
}

func (c *Client) handleCommand(cmd *WSCommand) {
	if cmd.Action != CmdRunCell {
		c.sendResponse(NewErrorResponse("error", "unknown command: "+cmd.Action))
		return
	}
	if cmd.CellID == "" {
		c.sendResponse(NewErrorResponse(CmdRunCell, "cell_id required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := c.co.RunCell(ctx, c.userID, cmd.CellID, false); err != nil {
		c.sendResponse(NewErrorResponse(CmdRunCell, err.Error()))
		return
	}
	c.sendResponse(NewSuccessResponse(CmdRunCell, "running"))
}

// writePump relays broadcast events and periodic pings to the
// connection until the subscriber channel closes (explicit unsubscribe
// or BackpressureDrop).
func (c *Client) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(done)
	}()

	for {
		select {
		case ev, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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

func (c *Client) sendResponse(resp *WSResponse) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(resp)
}
