package notification

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"promoHub/business/history"
	"promoHub/pkg/logger"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 32
	broadcastQueue = 256
)

type Message struct {
	Type string           `json:"type"`
	Data history.WinEvent `json:"data"`
}

// Client is one websocket subscriber. PoolID zero subscribes to every pool.
type Client struct {
	PoolID uint
	conn   *websocket.Conn
	send   chan Message
}

// Hub fans committed wins out to websocket subscribers.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan history.WinEvent
	done       chan struct{}

	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan history.WinEvent, broadcastQueue),
		done:       make(chan struct{}),
	}
}

var _ history.Broadcaster = (*Hub)(nil)

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case ev := <-h.broadcast:
			msg := Message{Type: "WIN", Data: ev}
			for c := range h.clients {
				if c.PoolID != 0 && c.PoolID != ev.PoolID {
					continue
				}
				select {
				case c.send <- msg:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish queues ev for delivery. It never blocks; events are dropped when
// the queue is full.
func (h *Hub) Publish(ev history.WinEvent) {
	select {
	case h.broadcast <- ev:
	default:
		n := h.dropped.Add(1)
		logger.Warn("Winner feed queue full, event dropped", "pool_id", ev.PoolID, "attempt_id", ev.AttemptID, "dropped_total", n)
	}
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Serve registers conn and pumps events to it until the peer goes away.
func (h *Hub) Serve(conn *websocket.Conn, poolID uint) {
	c := &Client{PoolID: poolID, conn: conn, send: make(chan Message, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.readPump(h)
	c.writePump()
}

// readPump discards inbound frames and handles pongs.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("Websocket closed", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
