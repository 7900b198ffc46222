package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stakeout/pkg/session"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsMaxMessage = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The map surface is served from the WebView shell or a tablet browser on
	// the local network; origins are not known in advance.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is a map-surface event sent over the socket.
type wsMessage struct {
	Type string   `json:"type"`
	Zoom *float64 `json:"zoom,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
}

type wsReply struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// HandleWS upgrades to a WebSocket that streams render frames for the session
// and accepts zoom and position events from the map surface.
func (h *StakeoutHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Get(r.PathValue("sid"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "session_id", s.ID, "error", err)
		return
	}

	frames, unsubscribe := s.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{conn: conn, session: s, handler: h, replies: make(chan wsReply, 8)}

	h.logger.Debug("WebSocket connected", "session_id", s.ID)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, frames)
	}()

	c.readLoop(ctx)
	cancel()
	unsubscribe()
	wg.Wait()
	_ = conn.Close()
	h.logger.Debug("WebSocket disconnected", "session_id", s.ID)
}

type wsClient struct {
	conn    *websocket.Conn
	session *session.Session
	handler *StakeoutHandler
	replies chan wsReply
}

func (c *wsClient) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.handler.logger.Debug("WebSocket read error", "session_id", c.session.ID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(wsReply{Type: "error", Error: "invalid message"})
			continue
		}
		c.handle(ctx, &msg)
	}
}

func (c *wsClient) handle(ctx context.Context, msg *wsMessage) {
	switch msg.Type {
	case "zoom":
		if msg.Zoom == nil {
			c.reply(wsReply{Type: "error", Error: "zoom required"})
			return
		}
		if err := c.session.ZoomChanged(ctx, *msg.Zoom); err != nil {
			c.reply(wsReply{Type: "error", Error: err.Error()})
		}
	case "position":
		if msg.Lng == nil || msg.Lat == nil {
			c.reply(wsReply{Type: "error", Error: "lng and lat required"})
			return
		}
		// Rejections are already logged by the director; the socket stays quiet.
		_, _ = c.session.UpdatePosition(*msg.Lng, *msg.Lat)
	case "ping":
		c.reply(wsReply{Type: "pong"})
	default:
		c.reply(wsReply{Type: "error", Error: "unknown message type " + msg.Type})
	}
}

func (c *wsClient) reply(m wsReply) {
	select {
	case c.replies <- m:
	default:
	}
}

func (c *wsClient) writeLoop(ctx context.Context, frames <-chan session.Frame) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		var payload any
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case f, ok := <-frames:
			if !ok {
				// session expired
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(wsWriteWait))
				return
			}
			payload = f
		case m := <-c.replies:
			payload = m
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteJSON(payload); err != nil {
			return
		}
	}
}
