package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eduzayn/educhat/domains/realtime"
	"github.com/eduzayn/educhat/infrastructure/valkey"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const fanoutChannel = "ws_broadcast"

// envelope is what goes over the wire, both to browsers and between instances.
type envelope struct {
	realtime.Event
	SenderID string    `json:"sender_id,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// client is one dashboard socket. Only its writer goroutine touches the
// connection for writing; the hub and the reader hand it frames instead.
type client struct {
	conn *websocket.Conn
	send chan []byte
	pong chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, 64),
		pong: make(chan struct{}, 1),
	}
}

// writePump drains send until the hub closes it or quit fires.
func (c *client) writePump(quit <-chan struct{}) {
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.Debugf("[WS] Write error: %v", err)
				_ = c.conn.Close()
				return
			}
		case <-c.pong:
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-quit:
			return
		}
	}
}

// Hub fans realtime events out to every connected dashboard socket. With a
// valkey client configured, events are also relayed to the other instances.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	remote     chan envelope
	done       chan struct{}

	vk      *valkey.Client
	localID string
}

func NewHub(vk *valkey.Client, serverID string) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 256),
		remote:     make(chan envelope, 256),
		done:       make(chan struct{}),
		vk:         vk,
		localID:    serverID,
	}
}

// Publish implements realtime.Publisher. Events are dropped when the hub is saturated.
func (h *Hub) Publish(_ context.Context, ev realtime.Event) {
	msg := envelope{Event: ev, SenderID: h.localID, SentAt: time.Now().UTC()}
	select {
	case h.broadcast <- msg:
	default:
		logrus.Warnf("[WS] Broadcast queue full, dropping %s event for conversation %d", ev.Type, ev.ConversationID)
	}
}

// Run owns the client map. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.vk != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			logrus.Debugf("[WS] Connection registered (%d open)", len(h.clients))
		case c := <-h.unregister:
			h.drop(c)
			logrus.Debugf("[WS] Connection unregistered (%d open)", len(h.clients))
		case msg := <-h.broadcast:
			h.writeLocal(msg)
			h.publishRemote(ctx, msg)
		case msg := <-h.remote:
			h.writeLocal(msg)
		}
	}
}

func (h *Hub) writeLocal(msg envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logrus.Warn("[WS] Client too slow, closing connection")
			h.drop(c)
		}
	}
}

func (h *Hub) publishRemote(ctx context.Context, msg envelope) {
	if h.vk == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.vk.Publish(ctx, fanoutChannel, data); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func (h *Hub) subscribe(ctx context.Context) {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	err := h.vk.Subscribe(ctx, fanoutChannel, func(payload []byte) {
		if msg, ok := h.decodeRemote(payload); ok {
			select {
			case h.remote <- msg:
			case <-h.done:
			case <-ctx.Done():
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
	}
}

// decodeRemote parses a fan-out payload and rejects our own publications.
func (h *Hub) decodeRemote(payload []byte) (envelope, bool) {
	var msg envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		return envelope{}, false
	}
	if msg.SenderID == h.localID {
		return envelope{}, false
	}
	return msg, true
}

// drop forgets c and closes its queue, which makes its writer send a close frame.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// join and leave give up once Run has returned.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// serve runs one connection until the peer goes away or the hub stops.
func (h *Hub) serve(conn *websocket.Conn) {
	c := newClient(conn)
	if !h.join(c) {
		_ = conn.Close()
		return
	}

	quit := make(chan struct{})
	written := make(chan struct{})
	go func() {
		c.writePump(quit)
		close(written)
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Debugf("[WS] read error: %v", err)
			}
			break
		}
		if messageType == websocket.TextMessage && string(message) == "ping" {
			select {
			case c.pong <- struct{}{}:
			default:
			}
		}
	}

	h.leave(c)
	close(quit)
	<-written
	_ = conn.Close()
}

// RegisterRoutes mounts GET /ws. Clients only receive; a text "ping" is answered with "pong".
func (h *Hub) RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(h.serve))
}
