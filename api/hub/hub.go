package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is the envelope pushed to subscribed clients.
type Event struct {
	Type    string      `json:"type"` // vm.created, vm.status_changed, vm.deleted, node.status, node.poc, node.reward, reward.updated, initial_data, error
	NodeID  string      `json:"nodeId,omitempty"`
	UserID  string      `json:"userId,omitempty"`
	Payload interface{} `json:"payload"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	userID string // set after authenticate
	rooms  map[string]bool
}

// Hub fans fleet events out to websocket clients. Clients join rooms keyed
// node:{id} or user:{id}; the latest payload per node is cached so a new
// subscriber catches up immediately without a replay of history.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	rooms   map[string]map[*client]bool
	latest  map[string][]byte // nodeID → last published payload

	upgrader  websocket.Upgrader
	jwtSecret []byte

	// InitialData, when set, is called after a successful authenticate to
	// build the first snapshot pushed to the client (the user's fleet).
	InitialData func(ctx context.Context, userID string) (interface{}, error)
}

func New(allowedOrigins []string, jwtSecret []byte) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		clients:   make(map[*client]bool),
		rooms:     make(map[string]map[*client]bool),
		latest:    make(map[string][]byte),
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // non-browser clients (CLI, curl)
				}
				if allowed[origin] {
					return true
				}
				// Always allow localhost.
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				host := u.Hostname()
				return host == "localhost" || host == "127.0.0.1" || host == "::1"
			},
		},
	}
}

func nodeRoom(nodeID string) string { return "node:" + nodeID }
func userRoom(userID string) string { return "user:" + userID }

// Publish caches the payload as latest-for-node and delivers it to the
// members of the node's room at the time of the call. A slow client whose
// queue is full is dropped rather than blocking the publish.
func (h *Hub) Publish(nodeID string, evt Event) {
	evt.NodeID = nodeID
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("hub: marshal error: %v", err)
		return
	}

	h.mu.Lock()
	h.latest[nodeID] = data
	h.deliverLocked(nodeRoom(nodeID), data)
	h.mu.Unlock()
}

// PublishToUser delivers to the user's room without caching; used for
// ephemeral events such as reward updates.
func (h *Hub) PublishToUser(userID string, evt Event) {
	evt.UserID = userID
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("hub: marshal error: %v", err)
		return
	}

	h.mu.Lock()
	h.deliverLocked(userRoom(userID), data)
	h.mu.Unlock()
}

// deliverLocked enqueues to every member of the room. The caller holds h.mu,
// the same lock under which send channels are closed, so an enqueue can never
// race a close. Enqueues are non-blocking; a client whose queue is full is
// dropped rather than stalling the publisher.
func (h *Hub) deliverLocked(room string, data []byte) {
	var dead []*client
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		log.Printf("hub: dropping slow client %s", c.id)
		h.removeClientLocked(c)
	}
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

// removeClient detaches the client from every room it joined; no lingering
// references remain after disconnect.
func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	h.removeClientLocked(c)
	h.mu.Unlock()
}

// removeClientLocked closes the send channel while still holding h.mu so no
// concurrent enqueue can hit a closed channel.
func (h *Hub) removeClientLocked(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		if set := h.rooms[room]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
}

// subscribe joins the node's room and, when a cached latest payload exists,
// delivers it to this client only.
func (h *Hub) subscribe(c *client, nodeID string) {
	room := nodeRoom(nodeID)

	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
	if cached := h.latest[nodeID]; cached != nil && h.clients[c] {
		select {
		case c.send <- cached:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(c *client, nodeID string) {
	room := nodeRoom(nodeID)
	h.mu.Lock()
	if set := h.rooms[room]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
	h.mu.Unlock()
}

func (h *Hub) joinUserRoom(c *client, userID string) {
	room := userRoom(userID)
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
	h.mu.Unlock()
}

// Forget drops the cached latest payload for a node; called when the node
// is deleted so the cache stays finite.
func (h *Hub) Forget(nodeID string) {
	h.mu.Lock()
	delete(h.latest, nodeID)
	h.mu.Unlock()
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}

	c := &client{
		id:    uuid.New().String(),
		conn:  conn,
		send:  make(chan []byte, 64),
		rooms: make(map[string]bool),
	}
	h.addClient(c)

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// clientMessage is the control protocol spoken by connected clients.
type clientMessage struct {
	Action string `json:"action"` // authenticate, subscribe, unsubscribe
	Token  string `json:"token,omitempty"`
	NodeID string `json:"nodeId,omitempty"`
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.removeClient(c)
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "malformed message")
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) handleMessage(c *client, msg clientMessage) {
	switch msg.Action {
	case "authenticate":
		userID, err := h.verifyToken(msg.Token)
		if err != nil {
			h.sendError(c, "invalid token")
			return
		}
		c.userID = userID
		h.joinUserRoom(c, userID)
		h.sendEvent(c, Event{Type: "authenticated", UserID: userID})

		if h.InitialData != nil {
			payload, err := h.InitialData(context.Background(), userID)
			if err != nil {
				log.Printf("hub: initial data for %s: %v", userID, err)
				return
			}
			h.sendEvent(c, Event{Type: "initial_data", UserID: userID, Payload: payload})
		}
	case "subscribe":
		if c.userID == "" {
			h.sendError(c, "not authenticated")
			return
		}
		if msg.NodeID == "" {
			h.sendError(c, "no node id")
			return
		}
		h.subscribe(c, msg.NodeID)
	case "unsubscribe":
		if msg.NodeID == "" {
			h.sendError(c, "no node id")
			return
		}
		h.unsubscribe(c, msg.NodeID)
	default:
		h.sendError(c, "unknown action")
	}
}

func (h *Hub) verifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// sendEvent enqueues to a single client under h.mu, skipping clients that
// have already been removed.
func (h *Hub) sendEvent(c *client, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.mu.Lock()
	if h.clients[c] {
		select {
		case c.send <- data:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *Hub) sendError(c *client, msg string) {
	h.sendEvent(c, Event{Type: "error", Payload: map[string]string{"message": msg}})
}
