// Package websocket implements the realtime relay: a single hub goroutine
// that owns the presence registry, tracks open connections, relays
// point-to-point messages and broadcasts presence changes.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"socialize/internal/metrics"

	"github.com/gorilla/websocket"
)

var ErrHubStopped = errors.New("realtime hub stopped")

type inbound struct {
	client   *Client
	envelope Envelope
}

type Hub struct {
	registry *Registry
	logger   *slog.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	// announces orders identity announcements. Owned by the Run goroutine.
	announces uint64
}

func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:   registry,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run dispatches every hub event until ctx is cancelled, then closes all
// client send buffers.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.drop(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.ConnectedClients.Inc()
		case client := <-h.unregister:
			h.disconnect(client)
		case ev := <-h.inbound:
			h.handle(ev)
		}
	}
}

// Register hands a new connection to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) dispatch(ev inbound) bool {
	select {
	case h.inbound <- ev:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	metrics.ConnectedClients.Dec()
	h.release(client)
}

// release removes the entry held by client and hands it to another open
// connection still identified as the same user, if there is one.
func (h *Hub) release(client *Client) {
	userID, ok := h.registry.Remove(client)
	if !ok {
		return
	}

	var heir *Client
	for c := range h.clients {
		if c == client || c.userID != userID {
			continue
		}
		if heir == nil || outranks(c, heir, userID) {
			heir = c
		}
	}
	if heir != nil {
		h.registry.Add(userID, heir)
		h.logger.Debug("presence restored", "user_id", userID, "connection_id", heir.ID)
	}
}

// outranks prefers a connection authenticated as userID, then the most
// recent announcement.
func outranks(a, b *Client, userID int64) bool {
	aAuth, bAuth := a.AuthUserID == userID, b.AuthUserID == userID
	if aAuth != bAuth {
		return aAuth
	}
	return a.announcedAt > b.announcedAt
}

func (h *Hub) disconnect(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.drop(client)
	h.broadcastPresence()
}

func (h *Hub) handle(ev inbound) {
	if _, ok := h.clients[ev.client]; !ok {
		return
	}

	switch ev.envelope.Type {
	case "":
		h.sendError(ev.client, "malformed frame")
	case TypeAnnounceIdentity:
		var p AnnounceIdentity
		if err := json.Unmarshal(ev.envelope.Payload, &p); err != nil || p.UserID <= 0 {
			h.sendError(ev.client, "invalid announce-identity payload")
			return
		}
		h.announce(ev.client, p.UserID)
	case TypeRelayMessage:
		var p RelayMessage
		if err := json.Unmarshal(ev.envelope.Payload, &p); err != nil || p.RecipientID <= 0 {
			h.sendError(ev.client, "invalid relay-message payload")
			return
		}
		h.relay(ev.client, p)
	default:
		h.sendError(ev.client, "unsupported event")
	}
}

func (h *Hub) announce(client *Client, userID int64) {
	if client.AuthUserID != 0 && client.AuthUserID != userID {
		h.sendError(client, "cannot announce another user's identity")
		return
	}

	if client.AuthUserID == 0 {
		if owner, ok := h.registry.Find(userID); ok && owner != client && owner.AuthUserID == userID {
			h.sendError(client, "identity is held by an authenticated connection")
			return
		}
	}

	if client.userID != 0 && client.userID != userID {
		h.release(client)
	}
	h.announces++
	client.userID = userID
	client.announcedAt = h.announces

	if previous := h.registry.Add(userID, client); previous != nil {
		h.logger.Debug("presence superseded", "user_id", userID, "previous", previous.ID, "current", client.ID)
	}
	h.broadcastPresence()
}

func (h *Hub) relay(client *Client, msg RelayMessage) {
	sender := client.AuthUserID
	if sender == 0 {
		sender = client.userID
	}
	if sender != 0 && msg.SenderID != sender {
		h.sendError(client, "sender does not match connection identity")
		return
	}

	recipient, ok := h.registry.Find(msg.RecipientID)
	if !ok {
		metrics.RelayDeliveries.WithLabelValues(metrics.RelayOffline).Inc()
		return
	}

	data, err := encode(TypeIncomingMessage, IncomingMessage{SenderID: msg.SenderID, Text: msg.Text})
	if err != nil {
		h.logger.Error("failed to encode relayed message", "error", err)
		return
	}
	if h.send(recipient, data) {
		metrics.RelayDeliveries.WithLabelValues(metrics.RelayDelivered).Inc()
	} else {
		metrics.RelayDeliveries.WithLabelValues(metrics.RelayDropped).Inc()
	}
}

func (h *Hub) broadcastPresence() {
	data, err := encode(TypePresenceSet, h.registry.Snapshot())
	if err != nil {
		h.logger.Error("failed to encode presence set", "error", err)
		return
	}
	for client := range h.clients {
		h.send(client, data)
	}
}

func (h *Hub) sendError(client *Client, message string) {
	data, err := encode(TypeError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	h.send(client, data)
}

// send never blocks the hub: a client whose buffer is full loses the frame.
func (h *Hub) send(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		return true
	default:
		h.logger.Warn("realtime send buffer full, dropping frame", "connection_id", client.ID)
		return false
	}
}

// NewUpgrader accepts same-origin requests, requests without an Origin
// header, and the listed origins.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin) {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}

// Serve upgrades the request and attaches the connection to the hub.
// authUserID is 0 for anonymous connections.
func (h *Hub) Serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, authUserID int64) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(h, conn, authUserID)
	if !h.Register(client) {
		conn.Close()
		return ErrHubStopped
	}

	go client.WritePump()
	go client.ReadPump()
	return nil
}
