package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"haven/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// RoomHub manages WebSocket connections for channel rooms. It is a
// process-local cache of membership truth: subscriptions are rebuilt from
// the store on connect and kept in sync by reacting to membership events.
type RoomHub struct {
	mu sync.RWMutex

	// Map: channelID -> set of userIDs subscribed to the room
	rooms map[uint]map[uint]struct{}

	// Map: userID -> set of channelIDs the user is subscribed to
	userRooms map[uint]map[uint]struct{}

	// Map: userID -> set of active Clients (multi-device support)
	userConns map[uint]map[*Client]bool

	wsLog *observability.WSLogger
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// NewRoomHub creates a new RoomHub instance
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms:     make(map[uint]map[uint]struct{}),
		userRooms: make(map[uint]map[uint]struct{}),
		userConns: make(map[uint]map[*Client]bool),
		wsLog:     observability.NewWSLogger("room hub"),
	}
}

// Register registers a user's websocket connection. Returns a Client or an
// error when the per-user connection limit is exceeded.
func (h *RoomHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]bool)
	}

	if len(h.userConns[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = true
	h.mu.Unlock()

	h.wsLog.LogConnect(context.Background(), userID)
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes a websocket connection. Room subscriptions are
// only dropped once the user's last connection is gone.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()

	clients, ok := h.userConns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	observability.WebSocketConnectionsTotal.Dec()

	if len(clients) > 0 {
		h.mu.Unlock()
		h.wsLog.LogDisconnect(context.Background(), client.UserID, "client closed")
		return
	}
	delete(h.userConns, client.UserID)

	if rooms, ok := h.userRooms[client.UserID]; ok {
		for channelID := range rooms {
			if users, ok := h.rooms[channelID]; ok {
				delete(users, client.UserID)
				observability.WebSocketRoomConnections.WithLabelValues(roomLabel(channelID)).Dec()
				if len(users) == 0 {
					delete(h.rooms, channelID)
				}
			}
		}
		delete(h.userRooms, client.UserID)
	}

	h.mu.Unlock()

	h.wsLog.LogDisconnect(context.Background(), client.UserID, "last client closed")
}

// IsUserOnline returns true when the user has at least one active client.
func (h *RoomHub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userConns[userID]
	return ok && len(clients) > 0
}

// JoinRoom subscribes a connected user to a channel's room. A no-op when
// the user has no local clients; they will reconcile on reconnect.
func (h *RoomHub) JoinRoom(userID, channelID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.userConns[userID]; !ok {
		return
	}

	if h.rooms[channelID] == nil {
		h.rooms[channelID] = make(map[uint]struct{})
	}
	if _, already := h.rooms[channelID][userID]; already {
		return
	}
	h.rooms[channelID][userID] = struct{}{}
	observability.WebSocketRoomConnections.WithLabelValues(roomLabel(channelID)).Inc()

	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[uint]struct{})
	}
	h.userRooms[userID][channelID] = struct{}{}
}

// LeaveRoom unsubscribes a user from a channel's room.
func (h *RoomHub) LeaveRoom(userID, channelID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if users, ok := h.rooms[channelID]; ok {
		if _, present := users[userID]; present {
			delete(users, userID)
			observability.WebSocketRoomConnections.WithLabelValues(roomLabel(channelID)).Dec()
		}
		if len(users) == 0 {
			delete(h.rooms, channelID)
		}
	}

	if rooms, ok := h.userRooms[userID]; ok {
		delete(rooms, channelID)
	}
}

// EvictRoom removes every subscriber from a channel's room. Used when the
// channel itself is deleted.
func (h *RoomHub) EvictRoom(channelID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users, ok := h.rooms[channelID]
	if !ok {
		return
	}
	for userID := range users {
		observability.WebSocketRoomConnections.WithLabelValues(roomLabel(channelID)).Dec()
		if rooms, ok := h.userRooms[userID]; ok {
			delete(rooms, channelID)
		}
	}
	delete(h.rooms, channelID)
}

// RoomUserIDs returns the userIDs currently subscribed to a room.
func (h *RoomHub) RoomUserIDs(channelID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users, ok := h.rooms[channelID]
	if !ok {
		return []uint{}
	}
	result := make([]uint, 0, len(users))
	for userID := range users {
		result = append(result, userID)
	}
	return result
}

// BroadcastToRoom sends an event to every client subscribed to the room.
func (h *RoomHub) BroadcastToRoom(channelID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users, ok := h.rooms[channelID]
	if !ok {
		return
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal event: %v", err)
		return
	}

	for userID := range users {
		if clients, ok := h.userConns[userID]; ok {
			for client := range clients {
				client.TrySend(eventJSON)
			}
		}
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
}

// SendToUser sends an event to all of one user's clients. A no-op for
// offline users.
func (h *RoomHub) SendToUser(userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userConns[userID]
	if !ok {
		return
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal event: %v", err)
		return
	}
	for client := range clients {
		client.TrySend(eventJSON)
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
}

// HandleRoomEvent applies a room event to local subscription state and fans
// it out. Ordering matters: joins subscribe before the broadcast so the new
// member sees their own join; removals broadcast before unsubscribing so
// the departing member sees the event.
func (h *RoomHub) HandleRoomEvent(event Event) {
	switch event.Type {
	case EventMemberJoined:
		h.JoinRoom(event.UserID, event.ChannelID)
		h.BroadcastToRoom(event.ChannelID, event)
	case EventMemberLeft, EventMemberKicked:
		h.BroadcastToRoom(event.ChannelID, event)
		h.LeaveRoom(event.UserID, event.ChannelID)
	case EventChannelDeleted:
		h.BroadcastToRoom(event.ChannelID, event)
		h.EvictRoom(event.ChannelID)
	default:
		h.BroadcastToRoom(event.ChannelID, event)
	}
}

// StartWiring connects the RoomHub to Redis pub/sub so room state stays
// consistent across processes.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartRoomSubscriber(ctx, func(channel, payload string) {
		kind, id, err := ParseSubscriberChannel(channel)
		if err != nil {
			log.Printf("RoomHub: %v", err)
			return
		}

		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("RoomHub: Failed to parse event from channel %s: %v", channel, err)
			return
		}

		switch kind {
		case "room":
			event.ChannelID = id
			h.HandleRoomEvent(event)
		case "user":
			h.SendToUser(id, event)
		}
	})
}

// Shutdown gracefully closes all websocket connections
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userConns {
		for client := range clients {
			if err := client.Conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"server_shutdown","payload":{"message":"Server is shutting down"}}`)); err != nil {
				log.Printf("failed to write shutdown message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}

	h.rooms = make(map[uint]map[uint]struct{})
	h.userRooms = make(map[uint]map[uint]struct{})
	h.userConns = make(map[uint]map[*Client]bool)

	return nil
}

func roomLabel(channelID uint) string {
	return strconv.FormatUint(uint64(channelID), 10)
}
