// Package callws relays WebRTC signaling between the parties of a
// consultation call. Rooms are keyed by video room id.
package callws

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/saeid-a/ConsultBack/internal/metrics"
)

var (
	ErrRoomFull    = errors.New("room is full")
	ErrNotInRoom   = errors.New("connection has not joined this room")
	ErrUnknownPeer = errors.New("target connection is not in the room")
)

// Relay is the connection registry. Every client lives in clients from
// Connect until Disconnect; room membership is tracked separately.
type Relay struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	rooms    map[string]map[string]*Client
	maxPeers int
	metrics  metrics.Recorder
	log      zerolog.Logger
}

// NewRelay creates a relay. maxPeers caps room size; 0 means no cap.
func NewRelay(maxPeers int, recorder metrics.Recorder, log zerolog.Logger) *Relay {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Relay{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		maxPeers: maxPeers,
		metrics:  recorder,
		log:      log.With().Str("component", "relay").Logger(),
	}
}

func (r *Relay) Connect(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	count := len(r.clients)
	r.mu.Unlock()

	r.metrics.SetRelayConnections(count)
}

// Disconnect removes the client from its room, notifies the remaining peers
// and closes the client's send buffer.
func (r *Relay) Disconnect(client *Client) {
	r.mu.Lock()
	if _, ok := r.clients[client.ID]; !ok {
		r.mu.Unlock()
		return
	}
	r.leaveLocked(client, EventPeerLeft, "")
	delete(r.clients, client.ID)
	count := len(r.clients)
	r.mu.Unlock()

	client.close()
	r.metrics.SetRelayConnections(count)
}

// Join adds client to roomID under role and returns the members that were
// already there. Existing members receive peer-joined.
func (r *Relay) Join(client *Client, roomID string, role string) ([]Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client.room == roomID {
		return r.peersLocked(roomID, client.ID), nil
	}

	members := r.rooms[roomID]
	if r.maxPeers > 0 && len(members) >= r.maxPeers {
		return nil, ErrRoomFull
	}

	if client.room != "" {
		r.leaveLocked(client, EventPeerLeft, "")
	}

	if members == nil {
		members = make(map[string]*Client)
		r.rooms[roomID] = members
	}
	peers := r.peersLocked(roomID, client.ID)

	client.room = roomID
	client.roomRole = role
	members[client.ID] = client

	r.broadcastLocked(roomID, client.ID, Outbound{
		Type:         EventPeerJoined,
		RoomID:       roomID,
		ConnectionID: client.ID,
		Role:         role,
	})

	r.log.Debug().
		Str("room_id", roomID).
		Str("connection_id", client.ID).
		Str("role", role).
		Int("members", len(members)).
		Msg("peer joined")
	return peers, nil
}

// Forward sends an opaque signaling message from client to target, or to
// every other member when target is empty.
func (r *Relay) Forward(client *Client, roomID string, target string, msg Outbound) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if client.room == "" || client.room != roomID {
		return ErrNotInRoom
	}

	msg.RoomID = roomID
	msg.From = client.ID
	msg.Role = client.roomRole

	if target == "" {
		r.broadcastLocked(roomID, client.ID, msg)
		return nil
	}

	peer, ok := r.rooms[roomID][target]
	if !ok || peer.ID == client.ID {
		return ErrUnknownPeer
	}
	r.sendLocked(peer, msg)
	return nil
}

// Leave removes client from its room and tells the others with eventType
// (peer-left, call-ended or call-rejected). Session state is not touched.
func (r *Relay) Leave(client *Client, roomID string, eventType string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client.room == "" || client.room != roomID {
		return ErrNotInRoom
	}
	r.leaveLocked(client, eventType, reason)
	return nil
}

func (r *Relay) Members(roomID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peersLocked(roomID, "")
}

func (r *Relay) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Relay) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Relay) leaveLocked(client *Client, eventType string, reason string) {
	roomID := client.room
	if roomID == "" {
		return
	}
	members := r.rooms[roomID]
	delete(members, client.ID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	client.room = ""
	client.roomRole = ""

	r.broadcastLocked(roomID, client.ID, Outbound{
		Type:         eventType,
		RoomID:       roomID,
		ConnectionID: client.ID,
		Reason:       reason,
	})
}

func (r *Relay) peersLocked(roomID string, exclude string) []Peer {
	members := r.rooms[roomID]
	peers := make([]Peer, 0, len(members))
	for id, member := range members {
		if id == exclude {
			continue
		}
		peers = append(peers, Peer{ConnectionID: id, UserID: member.UserID, Role: member.roomRole})
	}
	return peers
}

func (r *Relay) broadcastLocked(roomID string, exclude string, msg Outbound) {
	for id, member := range r.rooms[roomID] {
		if id == exclude {
			continue
		}
		r.sendLocked(member, msg)
	}
}

func (r *Relay) sendLocked(client *Client, msg Outbound) {
	payload, err := encode(msg)
	if err != nil {
		r.log.Error().Err(err).Str("type", msg.Type).Msg("encode relay message")
		return
	}
	if !client.Send(payload) {
		r.metrics.RecordRelayDrop()
		r.log.Warn().
			Str("connection_id", client.ID).
			Str("type", msg.Type).
			Msg("peer buffer full, message dropped")
	}
}
