package callws

import (
	"encoding/json"
	"time"
)

// Client to server.
const (
	EventJoin         = "join"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventLeave        = "leave"
	EventEnd          = "end"
	EventReject       = "reject"
)

// Server to client.
const (
	EventJoined       = "joined"
	EventPeerJoined   = "peer-joined"
	EventPeerLeft     = "peer-left"
	EventCallEnded    = "call-ended"
	EventCallRejected = "call-rejected"
	EventError        = "error"
)

// Inbound is a client frame. Payload is forwarded untouched.
type Inbound struct {
	Type      string          `json:"type"`
	SessionID int64           `json:"session_id,omitempty"`
	RoomID    string          `json:"room_id"`
	Target    string          `json:"target,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type Outbound struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"room_id,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
	From         string          `json:"from,omitempty"`
	Role         string          `json:"role,omitempty"`
	Peers        []Peer          `json:"peers,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Error        string          `json:"error,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Peer describes one room member as seen by the others.
type Peer struct {
	ConnectionID string `json:"connection_id"`
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
}

// eventUnsupported labels every client event type the relay does not know,
// so metrics stay bounded whatever clients send.
const eventUnsupported = "unsupported"

func metricEvent(eventType string) string {
	switch eventType {
	case EventJoin, EventLeave, EventEnd, EventReject:
		return eventType
	}
	if isSignal(eventType) {
		return eventType
	}
	return eventUnsupported
}

func isSignal(eventType string) bool {
	switch eventType {
	case EventOffer, EventAnswer, EventICECandidate:
		return true
	}
	return false
}

func encode(msg Outbound) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return json.Marshal(msg)
}
