package websocket

import "encoding/json"

// Event types exchanged on the realtime channel.
const (
	TypeAnnounceIdentity = "announce-identity"
	TypeRelayMessage     = "relay-message"
	TypePresenceSet      = "presence-set"
	TypeIncomingMessage  = "incoming-message"
	TypeError            = "error"
)

// Envelope is the JSON frame: {"type": ..., "payload": ...}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type AnnounceIdentity struct {
	UserID int64 `json:"user_id"`
}

type RelayMessage struct {
	SenderID    int64  `json:"sender_id"`
	RecipientID int64  `json:"recipient_id"`
	Text        string `json:"text"`
}

type PresenceEntry struct {
	UserID       int64  `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

type IncomingMessage struct {
	SenderID int64  `json:"sender_id"`
	Text     string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}
