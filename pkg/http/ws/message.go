package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeSelectAnswer = "select_answer"
	TypeSubmitAnswer = "submit_answer"
	TypeNext         = "next"
	TypePrevious     = "previous"
	TypeReset        = "reset"
	TypeSetSubject   = "set_subject"
	TypePing         = "ping"

	// Server -> Client
	TypeSessionState = "session_state"
	TypeStatsUpdate  = "stats_update"
	TypeAuthState    = "auth_state"
	TypeError        = "error"
	TypePong         = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Client Messages (incoming)

type SelectAnswerPayload struct {
	Option string `json:"option"`
}

type SetSubjectPayload struct {
	Subject string `json:"subject"`
}

// Server Messages (outgoing)

type StatsUpdatePayload struct {
	UserID        string `json:"user_id"`
	TotalAnswered int    `json:"total_questions_answered"`
	TotalCorrect  int    `json:"total_correct_answers"`
	Accuracy      int    `json:"accuracy"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

type AuthStatePayload struct {
	Event  string `json:"event"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
