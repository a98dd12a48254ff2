package chat

import (
	"time"

	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
)

// Session captures the decoy state for one conversation.
type Session struct {
	ID           string       `json:"sessionId"`
	Persona      string       `json:"persona"`
	MessageCount int          `json:"messageCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
	Intelligence intel.Record `json:"intelligence"`
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	s.Intelligence = s.Intelligence.Clone()
	return s
}

// Summary is the listing view of a session.
type Summary struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"message_count"`
	Persona      string    `json:"persona"`
	LastActive   time.Time `json:"last_active"`
}

// Summary returns the listing view of s.
func (s Session) Summary() Summary {
	return Summary{
		SessionID:    s.ID,
		MessageCount: s.MessageCount,
		Persona:      s.Persona,
		LastActive:   s.LastActiveAt,
	}
}

// Verdict is a scam-scoring outcome for a single message.
type Verdict struct {
	Score        float64 `json:"score"`
	ScamDetected bool    `json:"scamDetected"`
	Reason       string  `json:"reason,omitempty"`
}
