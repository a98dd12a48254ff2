package chat

import "strings"

// Sender values seen on inbound history entries.
const (
	SenderScammer = "scammer"
	SenderUser    = "user"
)

// HistoryEntry is one prior conversation line in the shape the core consumes.
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// FromScammer reports whether the entry was written by the counterpart rather than the decoy.
func (e HistoryEntry) FromScammer() bool {
	return strings.EqualFold(strings.TrimSpace(e.Sender), SenderScammer)
}
