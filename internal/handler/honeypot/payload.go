package honeypot

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
)

const (
	UnknownSession     = "unknown"
	PlaceholderMessage = "Hello"
)

// Request is a normalized inbound message.
type Request struct {
	SessionID string
	Text      string
	History   []chat.HistoryEntry
	// Placeholder is set when the message text was missing and PlaceholderMessage
	// was substituted.
	Placeholder bool
}

type rawRequest struct {
	SessionID           json.RawMessage `json:"sessionId"`
	Message             json.RawMessage `json:"message"`
	ConversationHistory json.RawMessage `json:"conversationHistory"`
	Metadata            json.RawMessage `json:"metadata"`
}

// DecodeRequest accepts every shape integrators are known to send. It only fails
// on syntactically invalid JSON; an empty body yields the defaults.
func DecodeRequest(body []byte) (Request, error) {
	var raw rawRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return Request{}, err
		}
	}

	req := Request{
		SessionID: sessionID(raw.SessionID),
		Text:      MessageText(raw.Message),
		History:   history(raw.ConversationHistory),
	}
	if req.Text == "" {
		req.Text = PlaceholderMessage
		req.Placeholder = true
	}
	return req, nil
}

// MessageText reads a message given as a string or as an object with a text field.
func MessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if text := strings.TrimSpace(obj.Text); text != "" {
			return text
		}
		return strings.TrimSpace(obj.Content)
	}
	return ""
}

func sessionID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return UnknownSession
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return UnknownSession
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return UnknownSession
}

func history(raw json.RawMessage) []chat.HistoryEntry {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	entries := make([]chat.HistoryEntry, 0, len(items))
	for _, item := range items {
		var e struct {
			Sender  string `json:"sender"`
			Role    string `json:"role"`
			Text    string `json:"text"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		sender := firstNonEmpty(e.Sender, e.Role, chat.SenderUser)
		text := firstNonEmpty(e.Text, e.Content)
		if text == "" {
			continue
		}
		entries = append(entries, chat.HistoryEntry{Sender: sender, Text: text})
	}
	return entries
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
