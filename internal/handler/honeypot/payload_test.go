package honeypot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
)

func TestDecodeRequestShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Request
	}{
		{
			name: "canonical",
			body: `{"sessionId":"abc","message":"pay now","conversationHistory":[{"sender":"scammer","text":"hi"}],"metadata":{"channel":"SMS"}}`,
			want: Request{SessionID: "abc", Text: "pay now", History: []chat.HistoryEntry{{Sender: "scammer", Text: "hi"}}},
		},
		{
			name: "numeric session and object message",
			body: `{"sessionId":42,"message":{"sender":"scammer","text":"verify kyc","timestamp":1700000000}}`,
			want: Request{SessionID: "42", Text: "verify kyc"},
		},
		{
			name: "role content history",
			body: `{"sessionId":"s","message":"x","conversationHistory":[{"role":"scammer","content":"first"},{"role":"user","content":""},{"text":"no sender"}]}`,
			want: Request{SessionID: "s", Text: "x", History: []chat.HistoryEntry{
				{Sender: "scammer", Text: "first"},
				{Sender: chat.SenderUser, Text: "no sender"},
			}},
		},
		{
			name: "missing everything",
			body: `{}`,
			want: Request{SessionID: UnknownSession, Text: PlaceholderMessage, Placeholder: true},
		},
		{
			name: "empty body",
			body: ``,
			want: Request{SessionID: UnknownSession, Text: PlaceholderMessage, Placeholder: true},
		},
		{
			name: "null and blank values",
			body: `{"sessionId":null,"message":"   ","conversationHistory":"not a list"}`,
			want: Request{SessionID: UnknownSession, Text: PlaceholderMessage, Placeholder: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeRequestRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"sessionId": "abc",`))
	require.Error(t, err)
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "hello", MessageText(json.RawMessage(`"hello"`)))
	assert.Equal(t, "hi", MessageText(json.RawMessage(`{"text":" hi "}`)))
	assert.Equal(t, "body", MessageText(json.RawMessage(`{"content":"body"}`)))
	assert.Equal(t, "", MessageText(json.RawMessage(`[1,2]`)))
	assert.Equal(t, "", MessageText(nil))
}
