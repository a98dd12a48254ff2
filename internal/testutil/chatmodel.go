// Package testutil holds fakes shared by service tests.
package testutil

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is a scripted chat model for eino chains.
type ChatModel struct {
	mu      sync.Mutex
	respond func(input []*schema.Message) (*schema.Message, error)
	calls   [][]*schema.Message
}

var _ model.ChatModel = (*ChatModel)(nil)

// NewChatModel returns a model that answers with respond.
func NewChatModel(respond func(input []*schema.Message) (*schema.Message, error)) *ChatModel {
	return &ChatModel{respond: respond}
}

// StaticChatModel always answers with content.
func StaticChatModel(content string) *ChatModel {
	return NewChatModel(func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	})
}

// FailingChatModel always returns err.
func FailingChatModel(err error) *ChatModel {
	return NewChatModel(func([]*schema.Message) (*schema.Message, error) {
		return nil, err
	})
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.respond(input)
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) BindTools([]*schema.ToolInfo) error { return nil }

// Calls returns the message lists the model received.
func (m *ChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}
