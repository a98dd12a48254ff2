package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/model/persona"
)

// FallbackReply is returned whenever the model cannot produce a usable reply.
const FallbackReply = "Sorry, I didn't catch that. Could you repeat it?"

const historyLimit = 10

// Service generates in-character decoy replies.
type Service struct {
	personas persona.Store
	prompts  *PersonaPromptManager
	chain    compose.Runnable[map[string]any, *schema.Message]
	logger   *zap.Logger
}

// NewService creates the reply generator. A nil chatModel yields an offline service
// that answers with the persona's canned stalling lines.
func NewService(ctx context.Context, personas persona.Store, chatModel model.BaseChatModel, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := &Service{
		personas: personas,
		prompts:  NewPersonaPromptManager(),
		logger:   logger.Named("ai"),
	}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	svc.chain = runnable
	return svc, nil
}

// Enabled reports whether replies come from a language model.
func (s *Service) Enabled() bool {
	return s != nil && s.chain != nil
}

// Reply produces the decoy's next line. It never returns an empty string.
func (s *Service) Reply(ctx context.Context, personaID string, history []chat.HistoryEntry, text string) string {
	p := s.resolvePersona(personaID)

	if !s.Enabled() {
		return stallLine(p, len(history))
	}

	response, err := s.chain.Invoke(ctx, s.buildChainInput(p, history, text))
	if err != nil {
		s.logger.Error("reply generation failed", zap.String("persona", p.ID), zap.Error(err))
		return FallbackReply
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		s.logger.Warn("reply generation returned empty content", zap.String("persona", p.ID))
		return FallbackReply
	}

	reply := strings.TrimSpace(response.Content)
	s.logger.Debug("generated reply", zap.String("persona", p.ID), zap.Int("length", len(reply)))
	return reply
}

func (s *Service) resolvePersona(id string) *persona.Persona {
	if p, ok := s.personas.FindByID(id); ok {
		return &p
	}
	if p, ok := s.personas.FindByID(persona.Elderly); ok {
		return &p
	}
	return &persona.Persona{ID: id}
}

func (s *Service) buildChainInput(p *persona.Persona, history []chat.HistoryEntry, text string) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(p),
		"history": buildHistoryMessages(history),
		"query":   text,
	}
}

// buildHistoryMessages maps the counterpart's lines to the user role and the
// decoy's own lines to the assistant role.
func buildHistoryMessages(entries []chat.HistoryEntry) []*schema.Message {
	if len(entries) == 0 {
		return nil
	}

	startIdx := 0
	if len(entries) > historyLimit {
		startIdx = len(entries) - historyLimit
	}

	history := make([]*schema.Message, 0, len(entries)-startIdx)
	for _, entry := range entries[startIdx:] {
		if strings.TrimSpace(entry.Text) == "" {
			continue
		}
		if entry.FromScammer() {
			history = append(history, schema.UserMessage(entry.Text))
		} else {
			history = append(history, schema.AssistantMessage(entry.Text, nil))
		}
	}
	return history
}

func stallLine(p *persona.Persona, turn int) string {
	if len(p.Stalls) == 0 {
		return FallbackReply
	}
	return p.Stalls[turn%len(p.Stalls)]
}
