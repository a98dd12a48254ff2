package scam

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	analysis "github.com/zhouzirui/honeypot/backend/internal/analysis/scam"
	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/pkg/utils"
)

const DefaultThreshold = 0.7

// Config controls scam scoring.
type Config struct {
	// Threshold decides scamDetected when the classifier omits it, and for the heuristic.
	Threshold float64
}

// Service scores inbound messages for scam intent with a language model, falling
// back to keyword heuristics when no model is configured.
type Service struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
	heuristic  func(text string) analysis.Decision
	threshold  float64
	logger     *zap.Logger
}

// NewService creates the scorer. chatModel may be nil.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	svc := &Service{
		heuristic: analysis.Analyze,
		threshold: threshold,
		logger:    logger.Named("scam"),
	}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{message}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile scam classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled reports whether the language-model classifier is active.
func (s *Service) Enabled() bool {
	return s != nil && s.classifier != nil
}

// Score classifies text. Any classifier failure yields a zero, not-scam verdict.
func (s *Service) Score(ctx context.Context, text string) chat.Verdict {
	if !s.Enabled() {
		return s.heuristicVerdict(text)
	}

	msg, err := s.classifier.Invoke(ctx, map[string]any{
		"system":  scamSystemPrompt,
		"message": strings.TrimSpace(text),
	})
	if err != nil {
		s.logger.Error("scam classifier failed", zap.Error(err))
		return failOpen()
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		s.logger.Warn("scam classifier returned empty content")
		return failOpen()
	}

	var payload classifierPayload
	if err := utils.DecodeJSONObject(msg.Content, &payload); err != nil {
		s.logger.Error("scam classifier output parse failed", zap.Error(err), zap.String("raw", msg.Content))
		return failOpen()
	}

	score := clampScore(payload.Score)
	detected := score >= s.threshold
	if payload.ScamDetected != nil {
		detected = *payload.ScamDetected
	}

	return chat.Verdict{
		Score:        score,
		ScamDetected: detected,
		Reason:       strings.TrimSpace(payload.Reason),
	}
}

func (s *Service) heuristicVerdict(text string) chat.Verdict {
	decision := s.heuristic(text)
	reason := "heuristic"
	if len(decision.Cues) > 0 {
		cues := make([]string, len(decision.Cues))
		for i, c := range decision.Cues {
			cues[i] = string(c)
		}
		reason = "heuristic: " + strings.Join(cues, ", ")
	}
	return chat.Verdict{
		Score:        decision.Score,
		ScamDetected: decision.Score >= s.threshold,
		Reason:       reason,
	}
}

func failOpen() chat.Verdict {
	return chat.Verdict{Score: 0, ScamDetected: false, Reason: "fallback"}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type classifierPayload struct {
	Score        float64 `json:"score"`
	ScamDetected *bool   `json:"scamDetected"`
	Reason       string  `json:"reason"`
}

const scamSystemPrompt = "You are a Scam Detection AI. Analyze the user's message. " +
	"Determine if it has scam intent (phishing, financial fraud, urgency, asking for sensitive info). " +
	"Return ONLY a JSON object with keys: 'score' (float 0.0-1.0), 'scamDetected' (boolean), 'reason' (string). " +
	"Example: {\"score\": 0.95, \"scamDetected\": true, \"reason\": \"Asked for bank details\"}."
