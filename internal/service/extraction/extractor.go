package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
	"github.com/zhouzirui/honeypot/backend/pkg/utils"
)

var (
	upiPattern = regexp.MustCompile(`[\w.\-]+@\w+`)
	urlPattern = regexp.MustCompile(`https?://(?:[-\w.]|%[\da-fA-F]{2})+`)
)

// Service pulls identifying intelligence out of a single message. A regex pass for
// strict formats always runs; a language model fills in the free-form categories.
type Service struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewService creates the extractor. chatModel may be nil, leaving only the regex pass.
func NewService(ctx context.Context, chatModel model.BaseChatModel, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{logger: logger.Named("extraction")}
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
		return nil, fmt.Errorf("failed to compile extraction chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

// Enabled reports whether the language-model pass is active.
func (s *Service) Enabled() bool {
	return s != nil && s.chain != nil
}

// Extract returns the intelligence found in text. LLM failures leave the regex
// result in place; the record is empty when nothing matched.
func (s *Service) Extract(ctx context.Context, text string) intel.Record {
	extracted := intel.New()
	extracted.Add(intel.UPIIDs, upiPattern.FindAllString(text, -1)...)
	extracted.Add(intel.URLs, urlPattern.FindAllString(text, -1)...)

	if !s.Enabled() || strings.TrimSpace(text) == "" {
		return extracted
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system":  extractionSystemPrompt,
		"message": text,
	})
	if err != nil {
		s.logger.Error("llm extraction failed", zap.Error(err))
		return extracted
	}
	if msg == nil {
		return extracted
	}

	found, err := parseExtraction(msg.Content)
	if err != nil {
		s.logger.Error("llm extraction output parse failed", zap.Error(err), zap.String("raw", msg.Content))
		return extracted
	}
	return intel.Merge(extracted, found)
}

// parseExtraction keeps array-valued keys, including categories this build does not
// know about. Only string and number items survive.
func parseExtraction(content string) (intel.Record, error) {
	var raw map[string]json.RawMessage
	if err := utils.DecodeJSONObject(content, &raw); err != nil {
		return nil, err
	}

	out := make(intel.Record, len(raw))
	for key, value := range raw {
		var items []any
		if err := json.Unmarshal(value, &items); err != nil {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(key))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				out.Add(category, v)
			case float64:
				out.Add(category, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
	}
	return out, nil
}

const extractionSystemPrompt = "You are an expert Intelligence Extraction AI. " +
	"Identify and extract PROPER NOUNS and FINANCIAL DETAILS from the message. " +
	"Return a JSON object with the following keys (use empty lists if not found): " +
	"1. 'person_names': Names of people. " +
	"2. 'bank_names': Names of banks. " +
	"3. 'account_numbers': Any banking account numbers (digits). " +
	"4. 'ifsc_codes': Bank routing/IFSC codes. " +
	"5. 'crypto_wallets': Wallet addresses. " +
	"6. 'upi_ids': Payment IDs (e.g. name@bank). " +
	"7. 'phone_numbers': Contact numbers. " +
	"8. 'urls': Websites/Links. " +
	"9. 'entities': Any other proper nouns (Locations, Companies). " +
	"Do NOT extract generic words (money, help, call). Return account numbers as strings."
