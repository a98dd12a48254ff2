package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/config"
	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
)

// defaultScript is a short escalation used with -scripted.
var defaultScript = []string{
	"Hello, this is Rahul from SBI customer care.",
	"Your account will be blocked today due to pending KYC.",
	"To avoid suspension please verify your details immediately.",
	"Send Rs 10 processing fee to scammer@bank and share the OTP.",
	"Or complete the form at http://evil.example/kyc right now.",
}

type turnResponse struct {
	Reply        string  `json:"reply"`
	ScamDetected bool    `json:"scam_detected"`
	Confidence   float64 `json:"confidence_score"`
}

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	defaultKey := ""
	if cfg, err := config.Load(); err == nil {
		defaultKey = cfg.Server.APIKey
	}

	baseURL := flag.String("url", "http://localhost:8080", "honeypot API base URL")
	apiKey := flag.String("key", defaultKey, "x-api-key header value (defaults to HONEYPOT_API_KEY)")
	sessionID := flag.String("session", "", "session id, generated when empty")
	scripted := flag.Bool("scripted", false, "play the built-in scam script instead of reading stdin")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.NewString()[:8]
	}

	client := &tester{
		url:     strings.TrimRight(*baseURL, "/") + "/message",
		key:     *apiKey,
		session: *sessionID,
		http:    &http.Client{Timeout: *timeout},
	}

	fmt.Printf("session %s -> %s\n", client.session, client.url)
	fmt.Println("you are the scammer; type 'exit' to stop")

	if *scripted {
		for _, line := range defaultScript {
			fmt.Printf("\n[scammer]: %s\n", line)
			if err := client.send(context.Background(), line); err != nil {
				logger.Fatal("turn failed", zap.Error(err))
			}
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n[scammer]: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}
		if err := client.send(context.Background(), line); err != nil {
			logger.Error("turn failed", zap.Error(err))
		}
	}
	fmt.Println("\ntest finished")
}

type tester struct {
	url     string
	key     string
	session string
	http    *http.Client
	history []chat.HistoryEntry
}

func (t *tester) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]any{
		"sessionId": t.session,
		"message": map[string]any{
			"sender":    chat.SenderScammer,
			"text":      text,
			"timestamp": time.Now().Unix(),
		},
		"conversationHistory": t.history,
		"metadata":            map[string]string{"channel": "turntester", "language": "en"},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.key != "" {
		req.Header.Set("x-api-key", t.key)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out turnResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	t.history = append(t.history,
		chat.HistoryEntry{Sender: chat.SenderScammer, Text: text},
		chat.HistoryEntry{Sender: chat.SenderUser, Text: out.Reply},
	)

	status := "safe"
	if out.ScamDetected {
		status = "SCAM DETECTED"
	}
	fmt.Printf("[decoy]: %s\n   >>> %s (score %.2f, %s)\n", out.Reply, status, out.Confidence, time.Since(start).Round(time.Millisecond))
	return nil
}
