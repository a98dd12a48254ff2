package scam

import (
	"regexp"
	"strings"
)

// Cue is a family of scam signals.
type Cue string

const (
	Urgency     Cue = "urgency"
	Payment     Cue = "payment"
	Credentials Cue = "credentials"
	Threat      Cue = "threat"
	Reward      Cue = "reward"
	Impersonate Cue = "impersonation"
)

// Decision is the heuristic verdict for one message.
type Decision struct {
	Score float64
	Cues  []Cue
}

var keywordBuckets = map[Cue][]string{
	Urgency: {
		"immediately", "urgent", "right now", "within 24 hours", "today only", "asap", "last chance",
		"act now", "expire", "hurry",
	},
	Payment: {
		"transfer", "send money", "pay", "upi", "gift card", "wire", "deposit", "bitcoin", "crypto",
		"processing fee", "refund", "wallet",
	},
	Credentials: {
		"otp", "one time password", "pin", "cvv", "password", "account number", "card number", "ifsc",
		"verify your", "kyc", "login",
	},
	Threat: {
		"blocked", "suspended", "arrest", "legal action", "police", "penalty", "frozen", "deactivated",
		"court",
	},
	Reward: {
		"lottery", "prize", "won", "winner", "cashback", "reward", "investment", "double your", "guaranteed return",
	},
	Impersonate: {
		"from the bank", "customer care", "customer support", "tax department", "income tax", "rbi",
		"microsoft", "tech support", "government",
	},
}

var cueWeights = map[Cue]float64{
	Urgency:     0.2,
	Payment:     0.25,
	Credentials: 0.3,
	Threat:      0.25,
	Reward:      0.2,
	Impersonate: 0.15,
}

var (
	paymentHandle = regexp.MustCompile(`[\w.\-]+@\w+`)
	link          = regexp.MustCompile(`https?://\S+`)
)

// Analyze scores a message by the distinct cue families it contains. Each family
// counts once; a payment handle or link adds a smaller bump. The score is capped at 1.
func Analyze(text string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Decision{}
	}

	var cues []Cue
	score := 0.0
	for _, cue := range []Cue{Urgency, Payment, Credentials, Threat, Reward, Impersonate} {
		for _, word := range keywordBuckets[cue] {
			if strings.Contains(normalized, word) {
				cues = append(cues, cue)
				score += cueWeights[cue]
				break
			}
		}
	}

	if paymentHandle.MatchString(normalized) {
		score += 0.1
	}
	if link.MatchString(normalized) {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	return Decision{Score: score, Cues: cues}
}
