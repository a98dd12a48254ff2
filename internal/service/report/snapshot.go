package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
)

const (
	StatusScamDetected = "scam_detected"
	StatusInProgress   = "in_progress"

	TriggerScam    = "scam"
	TriggerCadence = "cadence"
)

// Snapshot is the payload delivered to the intelligence collector. The
// sessionId, status and extracted_data keys are what existing collectors read.
type Snapshot struct {
	ReportID              string       `json:"reportId"`
	SessionID             string       `json:"sessionId"`
	Status                string       `json:"status"`
	ScamDetected          bool         `json:"scamDetected"`
	Confidence            float64      `json:"confidence"`
	Persona               string       `json:"persona"`
	MessageCount          int          `json:"messageCount"`
	ExtractedIntelligence intel.Record `json:"extracted_data"`
	Trigger               string       `json:"trigger"`
	GeneratedAt           time.Time    `json:"generatedAt"`
}

// NewSnapshot captures the session after a turn. The intelligence is deep-copied so
// later merges never show up in an in-flight report.
func NewSnapshot(sess chat.Session, verdict chat.Verdict, now time.Time) Snapshot {
	status, trigger := StatusInProgress, TriggerCadence
	if verdict.ScamDetected {
		status, trigger = StatusScamDetected, TriggerScam
	}
	return Snapshot{
		ReportID:              uuid.NewString(),
		SessionID:             sess.ID,
		Status:                status,
		ScamDetected:          verdict.ScamDetected,
		Confidence:            verdict.Score,
		Persona:               sess.Persona,
		MessageCount:          sess.MessageCount,
		ExtractedIntelligence: intel.Merge(intel.New(), sess.Intelligence),
		Trigger:               trigger,
		GeneratedAt:           now.UTC(),
	}
}

// ShouldReport decides whether a turn emits a report: always on a scam verdict,
// otherwise every cadence-th processed message. A cadence of zero disables the
// periodic reports.
func ShouldReport(messageCount int, scamDetected bool, cadence int) bool {
	if scamDetected {
		return true
	}
	return cadence > 0 && messageCount > 0 && messageCount%cadence == 0
}
