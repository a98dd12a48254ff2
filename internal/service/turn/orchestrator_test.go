package turn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
	"github.com/zhouzirui/honeypot/backend/internal/model/persona"
	"github.com/zhouzirui/honeypot/backend/internal/service/ai"
	"github.com/zhouzirui/honeypot/backend/internal/service/extraction"
	"github.com/zhouzirui/honeypot/backend/internal/service/report"
	"github.com/zhouzirui/honeypot/backend/internal/service/scam"
	"github.com/zhouzirui/honeypot/backend/internal/service/session"
	"github.com/zhouzirui/honeypot/backend/internal/testutil"
)

type replyFunc func(ctx context.Context, personaID string, history []chat.HistoryEntry, text string) string

func (f replyFunc) Reply(ctx context.Context, personaID string, history []chat.HistoryEntry, text string) string {
	return f(ctx, personaID, history, text)
}

type scoreFunc func(ctx context.Context, text string) chat.Verdict

func (f scoreFunc) Score(ctx context.Context, text string) chat.Verdict { return f(ctx, text) }

type extractFunc func(ctx context.Context, text string) intel.Record

func (f extractFunc) Extract(ctx context.Context, text string) intel.Record { return f(ctx, text) }

type recordingReporter struct {
	mu    sync.Mutex
	snaps []report.Snapshot
}

func (r *recordingReporter) Dispatch(snap report.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recordingReporter) Snapshots() []report.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report.Snapshot(nil), r.snaps...)
}

func newStore() *session.MemoryStore {
	return session.NewMemoryStore(context.Background(), session.PickerFunc(func() string { return persona.Elderly }))
}

func quietReplier() Replier {
	return replyFunc(func(context.Context, string, []chat.HistoryEntry, string) string { return "Oh my, who is this?" })
}

func scoreFixed(v chat.Verdict) Scorer {
	return scoreFunc(func(context.Context, string) chat.Verdict { return v })
}

func extractNothing() Extractor {
	return extractFunc(func(context.Context, string) intel.Record { return intel.New() })
}

func TestProcessTurnEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	personas := persona.NewMemoryStore(persona.Seed())
	replier, err := ai.NewService(ctx, personas, testutil.StaticChatModel("Oh dear, which bank did you say?"), logger)
	require.NoError(t, err)
	scorer, err := scam.NewService(ctx, testutil.StaticChatModel(`{"score": 0.9, "scamDetected": true, "reason": "payment request"}`), scam.Config{}, logger)
	require.NoError(t, err)
	extractor, err := extraction.NewService(ctx, nil, logger)
	require.NoError(t, err)

	store := newStore()
	reporter := &recordingReporter{}
	orch := New(store, replier, scorer, extractor, reporter, Config{}, logger)

	res := orch.ProcessTurn(ctx, "abc", "Send money to scammer@bank now, visit http://evil.example", nil)

	assert.Equal(t, "Oh dear, which bank did you say?", res.Reply)
	assert.True(t, res.ScamDetected)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, 1, res.MessageCount)
	assert.Equal(t, persona.Elderly, res.Persona)
	assert.True(t, res.Reported)

	sess, ok := store.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, 1, sess.MessageCount)
	assert.Equal(t, []string{"scammer@bank"}, sess.Intelligence[intel.UPIIDs])
	assert.Equal(t, []string{"http://evil.example"}, sess.Intelligence[intel.URLs])

	snaps := reporter.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "abc", snaps[0].SessionID)
	assert.Equal(t, report.StatusScamDetected, snaps[0].Status)
	assert.Equal(t, report.TriggerScam, snaps[0].Trigger)
	assert.Equal(t, 1, snaps[0].MessageCount)
	assert.Equal(t, []string{"scammer@bank"}, snaps[0].ExtractedIntelligence[intel.UPIIDs])
}

func TestProcessTurnReportTriggers(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	reporter := &recordingReporter{}

	turn := 0
	scorer := scoreFunc(func(context.Context, string) chat.Verdict {
		if turn == 3 {
			return chat.Verdict{Score: 0.95, ScamDetected: true}
		}
		return chat.Verdict{Score: 0.1}
	})
	orch := New(store, quietReplier(), scorer, extractNothing(), reporter, Config{ReportCadence: 5}, zap.NewNop())

	for turn = 1; turn <= 10; turn++ {
		orch.ProcessTurn(ctx, "k", "hello", nil)
	}

	var counts []int
	for _, snap := range reporter.Snapshots() {
		counts = append(counts, snap.MessageCount)
	}
	assert.Equal(t, []int{3, 5, 10}, counts)
	assert.Equal(t, report.TriggerScam, reporter.Snapshots()[0].Trigger)
	assert.Equal(t, report.TriggerCadence, reporter.Snapshots()[1].Trigger)
}

func TestProcessTurnRunsCollaboratorsConcurrently(t *testing.T) {
	var (
		mu      sync.Mutex
		started int
		allIn   = make(chan struct{})
	)
	arrive := func(ctx context.Context) bool {
		mu.Lock()
		started++
		if started == 3 {
			close(allIn)
		}
		mu.Unlock()
		select {
		case <-allIn:
			return true
		case <-ctx.Done():
			return false
		}
	}

	replier := replyFunc(func(ctx context.Context, _ string, _ []chat.HistoryEntry, _ string) string {
		if !arrive(ctx) {
			return "late"
		}
		return "together"
	})
	scorer := scoreFunc(func(ctx context.Context, _ string) chat.Verdict {
		if !arrive(ctx) {
			return chat.Verdict{}
		}
		return chat.Verdict{Score: 0.8, ScamDetected: true}
	})
	extractor := extractFunc(func(ctx context.Context, _ string) intel.Record {
		rec := intel.New()
		if arrive(ctx) {
			rec.Add(intel.PhoneNumbers, "+91 9876543210")
		}
		return rec
	})

	store := newStore()
	orch := New(store, replier, scorer, extractor, nil, Config{CallTimeout: 2 * time.Second}, zap.NewNop())
	res := orch.ProcessTurn(context.Background(), "k", "hi", nil)

	assert.Equal(t, "together", res.Reply)
	assert.True(t, res.ScamDetected)
	sess, _ := store.Get(context.Background(), "k")
	assert.Equal(t, []string{"+91 9876543210"}, sess.Intelligence[intel.PhoneNumbers])
}

func TestProcessTurnFallsBackOnTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	slowReply := replyFunc(func(ctx context.Context, _ string, _ []chat.HistoryEntry, _ string) string {
		<-ctx.Done()
		return "too late"
	})
	extractor := extractFunc(func(context.Context, string) intel.Record {
		return intel.Record{intel.URLs: {"http://evil.example"}}
	})

	store := newStore()
	orch := New(store, slowReply, scoreFixed(chat.Verdict{Score: 0.4}), extractor, nil, Config{CallTimeout: 30 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	res := orch.ProcessTurn(context.Background(), "k", "hello", nil)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ai.FallbackReply, res.Reply)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	sess, _ := store.Get(context.Background(), "k")
	assert.Equal(t, []string{"http://evil.example"}, sess.Intelligence[intel.URLs])
}

func TestProcessTurnSurvivesClientCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := scoreFunc(func(context.Context, string) chat.Verdict {
		time.Sleep(20 * time.Millisecond)
		return chat.Verdict{Score: 0.9, ScamDetected: true}
	})
	extractor := extractFunc(func(context.Context, string) intel.Record {
		time.Sleep(20 * time.Millisecond)
		return intel.Record{intel.UPIIDs: {"scammer@bank"}}
	})
	reporter := &recordingReporter{}

	store := newStore()
	orch := New(store, quietReplier(), scorer, extractor, reporter, Config{CallTimeout: time.Second}, zap.NewNop())

	res := orch.ProcessTurn(ctx, "k", "pay scammer@bank", nil)

	assert.Equal(t, "Oh my, who is this?", res.Reply)
	assert.True(t, res.ScamDetected)
	assert.True(t, res.Reported)

	sess, ok := store.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, 1, sess.MessageCount)
	assert.Equal(t, []string{"scammer@bank"}, sess.Intelligence[intel.UPIIDs])

	snaps := reporter.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, report.StatusScamDetected, snaps[0].Status)
	assert.Equal(t, []string{"scammer@bank"}, snaps[0].ExtractedIntelligence[intel.UPIIDs])
}

func TestProcessTurnSurvivesPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	panicky := scoreFunc(func(context.Context, string) chat.Verdict { panic("scorer exploded") })
	brokenExtract := extractFunc(func(context.Context, string) intel.Record { panic("extractor exploded") })
	reporter := &recordingReporter{}

	store := newStore()
	orch := New(store, quietReplier(), panicky, brokenExtract, reporter, Config{}, zap.NewNop())

	var res Result
	require.NotPanics(t, func() {
		res = orch.ProcessTurn(context.Background(), "k", "hello", nil)
	})
	assert.Equal(t, "Oh my, who is this?", res.Reply)
	assert.False(t, res.ScamDetected)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, 1, res.MessageCount)
	assert.Empty(t, reporter.Snapshots())
}

func TestProcessTurnDoesNotWaitForDelivery(t *testing.T) {
	release := make(chan struct{})
	dispatcher := report.NewDispatcher(time.Second, zap.NewNop(), report.SinkFunc(func(context.Context, report.Snapshot) error {
		<-release
		return nil
	}))

	orch := New(newStore(), quietReplier(), scoreFixed(chat.Verdict{Score: 1, ScamDetected: true}), extractNothing(), dispatcher, Config{}, zap.NewNop())

	done := make(chan Result, 1)
	go func() { done <- orch.ProcessTurn(context.Background(), "k", "pay now", nil) }()

	select {
	case res := <-done:
		assert.True(t, res.Reported)
	case <-time.After(time.Second):
		t.Fatal("ProcessTurn waited for report delivery")
	}

	close(release)
	require.NoError(t, dispatcher.Close(context.Background()))
}

func TestConcurrentTurnsOnOneSession(t *testing.T) {
	store := newStore()
	orch := New(store, quietReplier(), scoreFixed(chat.Verdict{}), extractFunc(func(_ context.Context, text string) intel.Record {
		return intel.Record{intel.Entities: {text}}
	}), nil, Config{ReportCadence: -1}, zap.NewNop())

	const turns = 40
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orch.ProcessTurn(context.Background(), "shared", string(rune('a'+i%26)), nil)
		}(i)
	}
	wg.Wait()

	sess, ok := store.Get(context.Background(), "shared")
	require.True(t, ok)
	assert.Equal(t, turns, sess.MessageCount)
	assert.Len(t, sess.Intelligence[intel.Entities], 26)
}

func TestProcessTurnPassesPersonaAndHistory(t *testing.T) {
	history := []chat.HistoryEntry{{Sender: chat.SenderScammer, Text: "hi"}, {Sender: chat.SenderUser, Text: "who?"}}
	var gotPersona string
	var gotHistory []chat.HistoryEntry
	replier := replyFunc(func(_ context.Context, personaID string, h []chat.HistoryEntry, _ string) string {
		gotPersona, gotHistory = personaID, h
		return "ok"
	})

	orch := New(newStore(), replier, scoreFixed(chat.Verdict{}), extractNothing(), nil, Config{}, zap.NewNop())
	orch.ProcessTurn(context.Background(), "k", "send otp", history)

	assert.Equal(t, persona.Elderly, gotPersona)
	assert.Equal(t, history, gotHistory)
}
