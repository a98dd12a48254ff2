package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
)

func sampleSessions() map[string]chat.Session {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := intel.New()
	rec.Add(intel.UPIIDs, "scammer@bank")
	return map[string]chat.Session{
		"abc": {
			ID:           "abc",
			Persona:      "student",
			MessageCount: 3,
			CreatedAt:    ts,
			LastActiveAt: ts.Add(time.Minute),
			Intelligence: rec,
		},
	}
}

func TestFilePersisterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePersister(filepath.Join(dir, "nested", "sessions.json"))
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, sampleSessions()))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSessions(), got)

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "sessions.json", entries[0].Name())
}

func TestFilePersisterMissingFile(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "absent.json"))
	got, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilePersisterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFilePersister(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFilePersisterOverwriteKeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	p := NewFilePersister(path)
	ctx := context.Background()
	require.NoError(t, p.Save(ctx, sampleSessions()))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, p.Save(cancelled, map[string]chat.Session{}))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSessions(), got)
}
