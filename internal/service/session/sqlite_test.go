package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLitePersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := NewSQLitePersister(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	empty, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, p.Save(ctx, sampleSessions()))
	require.NoError(t, p.Save(ctx, sampleSessions()))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSessions(), got)
}
