//go:build integration

package report

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNATSSinkPublishes(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	conn, err := ConnectNATS(url, os.Getenv("NATS_TOKEN"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	subject := "honeypot.reports.test"
	msgs := make(chan *nats.Msg, 1)
	sub, err := conn.ChanSubscribe(subject, msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	snap := sampleSnapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, NewNATSSink(conn, subject).Send(ctx, snap))

	select {
	case msg := <-msgs:
		var got Snapshot
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, snap.ReportID, got.ReportID)
	case <-ctx.Done():
		t.Fatal("no report received")
	}
}
