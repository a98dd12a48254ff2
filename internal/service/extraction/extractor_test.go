package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
	"github.com/zhouzirui/honeypot/backend/internal/testutil"
)

const scamText = "Send money to scammer@bank now, visit http://evil.example"

func newExtractor(t *testing.T, fake *testutil.ChatModel) *Service {
	t.Helper()
	var (
		svc *Service
		err error
	)
	if fake == nil {
		svc, err = NewService(context.Background(), nil, zaptest.NewLogger(t))
	} else {
		svc, err = NewService(context.Background(), fake, zaptest.NewLogger(t))
	}
	require.NoError(t, err)
	return svc
}

func TestExtractRegexOnly(t *testing.T) {
	got := newExtractor(t, nil).Extract(context.Background(), scamText)

	assert.Equal(t, []string{"scammer@bank"}, got[intel.UPIIDs])
	assert.Equal(t, []string{"http://evil.example"}, got[intel.URLs])
	assert.Equal(t, 2, got.Count())
}

func TestExtractMergesModelOutput(t *testing.T) {
	fake := testutil.StaticChatModel("```json\n" + `{
		"person_names": ["Rahul Verma"],
		"bank_names": ["HDFC", "HDFC"],
		"account_numbers": [123456789012, "00112233"],
		"upi_ids": ["scammer@bank"],
		"ifsc_codes": [],
		"entities": [{"nested": true}, "Acme Logistics"],
		"email_addresses": ["fraud@mail.example"],
		"note": "ignored"
	}` + "\n```")
	got := newExtractor(t, fake).Extract(context.Background(), scamText)

	assert.Equal(t, []string{"scammer@bank"}, got[intel.UPIIDs])
	assert.Equal(t, []string{"http://evil.example"}, got[intel.URLs])
	assert.Equal(t, []string{"Rahul Verma"}, got[intel.PersonNames])
	assert.Equal(t, []string{"HDFC"}, got[intel.BankNames])
	assert.Equal(t, []string{"00112233", "123456789012"}, got[intel.AccountNumbers])
	assert.Equal(t, []string{"Acme Logistics"}, got[intel.Entities])
	assert.Equal(t, []string{"fraud@mail.example"}, got["email_addresses"])
	assert.NotContains(t, got, "note")
}

func TestExtractKeepsRegexResultOnModelFailure(t *testing.T) {
	got := newExtractor(t, testutil.FailingChatModel(errors.New("boom"))).Extract(context.Background(), scamText)
	assert.Equal(t, []string{"scammer@bank"}, got[intel.UPIIDs])
	assert.Equal(t, []string{"http://evil.example"}, got[intel.URLs])
}

func TestExtractEmptyOnNothingFound(t *testing.T) {
	got := newExtractor(t, testutil.StaticChatModel("I found nothing")).Extract(context.Background(), "hello there")
	assert.Zero(t, got.Count())
	assert.Equal(t, intel.New(), got)
}
