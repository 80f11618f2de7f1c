package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateValidate(t *testing.T) {
	balance := decimal.NewFromInt(100)

	tests := []struct {
		name    string
		c       Candidate
		wantErr error
	}{
		{
			name: "push with id and amount",
			c:    Candidate{Source: SourcePush, TransactionID: "TX1", Amount: decimal.RequireFromString("25.00")},
		},
		{
			name: "push without id",
			c:    Candidate{Source: SourcePush, Amount: decimal.RequireFromString("25.00")},
		},
		{
			name:    "push without id or amount",
			c:       Candidate{Source: SourcePush},
			wantErr: ErrInvalidCandidate,
		},
		{
			name:    "zero amount",
			c:       Candidate{Source: SourcePoll, TransactionID: "TX2", Amount: decimal.Zero},
			wantErr: ErrInvalidCandidate,
		},
		{
			name:    "negative amount",
			c:       Candidate{Source: SourcePoll, TransactionID: "TX3", Amount: decimal.NewFromInt(-5)},
			wantErr: ErrInvalidCandidate,
		},
		{
			name: "poll balance observation",
			c:    Candidate{Source: SourcePoll, Balance: &balance},
		},
		{
			name:    "poll without id or balance",
			c:       Candidate{Source: SourcePoll},
			wantErr: ErrInvalidCandidate,
		},
		{
			name:    "unknown source",
			c:       Candidate{Source: "email", TransactionID: "TX4", Amount: decimal.NewFromInt(1)},
			wantErr: ErrInvalidCandidate,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCandidateLabelFallback(t *testing.T) {
	assert.Equal(t, AnonymousDonor, Candidate{DonorLabel: "  "}.Label())
	assert.Equal(t, "Ada", Candidate{DonorLabel: "Ada"}.Label())
}
