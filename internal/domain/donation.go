package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which feed observed a donation.
type Source string

const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
)

// Outcome is the reconciliation verdict for a candidate.
type Outcome string

const (
	OutcomeAnnounce Outcome = "announce"
	OutcomeSuppress Outcome = "suppress"
)

// AnonymousDonor is the display label used when the processor gives no name.
const AnonymousDonor = "someone"

// Candidate is a normalized, not-yet-decided donation observation. Values are
// immutable once handed to the reconciliation pipeline.
//
// A poll candidate without TransactionID is a balance-delta observation and
// carries Balance instead of Amount. A push candidate without one could not be
// keyed at all and is announced without deduplication.
type Candidate struct {
	Source        Source
	TransactionID string
	Amount        decimal.Decimal
	Balance       *decimal.Decimal
	Currency      string
	DonorLabel    string
	ObservedAt    time.Time
}

// HasIdentity reports whether the candidate can be deduplicated by id.
func (c Candidate) HasIdentity() bool {
	return strings.TrimSpace(c.TransactionID) != ""
}

// Validate rejects candidates the engine cannot decide on.
func (c Candidate) Validate() error {
	switch c.Source {
	case SourcePush, SourcePoll:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidCandidate, c.Source)
	}
	if c.HasIdentity() || c.Source == SourcePush {
		if !c.Amount.IsPositive() {
			return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidCandidate, c.Amount)
		}
		return nil
	}
	if c.Balance == nil {
		return fmt.Errorf("%w: balance observation without balance", ErrInvalidCandidate)
	}
	return nil
}

// Label returns the donor label, falling back to AnonymousDonor.
func (c Candidate) Label() string {
	if label := strings.TrimSpace(c.DonorLabel); label != "" {
		return label
	}
	return AnonymousDonor
}

// Decision is the result of reconciling one candidate. Amount is the value to
// announce: the candidate amount on the id path, the balance delta on the
// legacy path.
type Decision struct {
	Outcome   Outcome
	Candidate Candidate
	Amount    decimal.Decimal
	Reason    string
}

// Announce reports whether the decision should produce a chat message.
func (d Decision) Announce() bool {
	return d.Outcome == OutcomeAnnounce
}
