package announce

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/providers/telegram"
)

// Sender delivers a chat message.
type Sender interface {
	SendMessage(ctx context.Context, msg telegram.Message) error
}

// BalanceSource exposes the last known aggregate balance.
type BalanceSource interface {
	Last() (decimal.Decimal, bool)
}

// GoalSource exposes the current vault goal.
type GoalSource interface {
	Goal() decimal.Decimal
}

// Target is the chat (and optional forum topic) announcements go to.
type Target struct {
	ChatID   int64
	ThreadID int64
}

// Announcer turns announce decisions into chat messages.
type Announcer struct {
	sender   Sender
	target   Target
	balances BalanceSource
	goals    GoalSource
	logger   infra.Logger
}

func NewAnnouncer(sender Sender, target Target, balances BalanceSource, goals GoalSource, logger infra.Logger) *Announcer {
	return &Announcer{sender: sender, target: target, balances: balances, goals: goals, logger: logger}
}

// Announce formats and sends one donation message. Delivery is attempted once
// per call; the caller decides what a failure means.
func (a *Announcer) Announce(ctx context.Context, d domain.Decision) error {
	if !d.Announce() {
		return nil
	}
	text := a.Format(d)
	err := a.sender.SendMessage(ctx, telegram.Message{
		ChatID:    a.target.ChatID,
		ThreadID:  a.target.ThreadID,
		Text:      text,
		ParseMode: telegram.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("announce %s: %w", d.Candidate.TransactionID, err)
	}
	a.logger.Info().
		Str("transaction_id", d.Candidate.TransactionID).
		Str("amount", d.Amount.StringFixed(2)).
		Msg("donation announced")
	return nil
}

// Format renders the message for d, appending progress when a balance is known.
// A legacy decision carries its own balance, which is fresher than the tracker.
func (a *Announcer) Format(d domain.Decision) string {
	text := DonationText(d.Candidate.Label(), d.Amount)
	if a.goals == nil {
		return text
	}
	var (
		balance decimal.Decimal
		known   bool
	)
	if d.Candidate.Balance != nil {
		balance, known = *d.Candidate.Balance, true
	} else if a.balances != nil {
		balance, known = a.balances.Last()
	}
	if !known {
		return text
	}
	return text + "\n" + ProgressLine(balance, a.goals.Goal())
}
