package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without zoneinfo

	"github.com/shopspring/decimal"

	"vaultbot/internal/announce"
	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/providers/telegram"
)

const (
	msgNotAuthorizedGoal  = "You are not authorized to set the vault goal."
	msgUsageSetGoal       = "Usage: /setgoal <amount> [reason]"
	msgInvalidAmount      = "Invalid amount. Please enter a valid number."
	msgOwnerOnly          = "Only the bot owner can set authorized users."
	msgUsageSetAuthorized = "Usage: /setauthorized @username1 @username2 ..."
	msgNoValidUsernames   = "No valid @usernames found."
)

// Options configures the command surface.
type Options struct {
	Broadcast    announce.Target
	DonationLink string
	Location     *time.Location
	Now          func() time.Time
	Logger       *infra.Logger
}

// Commands answers the bot's chat commands. It reads goal and balance state
// but never touches reconciliation.
type Commands struct {
	goals    *GoalState
	balances announce.BalanceSource
	sender   announce.Sender
	opts     Options
	logger   infra.Logger
}

func NewCommands(goals *GoalState, balances announce.BalanceSource, sender announce.Sender, opts Options) *Commands {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Commands{goals: goals, balances: balances, sender: sender, opts: opts, logger: *logger}
}

// Handle replies to one incoming message. Non-command text and unknown
// commands are ignored.
func (c *Commands) Handle(ctx context.Context, msg *telegram.IncomingMessage) error {
	if msg == nil {
		return nil
	}
	name, args, ok := msg.Command()
	if !ok {
		return nil
	}
	var reply string
	switch name {
	case "start":
		reply = c.start()
	case "vault":
		reply = c.status()
	case "donate":
		reply = c.donate()
	case "setgoal":
		return c.setGoal(ctx, msg, args)
	case "setauthorized":
		reply = c.setAuthorized(msg, args)
	case "gettopic":
		reply = fmt.Sprintf("Chat ID: %d\nTopic ID: %d", msg.Chat.ID, msg.MessageThreadID)
	default:
		return nil
	}
	c.logger.Debug().Str("command", name).Int64("chat_id", msg.Chat.ID).Msg("command handled")
	return c.reply(ctx, msg, reply)
}

// Greeting returns the time-of-day salutation for t in the configured zone.
func (c *Commands) Greeting(t time.Time) string {
	switch hour := t.In(c.opts.Location).Hour(); {
	case hour < 12:
		return "Good morning"
	case hour < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func (c *Commands) start() string {
	return c.Greeting(c.opts.Now()) + " sir! As the T1 Vault Bot, I am at your service.\n" +
		"Say /vault to see the current vault inventory.\n" +
		"Say /donate to contribute to the vault."
}

func (c *Commands) status() string {
	var (
		balance decimal.Decimal
		known   bool
	)
	if c.balances != nil {
		balance, known = c.balances.Last()
	}
	return announce.VaultStatus(balance, known, c.goals.Goal())
}

func (c *Commands) donate() string {
	return "Thank you for your interest in contributing to the vault!\nPlease visit: " + c.opts.DonationLink
}

func (c *Commands) setGoal(ctx context.Context, msg *telegram.IncomingMessage, args []string) error {
	handle := msg.SenderUsername()
	if !c.goals.CanSetGoal(handle) {
		return c.reply(ctx, msg, msgNotAuthorizedGoal)
	}
	if len(args) == 0 {
		return c.reply(ctx, msg, msgUsageSetGoal)
	}
	amount, err := decimal.NewFromString(strings.TrimPrefix(args[0], "$"))
	if err != nil {
		return c.reply(ctx, msg, msgInvalidAmount)
	}
	if err := c.goals.SetGoal(handle, amount); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return c.reply(ctx, msg, msgNotAuthorizedGoal)
		}
		return err
	}
	c.logger.Info().Str("by", handle).Str("goal", amount.StringFixed(2)).Msg("vault goal updated")

	if err := c.reply(ctx, msg, fmt.Sprintf("Vault goal updated to %s.", announce.USD(amount))); err != nil {
		return err
	}
	return c.sender.SendMessage(ctx, telegram.Message{
		ChatID:   c.opts.Broadcast.ChatID,
		ThreadID: c.opts.Broadcast.ThreadID,
		Text:     announce.GoalChangedText(amount, strings.Join(args[1:], " ")),
	})
}

func (c *Commands) setAuthorized(msg *telegram.IncomingMessage, args []string) string {
	if !c.goals.IsOwner(msg.SenderID()) {
		return msgOwnerOnly
	}
	if len(args) == 0 {
		return msgUsageSetAuthorized
	}
	accepted, err := c.goals.SetAuthorized(msg.SenderID(), args)
	if err != nil {
		return msgOwnerOnly
	}
	if len(accepted) == 0 {
		return msgNoValidUsernames
	}
	c.logger.Info().Strs("authorized", accepted).Msg("authorized users added")
	return "Authorized users updated: " + strings.Join(accepted, ", ")
}

func (c *Commands) reply(ctx context.Context, msg *telegram.IncomingMessage, text string) error {
	return c.sender.SendMessage(ctx, telegram.Message{
		ChatID:   msg.Chat.ID,
		ThreadID: msg.MessageThreadID,
		Text:     text,
		ReplyTo:  msg.MessageID,
	})
}
