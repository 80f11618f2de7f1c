package vault

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultbot/internal/announce"
	"vaultbot/internal/providers/telegram"
)

type recordingSender struct {
	sent []telegram.Message
}

func (r *recordingSender) SendMessage(_ context.Context, msg telegram.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type fixedBalance struct {
	value decimal.Decimal
	known bool
}

func (f fixedBalance) Last() (decimal.Decimal, bool) { return f.value, f.known }

func newCommands(t *testing.T, now time.Time) (*Commands, *GoalState, *recordingSender) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	goals := NewGoalState(decimal.NewFromInt(1000), 99, []string{"@alice"})
	sender := &recordingSender{}
	cmds := NewCommands(goals, fixedBalance{value: decimal.NewFromInt(250), known: true}, sender, Options{
		Broadcast:    announce.Target{ChatID: -100, ThreadID: 4437},
		DonationLink: "https://donate.example/vault",
		Location:     loc,
		Now:          func() time.Time { return now },
	})
	return cmds, goals, sender
}

func message(text string, fromID int64, username string) *telegram.IncomingMessage {
	return &telegram.IncomingMessage{
		MessageID:       11,
		MessageThreadID: 4437,
		From:            &telegram.User{ID: fromID, Username: username},
		Chat:            telegram.Chat{ID: -100},
		Text:            text,
	}
}

func TestGreetingUsesConfiguredZone(t *testing.T) {
	cmds, _, _ := newCommands(t, time.Now())
	// 15:00 UTC in October is 11:00 in New York.
	cases := map[int]string{15: "Good morning", 17: "Good afternoon", 22: "Good evening", 3: "Good evening"}
	for hour, want := range cases {
		at := time.Date(2026, 10, 17, hour, 0, 0, 0, time.UTC)
		assert.Equal(t, want, cmds.Greeting(at), "hour %d UTC", hour)
	}
}

func TestStartCommand(t *testing.T) {
	cmds, _, sender := newCommands(t, time.Date(2026, 10, 17, 13, 0, 0, 0, time.UTC))
	require.NoError(t, cmds.Handle(context.Background(), message("/start", 1, "zed")))
	require.Len(t, sender.sent, 1)
	reply := sender.sent[0]
	assert.True(t, strings.HasPrefix(reply.Text, "Good morning sir! As the T1 Vault Bot"))
	assert.Equal(t, int64(-100), reply.ChatID)
	assert.Equal(t, int64(4437), reply.ThreadID)
	assert.Equal(t, int64(11), reply.ReplyTo)
}

func TestVaultAndDonateCommands(t *testing.T) {
	cmds, _, sender := newCommands(t, time.Now())
	require.NoError(t, cmds.Handle(context.Background(), message("/vault@T1VaultBot", 1, "zed")))
	require.NoError(t, cmds.Handle(context.Background(), message("/donate", 1, "zed")))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Vault inventory: $250.00 / $1000.00 [██░░░░░░░░] 25%", sender.sent[0].Text)
	assert.Contains(t, sender.sent[1].Text, "https://donate.example/vault")
}

func TestSetGoalFlow(t *testing.T) {
	cmds, goals, sender := newCommands(t, time.Now())
	ctx := context.Background()

	require.NoError(t, cmds.Handle(ctx, message("/setgoal 5", 1, "mallory")))
	assert.Equal(t, msgNotAuthorizedGoal, sender.sent[0].Text)

	require.NoError(t, cmds.Handle(ctx, message("/setgoal", 1, "Alice")))
	assert.Equal(t, msgUsageSetGoal, sender.sent[1].Text)

	require.NoError(t, cmds.Handle(ctx, message("/setgoal lots", 1, "Alice")))
	assert.Equal(t, msgInvalidAmount, sender.sent[2].Text)
	assert.Equal(t, "1000", goals.Goal().String())

	require.NoError(t, cmds.Handle(ctx, message("/setgoal 1500 new gear", 1, "Alice")))
	require.Len(t, sender.sent, 5)
	assert.Equal(t, "Vault goal updated to $1500.00.", sender.sent[3].Text)
	broadcast := sender.sent[4]
	assert.Equal(t, "Gentlemen, the Vault goal is now $1500.00. Reason: new gear", broadcast.Text)
	assert.Equal(t, int64(4437), broadcast.ThreadID)
	assert.Zero(t, broadcast.ReplyTo)
	assert.Equal(t, "1500", goals.Goal().String())
}

func TestSetGoalWithoutUsername(t *testing.T) {
	cmds, _, sender := newCommands(t, time.Now())
	require.NoError(t, cmds.Handle(context.Background(), message("/setgoal 10", 1, "")))
	assert.Equal(t, msgNotAuthorizedGoal, sender.sent[0].Text)
}

func TestSetAuthorizedFlow(t *testing.T) {
	cmds, goals, sender := newCommands(t, time.Now())
	ctx := context.Background()

	require.NoError(t, cmds.Handle(ctx, message("/setauthorized @bob", 5, "alice")))
	assert.Equal(t, msgOwnerOnly, sender.sent[0].Text)

	require.NoError(t, cmds.Handle(ctx, message("/setauthorized", 99, "owner")))
	assert.Equal(t, msgUsageSetAuthorized, sender.sent[1].Text)

	require.NoError(t, cmds.Handle(ctx, message("/setauthorized bob", 99, "owner")))
	assert.Equal(t, msgNoValidUsernames, sender.sent[2].Text)

	require.NoError(t, cmds.Handle(ctx, message("/setauthorized @Bob @carol", 99, "owner")))
	assert.Equal(t, "Authorized users updated: @bob, @carol", sender.sent[3].Text)
	assert.Equal(t, []string{"@alice", "@bob", "@carol"}, goals.Authorized())
}

func TestGetTopicAndIgnoredText(t *testing.T) {
	cmds, _, sender := newCommands(t, time.Now())
	ctx := context.Background()
	require.NoError(t, cmds.Handle(ctx, message("/gettopic", 1, "zed")))
	require.NoError(t, cmds.Handle(ctx, message("just chatting", 1, "zed")))
	require.NoError(t, cmds.Handle(ctx, message("/unknown", 1, "zed")))
	require.NoError(t, cmds.Handle(ctx, nil))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Chat ID: -100\nTopic ID: 4437", sender.sent[0].Text)
}
