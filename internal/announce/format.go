package announce

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vaultbot/internal/domain"
)

const barWidth = 10

var (
	hundred      = decimal.NewFromInt(100)
	markdownMeta = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)
)

// Progress returns the share of goal reached by balance as a percentage in
// [0, 100]. A non-positive goal yields 0.
func Progress(balance, goal decimal.Decimal) decimal.Decimal {
	if !goal.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}
	pct := balance.Mul(hundred).Div(goal)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// ProgressBar renders pct (0-100) as a fixed-width text bar.
func ProgressBar(pct decimal.Decimal) string {
	filled := int(pct.Mul(decimal.NewFromInt(barWidth)).Div(hundred).Floor().IntPart())
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

// USD formats an amount with two decimals.
func USD(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// EscapeMarkdown escapes the characters legacy Markdown parse mode treats as markup.
func EscapeMarkdown(s string) string {
	return markdownMeta.Replace(s)
}

// DonorDisplay normalizes a donor label for display. Only an all lower-case
// name is title-cased, so "ada" reads "Ada" while "McDonald", email addresses
// and the anonymous fallback are kept verbatim.
func DonorDisplay(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" || label == domain.AnonymousDonor || strings.Contains(label, "@") {
		return label
	}
	if label != strings.ToLower(label) {
		return label
	}
	return cases.Title(language.English).String(label)
}

// DonationText is the announcement body for one donation.
func DonationText(donor string, amount decimal.Decimal) string {
	return fmt.Sprintf("*Donation Received*\n%s donated %s to the vault.\nThank you! 🎉",
		EscapeMarkdown(DonorDisplay(donor)), USD(amount))
}

// ProgressLine summarizes balance against goal, e.g. "$250.00 / $1000.00 [██░░░░░░░░] 25%".
func ProgressLine(balance, goal decimal.Decimal) string {
	pct := Progress(balance, goal)
	return fmt.Sprintf("%s / %s %s %s%%", USD(balance), USD(goal), ProgressBar(pct), pct.Floor().String())
}

// VaultStatus is the reply to the status command. known is false until the
// first balance fetch succeeds.
func VaultStatus(balance decimal.Decimal, known bool, goal decimal.Decimal) string {
	if !known {
		return fmt.Sprintf("Vault goal is %s. The current balance is not available yet.", USD(goal))
	}
	return "Vault inventory: " + ProgressLine(balance, goal)
}

// GoalChangedText is broadcast after the goal changes.
func GoalChangedText(goal decimal.Decimal, reason string) string {
	text := fmt.Sprintf("Gentlemen, the Vault goal is now %s.", USD(goal))
	if reason = strings.TrimSpace(reason); reason != "" {
		text += " Reason: " + reason
	}
	return text
}
