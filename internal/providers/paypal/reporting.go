package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatusSuccess is the transaction_status of a completed transaction.
const StatusSuccess = "S"

const (
	defaultPageSize = 100
	maxPages        = 50
)

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type balancesResponse struct {
	Balances []struct {
		Currency         string `json:"currency"`
		Primary          bool   `json:"primary"`
		TotalBalance     money  `json:"total_balance"`
		AvailableBalance money  `json:"available_balance"`
	} `json:"balances"`
	AsOfTime string `json:"as_of_time"`
}

type transactionsResponse struct {
	TransactionDetails []struct {
		TransactionInfo struct {
			TransactionID             string `json:"transaction_id"`
			TransactionAmount         money  `json:"transaction_amount"`
			TransactionStatus         string `json:"transaction_status"`
			TransactionInitiationDate string `json:"transaction_initiation_date"`
		} `json:"transaction_info"`
		PayerInfo struct {
			EmailAddress string `json:"email_address"`
			PayerName    struct {
				GivenName         string `json:"given_name"`
				Surname           string `json:"surname"`
				AlternateFullName string `json:"alternate_full_name"`
			} `json:"payer_name"`
		} `json:"payer_info"`
	} `json:"transaction_details"`
	Page       int `json:"page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Transaction is one entry of the transaction search report.
type Transaction struct {
	ID          string
	Amount      decimal.Decimal
	Currency    string
	Status      string
	InitiatedAt time.Time
	GivenName   string
	FullName    string
	Email       string
}

// Completed reports whether PayPal considers the transaction settled.
func (t Transaction) Completed() bool {
	return strings.EqualFold(t.Status, StatusSuccess)
}

// PayerLabel picks the most readable payer identifier available.
func (t Transaction) PayerLabel() string {
	for _, v := range []string{t.GivenName, t.FullName, t.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// TransactionQuery bounds a transaction search.
type TransactionQuery struct {
	Start    time.Time
	End      time.Time
	PageSize int
}

// Balance returns the total balance held in the given currency.
func (c *Client) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	q := url.Values{}
	if currency != "" {
		q.Set("currency_code", currency)
	}
	var resp balancesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/reporting/balances", q, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	for _, b := range resp.Balances {
		code := b.Currency
		if code == "" {
			code = b.TotalBalance.CurrencyCode
		}
		if currency != "" && !strings.EqualFold(code, currency) {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(b.TotalBalance.Value))
		if err != nil {
			return decimal.Zero, fmt.Errorf("paypal: parse balance %q: %w", b.TotalBalance.Value, err)
		}
		return value, nil
	}
	return decimal.Zero, fmt.Errorf("paypal: no %s balance in response", currency)
}

// ListTransactions walks the pages of the transaction search for the window,
// up to maxPages. Entries with unparseable amounts are skipped.
func (c *Client) ListTransactions(ctx context.Context, query TransactionQuery) ([]Transaction, error) {
	if !query.End.After(query.Start) {
		return nil, fmt.Errorf("paypal: transaction window end must be after start")
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = defaultPageSize
	}

	var out []Transaction
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("start_date", query.Start.UTC().Format(time.RFC3339))
		q.Set("end_date", query.End.UTC().Format(time.RFC3339))
		q.Set("fields", "transaction_info,payer_info")
		q.Set("page_size", strconv.Itoa(pageSize))
		q.Set("page", strconv.Itoa(page))

		var resp transactionsResponse
		if err := c.do(ctx, http.MethodGet, "/v1/reporting/transactions", q, nil, &resp); err != nil {
			return nil, err
		}
		for _, d := range resp.TransactionDetails {
			info := d.TransactionInfo
			amount, err := decimal.NewFromString(strings.TrimSpace(info.TransactionAmount.Value))
			if err != nil {
				c.logger.Warn().Str("transaction_id", info.TransactionID).Str("value", info.TransactionAmount.Value).Msg("paypal: skipping transaction with bad amount")
				continue
			}
			tx := Transaction{
				ID:        strings.TrimSpace(info.TransactionID),
				Amount:    amount,
				Currency:  info.TransactionAmount.CurrencyCode,
				Status:    info.TransactionStatus,
				GivenName: d.PayerInfo.PayerName.GivenName,
				FullName:  d.PayerInfo.PayerName.AlternateFullName,
				Email:     d.PayerInfo.EmailAddress,
			}
			if ts, err := parseTimestamp(info.TransactionInitiationDate); err == nil {
				tx.InitiatedAt = ts
			}
			out = append(out, tx)
		}
		if resp.TotalPages <= page {
			break
		}
		if page == maxPages {
			c.logger.Warn().
				Int("total_pages", resp.TotalPages).
				Int("max_pages", maxPages).
				Msg("paypal: transaction search truncated at page cap")
			break
		}
	}
	return out, nil
}

// PayPal reports timestamps as either RFC 3339 or with a "+0000" offset.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("paypal: unrecognised timestamp %q", raw)
}
