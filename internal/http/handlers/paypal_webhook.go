package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vaultbot/internal/domain"
	"vaultbot/internal/middleware"
	"vaultbot/internal/providers/paypal"
)

// PayPalWebhook is the push feed. It acknowledges as soon as the candidate is
// queued and never waits for the reconciliation result.
func (a *App) PayPalWebhook(w http.ResponseWriter, r *http.Request) {
	logger := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody()))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	if !json.Valid(raw) {
		logger.Warn().Int("bytes", len(raw)).Msg("paypal webhook: malformed payload")
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	// Valid JSON is always acknowledged: PayPal would redeliver a body we can
	// never use for as long as we answer 4xx.
	evt, err := paypal.DecodeWebhookEvent(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("paypal webhook: unexpected envelope ignored")
		a.text(w, http.StatusOK, "OK")
		return
	}

	if a.Verifier != nil && a.WebhookID != "" {
		if err := a.Verifier.VerifyWebhookSignature(r.Context(), a.WebhookID, paypal.HeadersFrom(r.Header), raw); err != nil {
			if errors.Is(err, paypal.ErrSignatureRejected) {
				logger.Warn().Str("event_id", evt.ID).Msg("paypal webhook: signature rejected")
				a.error(w, http.StatusUnauthorized, "unauthorized", "signature verification failed")
				return
			}
			logger.Error().Err(err).Str("event_id", evt.ID).Msg("paypal webhook: signature verification unavailable")
			a.error(w, http.StatusServiceUnavailable, "unavailable", "signature verification unavailable")
			return
		}
	}

	if !evt.IsSaleCompleted() {
		logger.Debug().Str("event_type", evt.EventType).Msg("paypal webhook: event ignored")
		a.text(w, http.StatusOK, "OK")
		return
	}

	candidate, ok, err := saleCandidate(evt, a.now())
	if err != nil {
		logger.Warn().Err(err).Str("event_id", evt.ID).Msg("paypal webhook: unusable sale ignored")
		a.text(w, http.StatusOK, "OK")
		return
	}
	if !ok {
		logger.Info().Str("event_id", evt.ID).Msg("paypal webhook: non-positive amount ignored")
		a.text(w, http.StatusOK, "OK")
		return
	}
	if !candidate.HasIdentity() {
		logger.Warn().Msg("paypal webhook: sale without any id, announcing without dedup")
	}

	timeout := a.SubmitTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	switch err := a.Donations.Submit(ctx, candidate); {
	case err == nil:
		logger.Info().Str("transaction_id", candidate.TransactionID).Msg("paypal webhook: donation queued")
	case errors.Is(err, domain.ErrInvalidCandidate):
		logger.Warn().Err(err).Str("event_id", evt.ID).Msg("paypal webhook: candidate rejected")
	default:
		logger.Error().Err(err).Str("transaction_id", candidate.TransactionID).Msg("paypal webhook: queue unavailable")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "try again later")
		return
	}
	a.text(w, http.StatusOK, "OK")
}

// eventKeyPrefix marks ledger keys derived from the webhook envelope id, used
// when the sale itself carries no id.
const eventKeyPrefix = "evt:"

// saleCandidate builds the push candidate for a completed sale. ok is false
// when the amount is missing or not positive; err is set when the resource is
// not a sale object or its amount does not parse.
func saleCandidate(evt *paypal.WebhookEvent, now time.Time) (domain.Candidate, bool, error) {
	sale, err := evt.Sale()
	if err != nil {
		return domain.Candidate{}, false, err
	}
	total := strings.TrimSpace(sale.Amount.Total)
	if total == "" {
		return domain.Candidate{}, false, nil
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Candidate{}, false, fmt.Errorf("parse amount %q: %w", total, err)
	}
	if !amount.IsPositive() {
		return domain.Candidate{}, false, nil
	}
	id := strings.TrimSpace(sale.ID)
	if id == "" {
		if eventID := strings.TrimSpace(evt.ID); eventID != "" {
			id = eventKeyPrefix + eventID
		}
	}
	return domain.Candidate{
		Source:        domain.SourcePush,
		TransactionID: id,
		Amount:        amount,
		Currency:      strings.ToUpper(sale.Amount.Currency),
		DonorLabel:    sale.Payer.PayerInfo.FirstName,
		ObservedAt:    now,
	}, true, nil
}
