package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/providers/paypal"
	"vaultbot/internal/providers/telegram"
)

const defaultMaxBody = 1 << 20

// DonationSubmitter hands push candidates to the reconciliation pipeline.
type DonationSubmitter interface {
	Submit(ctx context.Context, c domain.Candidate) error
}

// SignatureVerifier confirms a webhook delivery with the processor.
type SignatureVerifier interface {
	VerifyWebhookSignature(ctx context.Context, webhookID string, headers paypal.TransmissionHeaders, rawEvent []byte) error
}

// CommandHandler answers chat commands.
type CommandHandler interface {
	Handle(ctx context.Context, msg *telegram.IncomingMessage) error
}

type App struct {
	Logger    infra.Logger
	Donations DonationSubmitter
	Commands  CommandHandler
	Gatherer  prometheus.Gatherer

	// Verifier and WebhookID enable PayPal signature checks when both are set.
	Verifier  SignatureVerifier
	WebhookID string

	TelegramSecret string
	SubmitTimeout  time.Duration
	MaxBodyBytes   int64
	Now            func() time.Time
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

func (a *App) text(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func (a *App) maxBody() int64 {
	if a.MaxBodyBytes > 0 {
		return a.MaxBodyBytes
	}
	return defaultMaxBody
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
