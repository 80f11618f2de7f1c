package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// EventSaleCompleted is the only webhook event that produces an announcement.
const EventSaleCompleted = "PAYMENT.SALE.COMPLETED"

// ErrSignatureRejected is returned when PayPal does not vouch for a webhook delivery.
var ErrSignatureRejected = errors.New("paypal: webhook signature rejected")

// WebhookEvent is the envelope PayPal posts to the webhook listener.
type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   string          `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

// SaleResource is the resource object of a sale event.
type SaleResource struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Amount struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Payer struct {
		PayerInfo struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Email     string `json:"email"`
		} `json:"payer_info"`
	} `json:"payer"`
}

// IsSaleCompleted reports whether the event is a completed sale.
func (e *WebhookEvent) IsSaleCompleted() bool {
	return e.EventType == EventSaleCompleted
}

// Sale decodes the resource as a sale. The envelope is decoded without it so
// an event with an unexpected resource shape still parses.
func (e *WebhookEvent) Sale() (SaleResource, error) {
	var sale SaleResource
	if len(e.Resource) == 0 || string(e.Resource) == "null" {
		return sale, nil
	}
	if err := json.Unmarshal(e.Resource, &sale); err != nil {
		return SaleResource{}, fmt.Errorf("paypal: decode sale resource: %w", err)
	}
	return sale, nil
}

// DecodeWebhookEvent parses a raw webhook body.
func DecodeWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("paypal: decode webhook event: %w", err)
	}
	return &evt, nil
}

// TransmissionHeaders are the PAYPAL-* headers sent with each webhook delivery.
type TransmissionHeaders struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}

// HeadersFrom extracts the transmission headers from a request.
func HeadersFrom(h http.Header) TransmissionHeaders {
	return TransmissionHeaders{
		AuthAlgo:         h.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          h.Get("PAYPAL-CERT-URL"),
		TransmissionID:   h.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  h.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: h.Get("PAYPAL-TRANSMISSION-TIME"),
	}
}

// Complete reports whether every header needed for verification is present.
func (h TransmissionHeaders) Complete() bool {
	for _, v := range []string{h.AuthAlgo, h.CertURL, h.TransmissionID, h.TransmissionSig, h.TransmissionTime} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature asks PayPal whether the delivery is authentic.
// A delivery PayPal rejects yields ErrSignatureRejected; any other error means
// verification could not be performed.
func (c *Client) VerifyWebhookSignature(ctx context.Context, webhookID string, headers TransmissionHeaders, rawEvent []byte) error {
	if !headers.Complete() {
		return ErrSignatureRejected
	}
	if !json.Valid(rawEvent) {
		return fmt.Errorf("paypal: webhook event is not valid json")
	}
	payload := verifyRequest{
		AuthAlgo:         headers.AuthAlgo,
		CertURL:          headers.CertURL,
		TransmissionID:   headers.TransmissionID,
		TransmissionSig:  headers.TransmissionSig,
		TransmissionTime: headers.TransmissionTime,
		WebhookID:        webhookID,
		WebhookEvent:     json.RawMessage(rawEvent),
	}
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", nil, payload, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.VerificationStatus, "SUCCESS") {
		return ErrSignatureRejected
	}
	return nil
}
