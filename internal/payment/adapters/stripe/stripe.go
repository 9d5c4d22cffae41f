// Package stripe adapts Stripe's webhook dialect onto the platform's
// subscription lifecycle events.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/rollcallhq/rollcall/internal/payment/domain"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
)

const providerName = "stripe"

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidProvider
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Provider() string { return providerName }

// Verify checks the Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<payload>" with the endpoint secret.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.ParsedEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event)
	case "invoice.paid":
		return a.parseInvoice(event, subscriptiondomain.EventInvoicePaid)
	case "invoice.payment_failed":
		return a.parseInvoice(event, subscriptiondomain.EventInvoiceFailed)
	case "customer.subscription.updated":
		return a.parseSubscription(event, subscriptiondomain.EventSubscriptionUpdated)
	case "customer.subscription.deleted":
		return a.parseSubscription(event, subscriptiondomain.EventSubscriptionDeleted)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Created           int64             `json:"created"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID       string            `json:"id"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
	Lines    struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Created            int64             `json:"created"`
	Metadata           map[string]string `json:"metadata"`
}

func (a *Adapter) parseCheckoutSession(event stripeEvent) (*paymentdomain.ParsedEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	ownerRaw := strings.TrimSpace(session.ClientReferenceID)
	if ownerRaw == "" {
		ownerRaw = session.Metadata["billing_owner_id"]
	}
	ownerID, err := parseOwner(ownerRaw)
	if err != nil {
		return nil, err
	}

	return &paymentdomain.ParsedEvent{
		ProviderEventID: event.ID,
		Event: subscriptiondomain.ProviderEvent{
			Type:           subscriptiondomain.EventCheckoutCompleted,
			BillingOwnerID: ownerID,
			PackageID:      session.Metadata["package_id"],
			OccurredAt:     timestamp(session.Created, event.Created),
		},
	}, nil
}

func (a *Adapter) parseInvoice(event stripeEvent, eventType subscriptiondomain.EventType) (*paymentdomain.ParsedEvent, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	ownerID, err := parseOwner(invoice.Metadata["billing_owner_id"])
	if err != nil {
		return nil, err
	}

	parsed := &paymentdomain.ParsedEvent{
		ProviderEventID: event.ID,
		Event: subscriptiondomain.ProviderEvent{
			Type:           eventType,
			BillingOwnerID: ownerID,
			OccurredAt:     timestamp(invoice.Created, event.Created),
		},
	}
	// A paid invoice opens the next billing period.
	if eventType == subscriptiondomain.EventInvoicePaid && len(invoice.Lines.Data) > 0 {
		period := invoice.Lines.Data[0].Period
		if period.Start > 0 && period.End > 0 {
			start := time.Unix(period.Start, 0).UTC()
			end := time.Unix(period.End, 0).UTC()
			parsed.Event.PeriodStart = &start
			parsed.Event.PeriodEnd = &end
		}
	}
	return parsed, nil
}

func (a *Adapter) parseSubscription(event stripeEvent, eventType subscriptiondomain.EventType) (*paymentdomain.ParsedEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	ownerID, err := parseOwner(sub.Metadata["billing_owner_id"])
	if err != nil {
		return nil, err
	}

	parsed := &paymentdomain.ParsedEvent{
		ProviderEventID: event.ID,
		Event: subscriptiondomain.ProviderEvent{
			Type:              eventType,
			BillingOwnerID:    ownerID,
			PackageID:         sub.Metadata["package_id"],
			CancelAtPeriodEnd: &sub.CancelAtPeriodEnd,
			OccurredAt:        timestamp(sub.Created, event.Created),
		},
	}
	if eventType == subscriptiondomain.EventSubscriptionUpdated {
		status, err := mapStatus(sub.Status)
		if err != nil {
			return nil, err
		}
		parsed.Event.Status = status
	}
	if sub.CurrentPeriodStart > 0 && sub.CurrentPeriodEnd > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		parsed.Event.PeriodStart = &start
		parsed.Event.PeriodEnd = &end
	}
	return parsed, nil
}

// mapStatus translates Stripe subscription statuses onto ours.
func mapStatus(status string) (subscriptiondomain.SubscriptionStatus, error) {
	switch strings.TrimSpace(status) {
	case "incomplete":
		return subscriptiondomain.StatusIncomplete, nil
	case "trialing":
		return subscriptiondomain.StatusTrialing, nil
	case "active":
		return subscriptiondomain.StatusActive, nil
	case "past_due":
		return subscriptiondomain.StatusPastDue, nil
	case "unpaid":
		return subscriptiondomain.StatusUnpaid, nil
	case "canceled", "incomplete_expired":
		return subscriptiondomain.StatusCanceled, nil
	default:
		return "", paymentdomain.ErrInvalidEvent
	}
}

func parseOwner(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, paymentdomain.ErrInvalidOwner
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrInvalidOwner
	}
	return id, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	var signatures []string
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		key, value, ok := strings.Cut(piece, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
