package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/Prat011/free-cluely-sub000/pkg/plans"
)

// PaddleSignatureHeader carries the webhook signature.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for the Paddle webhook receiver.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// UserIDField is the custom_data key holding the product user id.
	UserIDField string `env:"PADDLE_USER_ID_FIELD" envDefault:"user_id"`
}

// PaddleProvider verifies Paddle webhooks and normalizes them into Events.
type PaddleProvider struct {
	verifier    *paddle.WebhookVerifier
	userIDField string
}

// NewPaddleProvider creates a Paddle webhook receiver.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	switch strings.ToLower(cfg.Environment) {
	case "sandbox", "production", "":
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnv, cfg.Environment)
	}

	field := cfg.UserIDField
	if field == "" {
		field = "user_id"
	}
	return &PaddleProvider{
		verifier:    paddle.NewWebhookVerifier(cfg.WebhookSecret),
		userIDField: field,
	}, nil
}

// ParseWebhookRequest verifies the request signature and normalizes its body.
// The request body is restored so callers may read it again.
func (p *PaddleProvider) ParseWebhookRequest(req *http.Request) (*Event, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	return p.ParseWebhook(req.Context(), body, req.Header.Get(PaddleSignatureHeader))
}

// ParseWebhook verifies signature over payload and normalizes the event. Paddle
// events with no engine equivalent yield an Event with an empty Name.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set(PaddleSignatureHeader, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var envelope paddleEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	var data paddleData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, errors.Join(ErrInvalidWebhookPayload, err)
		}
	}

	return p.normalize(envelope, data), nil
}

type paddleEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleData struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"`
	Status         string         `json:"status"`
	CustomerID     string         `json:"customer_id"`
	CustomData     map[string]any `json:"custom_data"`
	Items          []struct {
		PriceID string `json:"price_id"`
		Price   *struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	BillingCycle *struct {
		Interval  string `json:"interval"`
		Frequency int    `json:"frequency"`
	} `json:"billing_cycle"`
	NextBilledAt    *time.Time `json:"next_billed_at"`
	CanceledAt      *time.Time `json:"canceled_at"`
	ScheduledChange *struct {
		Action      string    `json:"action"`
		EffectiveAt time.Time `json:"effective_at"`
	} `json:"scheduled_change"`
	BillingPeriod *struct {
		EndsAt time.Time `json:"ends_at"`
	} `json:"billing_period"`
}

func (p *PaddleProvider) normalize(env paddleEnvelope, d paddleData) *Event {
	ev := &Event{
		ID:            env.EventID,
		Name:          mapPaddleEventType(env.EventType),
		ProviderEvent: env.EventType,
		Payload: Payload{
			CustomerID: d.CustomerID,
			OccurredAt: env.OccurredAt,
		},
	}

	if raw, ok := d.CustomData[p.userIDField].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			ev.Payload.UserID = id
		}
	}
	if len(d.Items) > 0 {
		ev.Payload.PriceID = d.Items[0].PriceID
		if d.Items[0].Price != nil && d.Items[0].Price.ID != "" {
			ev.Payload.PriceID = d.Items[0].Price.ID
		}
	}

	switch {
	case strings.HasPrefix(env.EventType, "subscription."):
		ev.ProviderSubscriptionID = d.ID
		ev.Payload.Status = mapPaddleStatus(d.Status)
		ev.Payload.RenewAt = d.NextBilledAt
		if d.BillingCycle != nil {
			ev.Payload.Interval = mapPaddleInterval(d.BillingCycle.Interval)
		}
		if d.ScheduledChange != nil && d.ScheduledChange.Action == "cancel" {
			at := d.ScheduledChange.EffectiveAt
			ev.Payload.CancelAt = &at
		} else if d.CanceledAt != nil {
			ev.Payload.CancelAt = d.CanceledAt
		}
	case strings.HasPrefix(env.EventType, "transaction."):
		ev.ProviderSubscriptionID = d.SubscriptionID
		if d.BillingPeriod != nil && !d.BillingPeriod.EndsAt.IsZero() {
			at := d.BillingPeriod.EndsAt
			ev.Payload.RenewAt = &at
		}
		if ev.ProviderSubscriptionID == "" {
			// one-off purchase, not a subscription event
			ev.Name = ""
		}
	}

	return ev
}

// mapPaddleEventType maps Paddle event types to engine event names. Unmapped
// types yield an empty name.
func mapPaddleEventType(paddleEvent string) EventName {
	switch paddleEvent {
	case "subscription.created":
		return EventCreated
	case "subscription.updated", "subscription.activated", "subscription.trialing":
		return EventUpdated
	case "subscription.canceled":
		return EventCancelled
	case "subscription.paused":
		return EventPaused
	case "subscription.resumed":
		return EventUnpaused
	case "subscription.past_due", "transaction.payment_failed":
		return EventPaymentFailed
	case "transaction.completed":
		return EventPaymentSucceeded
	default:
		return ""
	}
}

// mapPaddleStatus maps a Paddle subscription status. Unknown values yield an
// empty status so the stored one is kept.
func mapPaddleStatus(paddleStatus string) Status {
	switch strings.ToLower(paddleStatus) {
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due":
		return StatusPastDue
	case "paused":
		return StatusPaused
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return ""
	}
}

func mapPaddleInterval(interval string) plans.Interval {
	switch strings.ToLower(interval) {
	case "month":
		return plans.IntervalMonthly
	case "year":
		return plans.IntervalYearly
	default:
		return ""
	}
}
