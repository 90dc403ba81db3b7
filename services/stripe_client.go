package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"marketplace-service/apperrors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeService implements PaymentProcessor on top of Stripe PaymentIntents.
type StripeService struct {
	SecretKey  string
	WebhookKey string
}

func NewStripeService(secretKey, webhookKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey}
}

func (s *StripeService) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (ProcessorIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return ProcessorIntent{}, classifyStripeError(err)
	}
	return ProcessorIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *StripeService) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := paymentintent.Cancel(id, params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

func (s *StripeService) CreateRefund(ctx context.Context, id string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(id),
	}
	params.Context = ctx
	if _, err := refund.New(params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

// VerifyEvent checks the Stripe-Signature header against the endpoint secret
// and normalizes the event. Event types this service does not reconcile come
// back as EventIgnored, never as an error.
func (s *StripeService) VerifyEvent(payload []byte, sigHeader string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
	if err != nil {
		return WebhookEvent{}, apperrors.Wrap(apperrors.ErrSignatureInvalid, err)
	}

	out := WebhookEvent{Type: string(event.Type), Kind: EventIgnored}
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return out, nil
		}
		out.ProcessorPaymentID = pi.ID
		switch event.Type {
		case "payment_intent.succeeded":
			out.Kind = EventSucceeded
		case "payment_intent.payment_failed":
			out.Kind = EventFailed
		case "payment_intent.canceled":
			out.Kind = EventCanceled
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return out, nil
		}
		if ch.PaymentIntent != nil {
			out.ProcessorPaymentID = ch.PaymentIntent.ID
			out.Kind = EventRefunded
		}
	}
	return out, nil
}

// classifyStripeError treats network failures, rate limits and Stripe 5xx as
// transient; everything the API knowingly rejected is permanent.
func classifyStripeError(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		transient := sErr.HTTPStatusCode >= http.StatusInternalServerError ||
			sErr.HTTPStatusCode == http.StatusTooManyRequests
		return &ProcessorError{Transient: transient, Err: err}
	}
	return &ProcessorError{Transient: true, Err: err}
}
