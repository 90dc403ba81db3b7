package services

import (
	"context"
	"errors"
	"fmt"
)

// ProcessorIntent is the processor-side payment attempt opened for an order.
// ClientSecret is the token the frontend uses to confirm the charge.
type ProcessorIntent struct {
	ID           string
	ClientSecret string
}

type WebhookEventKind string

const (
	EventSucceeded WebhookEventKind = "succeeded"
	EventFailed    WebhookEventKind = "failed"
	EventCanceled  WebhookEventKind = "canceled"
	EventRefunded  WebhookEventKind = "refunded"
	EventIgnored   WebhookEventKind = "ignored"
)

// WebhookEvent is a processor webhook delivery normalized to the few kinds
// this service reconciles. Type keeps the raw processor event name for logs.
type WebhookEvent struct {
	Kind               WebhookEventKind
	Type               string
	ProcessorPaymentID string
}

// PaymentProcessor is the port to the external payment service.
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (ProcessorIntent, error)
	CancelIntent(ctx context.Context, id string) error
	CreateRefund(ctx context.Context, id string) error
	VerifyEvent(payload []byte, sigHeader string) (WebhookEvent, error)
}

// ProcessorError classifies processor failures so the orchestrator retries
// only what is worth retrying.
type ProcessorError struct {
	Transient bool
	Err       error
}

func (e *ProcessorError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient processor error: %v", e.Err)
	}
	return fmt.Sprintf("processor error: %v", e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

func IsTransientProcessorError(err error) bool {
	var pErr *ProcessorError
	return errors.As(err, &pErr) && pErr.Transient
}
