package services

import (
	"context"
	"errors"
	"time"

	"marketplace-service/models"
	"marketplace-service/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WebhookService reconciles the local ledger against processor webhook
// deliveries. Deliveries are at-least-once and may arrive concurrently or
// out of emission order, so every mutation is a conditional write and
// applying the same event twice converges to the same state.
type WebhookService struct {
	processor PaymentProcessor
	payments  repository.PaymentRepository
	orders    repository.OrderRepository
	notifier  Notifier
	logger    *zap.Logger
}

func NewWebhookService(
	processor PaymentProcessor,
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	notifier Notifier,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		processor: processor,
		payments:  payments,
		orders:    orders,
		notifier:  notifier,
		logger:    logger,
	}
}

// HandleEvent verifies and applies one webhook delivery. Only a signature
// failure is surfaced; processing problems are logged and acknowledged, so
// the processor does not redeliver events this service can never resolve.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.processor.VerifyEvent(payload, sigHeader)
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return err
	}

	s.logger.Info("Processing processor webhook",
		zap.String("event_type", event.Type),
		zap.String("kind", string(event.Kind)),
	)

	switch event.Kind {
	case EventSucceeded:
		s.applySucceeded(ctx, event)
	case EventFailed, EventCanceled:
		s.applyFailed(ctx, event)
	case EventRefunded:
		s.applyRefunded(ctx, event)
	default:
		s.logger.Info("Ignoring unhandled webhook event type",
			zap.String("event_type", event.Type),
		)
	}
	return nil
}

// lookupPayment resolves the processor reference. Unknown references are
// logged and swallowed: the processor will not usefully retry a reference
// this service will never resolve.
func (s *WebhookService) lookupPayment(ctx context.Context, event WebhookEvent) *models.Payment {
	if event.ProcessorPaymentID == "" {
		s.logger.Warn("Webhook event without processor payment reference",
			zap.String("event_type", event.Type),
		)
		return nil
	}
	payment, err := s.payments.FindByProcessorID(ctx, event.ProcessorPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("No payment found for processor reference",
				zap.String("processor_payment_id", event.ProcessorPaymentID),
				zap.String("event_type", event.Type),
			)
		} else {
			s.logger.Error("Failed to look up payment for webhook",
				zap.String("processor_payment_id", event.ProcessorPaymentID),
				zap.Error(err),
			)
		}
		return nil
	}
	return payment
}

func (s *WebhookService) applySucceeded(ctx context.Context, event WebhookEvent) {
	payment := s.lookupPayment(ctx, event)
	if payment == nil {
		return
	}
	if payment.Status == models.PaymentCompleted {
		s.logger.Info("Skipping duplicate succeeded webhook",
			zap.String("payment_id", payment.ID.String()),
		)
		return
	}

	order, applyOrder, err := s.planSystemTransition(ctx, payment, models.OrderConfirmed)
	if err != nil {
		return
	}

	now := time.Now()
	applied, err := s.payments.ApplyEvent(ctx, repository.StatusApplication{
		PaymentID:   payment.ID,
		PaymentFrom: []models.PaymentStatus{models.PaymentPending, models.PaymentProcessing},
		PaymentTo:   models.PaymentCompleted,
		PaidAt:      &now,
		ApplyOrder:  applyOrder,
		OrderID:     payment.OrderID,
		OrderFrom:   models.OrderPending,
		OrderTo:     models.OrderConfirmed,
	})
	if err != nil {
		s.logger.Error("Failed to apply succeeded webhook",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !applied {
		s.logger.Info("Succeeded webhook already applied",
			zap.String("payment_id", payment.ID.String()),
		)
		return
	}

	if order != nil {
		// Silent loss of a confirmation is a real business risk; the error
		// level here is what out-of-band alerting keys on.
		if err := s.notifier.OrderConfirmed(ctx, order); err != nil {
			s.logger.Error("Order confirmation notification failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *WebhookService) applyFailed(ctx context.Context, event WebhookEvent) {
	payment := s.lookupPayment(ctx, event)
	if payment == nil {
		return
	}
	if payment.Status == models.PaymentFailed {
		s.logger.Info("Skipping duplicate failed webhook",
			zap.String("payment_id", payment.ID.String()),
		)
		return
	}

	now := time.Now()
	applied, err := s.payments.ApplyEvent(ctx, repository.StatusApplication{
		PaymentID:   payment.ID,
		PaymentFrom: []models.PaymentStatus{models.PaymentPending, models.PaymentProcessing},
		PaymentTo:   models.PaymentFailed,
		FailedAt:    &now,
	})
	if err != nil {
		s.logger.Error("Failed to apply failed webhook",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !applied {
		return
	}

	if order, err := s.orders.FindByID(ctx, payment.OrderID); err == nil {
		if err := s.notifier.PaymentFailed(ctx, order); err != nil {
			s.logger.Error("Payment failure notification failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *WebhookService) applyRefunded(ctx context.Context, event WebhookEvent) {
	payment := s.lookupPayment(ctx, event)
	if payment == nil {
		return
	}
	if payment.Status == models.PaymentRefunded {
		s.logger.Info("Skipping duplicate refund webhook",
			zap.String("payment_id", payment.ID.String()),
		)
		return
	}

	order, applyOrder, err := s.planSystemTransition(ctx, payment, models.OrderRefunded)
	if err != nil {
		return
	}

	now := time.Now()
	applied, err := s.payments.ApplyEvent(ctx, repository.StatusApplication{
		PaymentID:   payment.ID,
		PaymentFrom: []models.PaymentStatus{models.PaymentCompleted},
		PaymentTo:   models.PaymentRefunded,
		RefundedAt:  &now,
		ApplyOrder:  applyOrder,
		OrderID:     payment.OrderID,
		OrderFrom:   models.OrderCompleted,
		OrderTo:     models.OrderRefunded,
	})
	if err != nil {
		s.logger.Error("Failed to apply refund webhook",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !applied {
		s.logger.Info("Refund webhook already applied",
			zap.String("payment_id", payment.ID.String()),
		)
		return
	}

	if order != nil {
		if err := s.notifier.OrderStatusChanged(ctx, order, "payment refunded"); err != nil {
			s.logger.Error("Refund notification failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// planSystemTransition runs the state machine as a system actor against the
// current order snapshot. When the order already moved past the expected
// pre-state the transition is skipped, which is the correct no-op for
// out-of-order deliveries; the conditional write re-checks the pre-state
// inside the transaction either way. A failed order load is a different
// animal: the caller must leave the payment untouched too, so the
// processor's redelivery retries the whole event instead of finding a
// half-applied one.
func (s *WebhookService) planSystemTransition(ctx context.Context, payment *models.Payment, target models.OrderStatus) (*models.Order, bool, error) {
	order, err := s.orders.FindByID(ctx, payment.OrderID)
	if err != nil {
		s.logger.Error("Failed to load order for webhook",
			zap.String("order_id", payment.OrderID.String()),
			zap.Error(err),
		)
		return nil, false, err
	}
	if err := Transition(order, target, SystemActor()); err != nil {
		return order, false, nil
	}
	return order, true, nil
}
