package services

import (
	"context"
	"errors"
	"time"

	"marketplace-service/apperrors"
	"marketplace-service/config"
	"marketplace-service/models"
	"marketplace-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	processorAttempts = 3
	processorTimeout  = 10 * time.Second
)

// PaymentIntentResponse is what the checkout frontend needs to confirm the
// charge. Whether the charge actually succeeds is learned later through the
// webhook reconciler, never from this call.
type PaymentIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"` // minor units
	Currency        string `json:"currency"`
}

// PaymentService opens processor payments for orders and keeps the local
// payment ledger consistent with the remote side.
type PaymentService struct {
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	processor PaymentProcessor
	rates     config.FeeRates
	logger    *zap.Logger
}

func NewPaymentService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	processor PaymentProcessor,
	rates config.FeeRates,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		orders:    orders,
		payments:  payments,
		processor: processor,
		rates:     rates,
		logger:    logger,
	}
}

// CreatePaymentIntent opens a processor payment for a pending order owned by
// the requesting client. The remote intent and the local payment row are two
// writes without a shared transaction: if the local persist fails after the
// remote open succeeded, the intent is cancelled as a compensating action.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, orderID, userID uuid.UUID) (*PaymentIntentResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if order.ClientID != userID {
		return nil, apperrors.ErrForbidden
	}
	if order.Status != models.OrderPending {
		return nil, apperrors.ErrOrderNotPayable
	}

	existing, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if existing != nil && existing.Status == models.PaymentCompleted {
		return nil, apperrors.ErrAlreadyPaid
	}

	amountMinor := order.TotalPrice.Mul(decimal.NewFromInt(100)).IntPart()
	metadata := map[string]string{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"client_id":    order.ClientID.String(),
	}

	intent, err := s.openIntentWithRetry(ctx, amountMinor, order.Currency, metadata)
	if err != nil {
		s.logger.Error("Failed to open payment intent",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		if IsTransientProcessorError(err) {
			return nil, apperrors.Wrap(apperrors.ErrProcessorUnavailable, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrProcessorRejected, err)
	}

	fees := CalculateFeeBreakdown(order.TotalPrice, s.rates)
	payment := existing
	if payment == nil || payment.Status.IsTerminal() {
		payment = &models.Payment{
			ID:      uuid.New(),
			OrderID: order.ID,
		}
	}
	payment.ProcessorPaymentID = &intent.ID
	payment.Amount = order.TotalPrice
	payment.PlatformFee = fees.PlatformFee
	payment.ProcessorFee = fees.ProcessorFee
	payment.VendorPayout = fees.VendorPayout
	payment.Currency = order.Currency
	payment.Status = models.PaymentProcessing

	if err := s.payments.Save(ctx, payment); err != nil {
		s.compensateIntent(ctx, intent.ID, order.ID)
		return nil, apperrors.Wrap(apperrors.ErrProcessorUnavailable, err)
	}

	s.logger.Info("Payment intent opened",
		zap.String("order_id", order.ID.String()),
		zap.String("processor_payment_id", intent.ID),
		zap.Int64("amount_minor", amountMinor),
	)

	return &PaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          amountMinor,
		Currency:        order.Currency,
	}, nil
}

// RefundPayment asks the processor to refund a completed payment. Admin
// only. The local ledger does not change here: the refund lands through the
// charge.refunded webhook like any other processor event.
func (s *PaymentService) RefundPayment(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if actor.Role != RoleAdmin {
		return apperrors.ErrForbidden
	}

	payment, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if payment == nil || payment.ProcessorPaymentID == nil {
		return apperrors.ErrPaymentNotFound
	}
	if payment.Status != models.PaymentCompleted {
		return apperrors.ErrConflict
	}

	rctx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	if err := s.processor.CreateRefund(rctx, *payment.ProcessorPaymentID); err != nil {
		s.logger.Error("Failed to create refund",
			zap.String("order_id", orderID.String()),
			zap.String("processor_payment_id", *payment.ProcessorPaymentID),
			zap.Error(err),
		)
		if IsTransientProcessorError(err) {
			return apperrors.Wrap(apperrors.ErrProcessorUnavailable, err)
		}
		return apperrors.Wrap(apperrors.ErrProcessorRejected, err)
	}

	s.logger.Info("Refund initiated",
		zap.String("order_id", orderID.String()),
		zap.String("processor_payment_id", *payment.ProcessorPaymentID),
	)
	return nil
}

// openIntentWithRetry retries transient processor failures a bounded number
// of times, each attempt under its own timeout.
func (s *PaymentService) openIntentWithRetry(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (ProcessorIntent, error) {
	var lastErr error
	for attempt := 1; attempt <= processorAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, processorTimeout)
		intent, err := s.processor.CreateIntent(attemptCtx, amountMinor, currency, metadata)
		cancel()
		if err == nil {
			return intent, nil
		}
		lastErr = err
		if !IsTransientProcessorError(err) {
			break
		}
		s.logger.Warn("Transient processor error, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return ProcessorIntent{}, lastErr
}

// compensateIntent cancels a remote intent whose local record could not be
// written. Best effort: its own failure is logged, not retried, because the
// intent will never be confirmed without a stored client secret.
func (s *PaymentService) compensateIntent(ctx context.Context, intentID string, orderID uuid.UUID) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processorTimeout)
	defer cancel()
	if err := s.processor.CancelIntent(cctx, intentID); err != nil {
		s.logger.Error("Compensating cancel of payment intent failed",
			zap.String("processor_payment_id", intentID),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("Cancelled remote payment intent after local persistence failure",
		zap.String("processor_payment_id", intentID),
		zap.String("order_id", orderID.String()),
	)
}
