package services_test

import (
	"context"
	"errors"
	"testing"

	"marketplace-service/models"
	"marketplace-service/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type webhookFixture struct {
	orders    *mockOrderRepo
	payments  *mockPaymentRepo
	processor *mockProcessor
	notifier  *mockNotifier
	svc       *services.WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	orders := newMockOrderRepo()
	payments := newMockPaymentRepo(orders)
	processor := &mockProcessor{}
	notifier := &mockNotifier{}
	logger, _ := zap.NewDevelopment()
	return &webhookFixture{
		orders:    orders,
		payments:  payments,
		processor: processor,
		notifier:  notifier,
		svc:       services.NewWebhookService(processor, payments, orders, notifier, logger),
	}
}

// seed creates an order and its in-flight payment, returning both.
func (f *webhookFixture) seed(orderStatus models.OrderStatus, paymentStatus models.PaymentStatus) (*models.Order, *models.Payment) {
	order := &models.Order{
		ID:         uuid.New(),
		ClientID:   uuid.New(),
		TotalPrice: dec("357.00"),
		Currency:   "eur",
		Status:     orderStatus,
	}
	_ = f.orders.Create(context.Background(), order)

	ref := "pi_" + order.ID.String()[:8]
	payment := &models.Payment{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		ProcessorPaymentID: &ref,
		Amount:             order.TotalPrice,
		Currency:           order.Currency,
		Status:             paymentStatus,
	}
	_ = f.payments.Save(context.Background(), payment)
	return order, payment
}

func (f *webhookFixture) deliver(kind services.WebhookEventKind, ref string) error {
	f.processor.event = services.WebhookEvent{
		Kind:               kind,
		Type:               "payment_intent." + string(kind),
		ProcessorPaymentID: ref,
	}
	return f.svc.HandleEvent(context.Background(), []byte(`{}`), "sig")
}

func TestHandleEvent_SucceededConfirmsOrder(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderPending, models.PaymentProcessing)

	err := f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.NotNil(t, got.PaidAt)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderConfirmed, updated.Status)
	assert.Equal(t, 1, f.notifier.confirmed)
}

func TestHandleEvent_SucceededIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderPending, models.PaymentProcessing)

	assert.NoError(t, f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID))
	assert.NoError(t, f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID))
	assert.NoError(t, f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID))

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentCompleted, got.Status)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderConfirmed, updated.Status)
	assert.Equal(t, 1, f.notifier.confirmed, "redeliveries must not renotify")
}

func TestHandleEvent_FailedMarksPayment(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderPending, models.PaymentProcessing)

	err := f.deliver(services.EventFailed, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentFailed, got.Status)
	assert.NotNil(t, got.FailedAt)

	// The order stays pending so the client can retry payment.
	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderPending, updated.Status)
	assert.Equal(t, 1, f.notifier.paymentFailed)
}

func TestHandleEvent_CanceledTreatedAsFailure(t *testing.T) {
	f := newWebhookFixture(t)
	_, payment := f.seed(models.OrderPending, models.PaymentProcessing)

	err := f.deliver(services.EventCanceled, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentFailed, got.Status)
}

func TestHandleEvent_RefundFromCompleted(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderCompleted, models.PaymentCompleted)

	err := f.deliver(services.EventRefunded, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentRefunded, got.Status)
	assert.NotNil(t, got.RefundedAt)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderRefunded, updated.Status)
	assert.Equal(t, 1, f.notifier.statusChanged)
}

func TestHandleEvent_RefundBeforeCompletionIsNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderPending, models.PaymentProcessing)

	err := f.deliver(services.EventRefunded, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	// An out-of-order refund for a payment that never completed changes nothing.
	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentProcessing, got.Status)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderPending, updated.Status)
	assert.Zero(t, f.notifier.statusChanged)
}

func TestHandleEvent_RefundIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	_, payment := f.seed(models.OrderCompleted, models.PaymentCompleted)

	assert.NoError(t, f.deliver(services.EventRefunded, *payment.ProcessorPaymentID))
	assert.NoError(t, f.deliver(services.EventRefunded, *payment.ProcessorPaymentID))

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentRefunded, got.Status)
	assert.Equal(t, 1, f.notifier.statusChanged)
}

func TestHandleEvent_UnknownReferenceAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.deliver(services.EventSucceeded, "pi_unknown")

	assert.NoError(t, err, "unknown references are logged, never bounced back to the processor")
	assert.Zero(t, f.notifier.confirmed)
}

func TestHandleEvent_SignatureFailure(t *testing.T) {
	f := newWebhookFixture(t)
	f.processor.verifyErr = errors.New("signature mismatch")

	err := f.svc.HandleEvent(context.Background(), []byte(`{}`), "bad-sig")

	assert.Error(t, err)
	assert.Zero(t, f.notifier.confirmed)
}

func TestHandleEvent_IgnoredKind(t *testing.T) {
	f := newWebhookFixture(t)
	_, payment := f.seed(models.OrderPending, models.PaymentProcessing)

	err := f.deliver(services.EventIgnored, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentProcessing, got.Status)
}

func TestHandleEvent_SucceededWhenOrderAlreadyConfirmed(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderConfirmed, models.PaymentProcessing)

	err := f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	// Payment still converges even though the order moved on already.
	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentCompleted, got.Status)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderConfirmed, updated.Status)
}

func TestHandleEvent_OrderLoadFailureLeavesPaymentUntouched(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderPending, models.PaymentProcessing)
	f.orders.findErr = errors.New("connection reset")

	err := f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	// The payment must not settle while the order is unreadable, or the
	// status check would turn every redelivery into a no-op.
	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentProcessing, got.Status)
	assert.Zero(t, f.notifier.confirmed)

	f.orders.findErr = nil
	assert.NoError(t, f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID))

	got, _ = f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentCompleted, got.Status)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderConfirmed, updated.Status)
	assert.Equal(t, 1, f.notifier.confirmed, "redelivery after the blip must finish the whole event")
}

func TestHandleEvent_OrderLoadFailureLeavesRefundUntouched(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seed(models.OrderCompleted, models.PaymentCompleted)
	f.orders.findErr = errors.New("connection reset")

	err := f.deliver(services.EventRefunded, *payment.ProcessorPaymentID)
	assert.NoError(t, err)

	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentCompleted, got.Status)

	f.orders.findErr = nil
	assert.NoError(t, f.deliver(services.EventRefunded, *payment.ProcessorPaymentID))

	got, _ = f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentRefunded, got.Status)

	updated, _ := f.orders.FindByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderRefunded, updated.Status)
	assert.Equal(t, 1, f.notifier.statusChanged)
}

func TestHandleEvent_NotifierFailureDoesNotSurface(t *testing.T) {
	f := newWebhookFixture(t)
	_, payment := f.seed(models.OrderPending, models.PaymentProcessing)
	f.notifier.err = errors.New("sns unavailable")

	err := f.deliver(services.EventSucceeded, *payment.ProcessorPaymentID)

	assert.NoError(t, err)
	got, _ := f.payments.FindByProcessorID(context.Background(), *payment.ProcessorPaymentID)
	assert.Equal(t, models.PaymentCompleted, got.Status, "ledger update must survive a notification failure")
}
