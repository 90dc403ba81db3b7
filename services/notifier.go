package services

import (
	"context"
	"encoding/json"
	"time"

	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"

	"go.uber.org/zap"
)

// Notifier delivers customer-facing notifications about order state.
// Calls are fire-and-forget from the caller's point of view: a failure must
// never affect the transaction that triggered it.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *models.Order) error
	OrderStatusChanged(ctx context.Context, order *models.Order, reason string) error
	PaymentFailed(ctx context.Context, order *models.Order) error
}

// SNSNotifier publishes order events to an SNS topic consumed by the
// notification service.
type SNSNotifier struct {
	sns      awspkg.SNSPublisher
	topicArn string
	logger   *zap.Logger
}

func NewSNSNotifier(sns awspkg.SNSPublisher, topicArn string, logger *zap.Logger) *SNSNotifier {
	return &SNSNotifier{sns: sns, topicArn: topicArn, logger: logger}
}

func (n *SNSNotifier) OrderConfirmed(ctx context.Context, order *models.Order) error {
	return n.publish(ctx, order, "order.confirmed", "")
}

func (n *SNSNotifier) OrderStatusChanged(ctx context.Context, order *models.Order, reason string) error {
	return n.publish(ctx, order, "order.status_changed", reason)
}

func (n *SNSNotifier) PaymentFailed(ctx context.Context, order *models.Order) error {
	return n.publish(ctx, order, "payment.failed", "")
}

func (n *SNSNotifier) publish(ctx context.Context, order *models.Order, eventType, reason string) error {
	payload, err := json.Marshal(models.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID.String(),
		Status:      string(order.Status),
		Reason:      reason,
		Amount:      order.TotalPrice.StringFixed(2),
		Currency:    order.Currency,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := n.sns.Publish(ctx, n.topicArn, payload); err != nil {
		return err
	}
	n.logger.Info("Order event published to SNS",
		zap.String("event_type", eventType),
		zap.String("order_id", order.ID.String()),
	)
	return nil
}
