package models

import "time"

// OrderEvent is the payload published to SNS and Kafka when an order or its
// payment changes state. Consumers: notification-service, analytics.
type OrderEvent struct {
	Type        string    `json:"type"` // "order.confirmed" | "order.status_changed" | "payment.failed"
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	ClientID    string    `json:"client_id"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Amount      string    `json:"amount,omitempty"` // decimal string, major units
	Currency    string    `json:"currency,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
