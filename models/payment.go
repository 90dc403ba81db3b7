package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Payment tracks one processor-side payment attempt for an order.
// ProcessorPaymentID stays nil until the intent is opened remotely.
// Invariant: PlatformFee + ProcessorFee + VendorPayout == Amount.
type Payment struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProcessorPaymentID *string         `gorm:"uniqueIndex" json:"processor_payment_id,omitempty"`
	Amount             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PlatformFee        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"platform_fee"`
	ProcessorFee       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"processor_fee"`
	VendorPayout       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"vendor_payout"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status             PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	FailedAt           *time.Time      `json:"failed_at,omitempty"`
	RefundedAt         *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the payment can no longer change state,
// except for the explicit completed -> refunded path.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentFailed || p == PaymentRefunded
}
