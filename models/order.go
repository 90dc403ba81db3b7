package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// Order is the durable record created by checkout. Items carry a price
// snapshot taken at order time; later catalog changes never touch them.
// Orders are never physically deleted — terminal states are kept for audit.
type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string          `gorm:"uniqueIndex;not null" json:"order_number"`
	ClientID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ScheduledDate *time.Time      `json:"scheduled_date,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ServiceID   uuid.UUID       `gorm:"type:uuid;not null" json:"service_id"`
	ServiceName string          `gorm:"not null" json:"service_name"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
}

// ServiceListing is the read model of a vendor's catalog entry, used to
// snapshot name and price at checkout and to check vendor ownership on
// status transitions. Catalog CRUD lives elsewhere.
type ServiceListing struct {
	ID       uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VendorID uuid.UUID       `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Name     string          `gorm:"not null" json:"name"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Active   bool            `gorm:"not null;default:true" json:"active"`
}
