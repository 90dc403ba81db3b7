package repository

import (
	"context"
	"errors"
	"time"

	"marketplace-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusApplication describes one webhook event applied to a payment and,
// optionally, its order. The payment update is conditional on the expected
// pre-states; the order update is conditional on its own pre-state and runs
// in the same transaction, so the two can never be observed half-applied.
type StatusApplication struct {
	PaymentID   uuid.UUID
	PaymentFrom []models.PaymentStatus
	PaymentTo   models.PaymentStatus
	PaidAt      *time.Time
	FailedAt    *time.Time
	RefundedAt  *time.Time

	ApplyOrder bool
	OrderID    uuid.UUID
	OrderFrom  models.OrderStatus
	OrderTo    models.OrderStatus
}

type PaymentRepository interface {
	Save(ctx context.Context, payment *models.Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProcessorID(ctx context.Context, processorPaymentID string) (*models.Payment, error)
	// ApplyEvent applies a StatusApplication atomically. Returns false when
	// the payment was not in any of the expected pre-states: either the
	// event was already applied or a concurrent delivery won the race.
	// Both cases are benign for at-least-once webhook processing.
	ApplyEvent(ctx context.Context, app StatusApplication) (bool, error)
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// FindByOrderID returns the most recent payment for the order, or nil when
// none exists yet.
func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindByProcessorID(ctx context.Context, processorPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("processor_payment_id = ?", processorPaymentID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) ApplyEvent(ctx context.Context, app StatusApplication) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     app.PaymentTo,
			"updated_at": time.Now(),
		}
		if app.PaidAt != nil {
			updates["paid_at"] = app.PaidAt
		}
		if app.FailedAt != nil {
			updates["failed_at"] = app.FailedAt
		}
		if app.RefundedAt != nil {
			updates["refunded_at"] = app.RefundedAt
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", app.PaymentID, app.PaymentFrom).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if app.ApplyOrder {
			// Zero rows here is fine: the order already moved past the
			// expected pre-state through another path.
			res := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", app.OrderID, app.OrderFrom).
				Updates(map[string]interface{}{
					"status":     app.OrderTo,
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
