package repository

import (
	"context"

	"marketplace-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServiceListingRepository is the read-only slice of the catalog this
// service needs: price snapshots at checkout and vendor ownership checks.
type ServiceListingRepository interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ServiceListing, error)
	VendorOwnsAny(ctx context.Context, vendorID uuid.UUID, serviceIDs []uuid.UUID) (bool, error)
}

type GormServiceListingRepository struct {
	db *gorm.DB
}

func NewGormServiceListingRepository(db *gorm.DB) ServiceListingRepository {
	return &GormServiceListingRepository{db: db}
}

func (r *GormServiceListingRepository) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ServiceListing, error) {
	var listings []models.ServiceListing
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ?", ids, true).
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *GormServiceListingRepository) VendorOwnsAny(ctx context.Context, vendorID uuid.UUID, serviceIDs []uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ServiceListing{}).
		Where("vendor_id = ? AND id IN ?", vendorID, serviceIDs).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
