package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-notify/internal/models"
)

// DeliveryRepository stores the audit trail of attempted e-mails.
type DeliveryRepository interface {
	CreateBatch(ctx context.Context, deliveries []models.NotificationDelivery) error
	ListByDispatch(ctx context.Context, dispatchID string) ([]models.NotificationDelivery, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository constructs a repository backed by GORM.
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) CreateBatch(ctx context.Context, deliveries []models.NotificationDelivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&deliveries).Error
}

func (r *deliveryRepository) ListByDispatch(ctx context.Context, dispatchID string) ([]models.NotificationDelivery, error) {
	var deliveries []models.NotificationDelivery
	if err := r.db.WithContext(ctx).
		Where("dispatch_id = ?", dispatchID).
		Order("id ASC").
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}
