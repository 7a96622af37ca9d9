package repository

import (
	"context"
	"time"

	"mpesa-checkout/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	PaymentStatus(ctx context.Context, orderID string) (model.PaymentStatus, error)
	SetPaymentReference(ctx context.Context, orderID, reference string) error
	MarkPaidByReference(ctx context.Context, checkoutRequestID, receipt string) (int64, error)
	MarkFailedByReference(ctx context.Context, checkoutRequestID string) (int64, error)
	SetFulfillmentStatus(ctx context.Context, orderID string, status model.FulfillmentStatus) (int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) PaymentStatus(ctx context.Context, orderID string) (model.PaymentStatus, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Select("payment_status").
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return "", err
	}

	return order.PaymentStatus, nil
}

// SetPaymentReference records a freshly accepted push on the order. The
// status filter keeps the write off orders a callback has already settled:
// the callback for a prior push can land while a new push's gateway
// round-trip is still in flight, and a terminal status must never be
// reversed.
func (r *orderRepoImpl) SetPaymentReference(ctx context.Context, orderID, reference string) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			id = ?
			AND payment_status IN ?
		`,
			orderID,
			[]model.PaymentStatus{model.PaymentStatusUnpaid, model.PaymentStatusPending},
		).
		Updates(map[string]interface{}{
			"payment_reference": reference,
			"payment_status":    model.PaymentStatusPending,
			"updated_at":        time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// MarkPaidByReference settles the order matched by the CheckoutRequestID
// stored during STK push. The status filter makes the update monotonic and
// idempotent: a terminal order never matches, and after the first application
// the reference column holds the receipt so a replayed callback matches
// nothing. Returns the number of rows updated.
func (r *orderRepoImpl) MarkPaidByReference(ctx context.Context, checkoutRequestID, receipt string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			payment_reference = ?
			AND payment_status IN ?
		`,
			checkoutRequestID,
			[]model.PaymentStatus{model.PaymentStatusUnpaid, model.PaymentStatusPending},
		).
		Updates(map[string]interface{}{
			"payment_status":    model.PaymentStatusPaid,
			"payment_reference": receipt,
			"updated_at":        time.Now(),
		})

	return result.RowsAffected, result.Error
}

// MarkFailedByReference records a failed or cancelled payment. The reference
// column is left as is so the order stays findable by the same key.
func (r *orderRepoImpl) MarkFailedByReference(ctx context.Context, checkoutRequestID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			payment_reference = ?
			AND payment_status IN ?
		`,
			checkoutRequestID,
			[]model.PaymentStatus{model.PaymentStatusUnpaid, model.PaymentStatusPending},
		).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusFailed,
			"updated_at":     time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) SetFulfillmentStatus(ctx context.Context, orderID string, status model.FulfillmentStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"fulfillment_status": status,
			"updated_at":         time.Now(),
		})

	return result.RowsAffected, result.Error
}
