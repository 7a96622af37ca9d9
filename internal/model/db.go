package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodMpesa         PaymentMethod = "mpesa"
	PaymentMethodPayOnDelivery PaymentMethod = "pay_on_delivery"
)

// PaymentStatus transitions are one-way: unpaid -> pending -> paid | failed.
// paid and failed are terminal. The payment_reference column is never a
// settlement signal; only payment_status is.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

type Product struct {
	ID        string          `gorm:"primaryKey;size:64;not null"` // product sku
	Name      string          `gorm:"size:128;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"` // KES
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID     string `gorm:"primaryKey;size:36;not null"` // uuid
	UserID string `gorm:"size:36;index;not null"`

	CustomerName  string `gorm:"size:128"`
	CustomerEmail string `gorm:"size:255"`
	CustomerPhone string `gorm:"size:20"`

	ShippingAddress  string `gorm:"size:255"`
	ShippingCity     string `gorm:"size:64"` // county
	ShippingArea     string `gorm:"size:64"`
	ShippingBuilding string `gorm:"size:128"`
	ShippingLandmark string `gorm:"size:128"`

	PaymentMethod PaymentMethod `gorm:"size:16;not null"`
	PaymentStatus PaymentStatus `gorm:"size:16;index;not null"`

	// Holds the gateway CheckoutRequestID after STK push acceptance, then the
	// M-PESA receipt number after a success callback. Single lookup key for
	// callback matching across the whole lifecycle.
	PaymentReference string `gorm:"size:64;index"`

	FulfillmentStatus FulfillmentStatus `gorm:"size:16;index;not null"`
	TotalAmount       decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	ReferralCode      string            `gorm:"size:32"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK -> order.id
	OrderID string `gorm:"size:36;index;not null"`
	// FK -> product.id
	ProductID string `gorm:"size:64;index;not null"`
	Quantity  int32  `gorm:"not null"`
	// Price snapshot at order time. Catalog price changes never alter it.
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	CreatedAt time.Time
}
