package dto

import "github.com/shopspring/decimal"

type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int32  `json:"quantity" validate:"required,gte=1"`
}

type ShippingAddress struct {
	County   string `json:"county" validate:"required"`
	Area     string `json:"area" validate:"required"`
	Street   string `json:"street" validate:"required"`
	Building string `json:"building" validate:"required"`
	Landmark string `json:"landmark"`
}

type CreateOrderRequest struct {
	CustomerName  string              `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerEmail string              `json:"customer_email" validate:"required,email,max=255"`
	CustomerPhone string              `json:"customer_phone" validate:"required,min=9,max=20"`
	Shipping      ShippingAddress     `json:"shipping" validate:"required"`
	PaymentMethod string              `json:"payment_method" validate:"required,oneof=mpesa pay_on_delivery"`
	ReferralCode  string              `json:"referral_code" validate:"max=32"`
	Items         []*OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderResponse struct {
	OrderID           string               `json:"order_id"`
	PaymentMethod     string               `json:"payment_method"`
	PaymentStatus     string               `json:"payment_status"`
	PaymentReference  string               `json:"payment_reference,omitempty"`
	FulfillmentStatus string               `json:"fulfillment_status"`
	TotalAmount       decimal.Decimal      `json:"total_amount"`
	Items             []*OrderItemResponse `json:"items,omitempty"`
}

type PaymentStatusResponse struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

type STKPushRequest struct {
	OrderID          string          `json:"order_id" validate:"required"`
	Phone            string          `json:"phone" validate:"required,min=9,max=20"`
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	AccountReference string          `json:"account_reference" validate:"max=12"`
}

type STKPushResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

type UpdateFulfillmentRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}
