package service

import (
	"context"
	"fmt"
	"strings"

	"mpesa-checkout/internal/dto"
	"mpesa-checkout/internal/model"
	"mpesa-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderService interface {
	Create(ctx context.Context, userID string, req *dto.CreateOrderRequest) (*dto.OrderResponse, error)
	Get(ctx context.Context, userID, orderID string) (*dto.OrderResponse, error)
	ListByUser(ctx context.Context, userID string) ([]*dto.OrderResponse, error)
	PaymentStatus(ctx context.Context, orderID string) (model.PaymentStatus, error)
	UpdateFulfillment(ctx context.Context, orderID string, status model.FulfillmentStatus) error
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		productRepo: productRepo,
	}
}

// Create persists the order and its lines in one transaction, before any
// payment attempt. The total is recomputed from catalog prices, and each line
// keeps a unit-price snapshot so later price changes never touch the order.
func (s *orderServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	productIDs := make([]string, len(req.Items))
	itemQuantityMap := make(map[string]int32)
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item quantity must be positive")
		}
		productIDs[i] = item.ProductID
		itemQuantityMap[item.ProductID] = item.Quantity
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	if len(products) != len(req.Items) {
		return nil, fmt.Errorf("some products not found")
	}

	orderID := uuid.NewString()

	totalAmount := decimal.Zero
	orderItems := make([]*model.OrderItem, len(products))
	for i, product := range products {
		quantity := itemQuantityMap[product.ID]
		totalAmount = totalAmount.Add(product.Price.Mul(decimal.NewFromInt32(quantity)))

		orderItems[i] = &model.OrderItem{
			OrderID:   orderID,
			ProductID: product.ID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}
	}

	order := &model.Order{
		ID:            orderID,
		UserID:        userID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ShippingAddress: strings.Join(nonEmpty(
			req.Shipping.Street, req.Shipping.Building,
		), ", "),
		ShippingCity:      req.Shipping.County,
		ShippingArea:      req.Shipping.Area,
		ShippingBuilding:  req.Shipping.Building,
		ShippingLandmark:  req.Shipping.Landmark,
		PaymentMethod:     model.PaymentMethod(req.PaymentMethod),
		PaymentStatus:     model.PaymentStatusUnpaid,
		FulfillmentStatus: model.FulfillmentPending,
		TotalAmount:       totalAmount,
		ReferralCode:      req.ReferralCode,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}

		if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orderResponse(order, orderItems), nil
}

func (s *orderServiceImpl) Get(ctx context.Context, userID, orderID string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}

	items, err := s.orderRepo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	return orderResponse(order, items), nil
}

func (s *orderServiceImpl) ListByUser(ctx context.Context, userID string) ([]*dto.OrderResponse, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	responses := make([]*dto.OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = orderResponse(order, nil)
	}

	return responses, nil
}

func (s *orderServiceImpl) PaymentStatus(ctx context.Context, orderID string) (model.PaymentStatus, error) {
	return s.orderRepo.PaymentStatus(ctx, orderID)
}

// validFulfillmentTransitions is the closed set of allowed moves. Cancellation
// is only possible before shipping.
var validFulfillmentTransitions = map[model.FulfillmentStatus][]model.FulfillmentStatus{
	model.FulfillmentPending:    {model.FulfillmentProcessing, model.FulfillmentCancelled},
	model.FulfillmentProcessing: {model.FulfillmentShipped, model.FulfillmentCancelled},
	model.FulfillmentShipped:    {model.FulfillmentDelivered},
}

func (s *orderServiceImpl) UpdateFulfillment(ctx context.Context, orderID string, status model.FulfillmentStatus) error {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}

	allowed := false
	for _, next := range validFulfillmentTransitions[order.FulfillmentStatus] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid fulfillment transition %s -> %s", order.FulfillmentStatus, status)
	}

	affected, err := s.orderRepo.SetFulfillmentStatus(ctx, orderID, status)
	if err != nil {
		return fmt.Errorf("update fulfillment status: %w", err)
	}
	if affected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func orderResponse(order *model.Order, items []*model.OrderItem) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		OrderID:           order.ID,
		PaymentMethod:     string(order.PaymentMethod),
		PaymentStatus:     string(order.PaymentStatus),
		PaymentReference:  order.PaymentReference,
		FulfillmentStatus: string(order.FulfillmentStatus),
		TotalAmount:       order.TotalAmount,
	}

	for _, item := range items {
		resp.Items = append(resp.Items, &dto.OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return resp
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
