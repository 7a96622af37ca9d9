// Package checkout drives the client side of placing an order and waiting for
// its mobile-money payment to settle. The server confirms payment out-of-band
// through the gateway webhook; this orchestrator only ever observes the
// order's payment status, it never decides it.
package checkout

import (
	"context"
	"fmt"
	"time"

	"mpesa-checkout/internal/dto"
	"mpesa-checkout/internal/model"
)

type State string

const (
	StateIdle         State = "idle"
	StateOrderCreated State = "order_created"
	StatePending      State = "pending"
	StatePolling      State = "polling"
	StateSuccess      State = "success"
	StateFailed       State = "failed"
	// StateTimedOut means no terminal status was observed within the poll
	// budget. Not the same as failed: the payment may still settle later.
	StateTimedOut State = "timed_out"
	// StateUnconfirmed means the push could not be initiated. The order exists
	// and stays visible to the user.
	StateUnconfirmed State = "unconfirmed"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 24 // 24 x 5s = 2 minutes
)

type CartItem struct {
	ProductID string
	Quantity  int32
}

// Cart is the in-memory cart owned by the UI layer.
type Cart interface {
	Items() []CartItem
	Clear()
}

type OrderPlacer interface {
	Create(ctx context.Context, userID string, req *dto.CreateOrderRequest) (*dto.OrderResponse, error)
}

type PaymentInitiator interface {
	InitiateSTKPush(ctx context.Context, req *dto.STKPushRequest) (*dto.STKPushResponse, error)
}

type StatusReader interface {
	PaymentStatus(ctx context.Context, orderID string) (model.PaymentStatus, error)
}

// Hooks carries the user-facing side effects of each terminal transition.
type Hooks interface {
	OrderPlaced(orderID string)      // pay-on-delivery order accepted
	PaymentConfirmed(orderID string) // navigate to confirmation
	PaymentFailed(orderID string)    // navigate to order status, retry possible
	PaymentPending(orderID string)   // timed out waiting; order may still settle
	OrderUnconfirmed(orderID string) // push initiation failed; order kept
}

type nopHooks struct{}

func (nopHooks) OrderPlaced(string)      {}
func (nopHooks) PaymentConfirmed(string) {}
func (nopHooks) PaymentFailed(string)    {}
func (nopHooks) PaymentPending(string)   {}
func (nopHooks) OrderUnconfirmed(string) {}

type Result struct {
	State   State
	OrderID string
	Polls   int
}

type Orchestrator struct {
	orders   OrderPlacer
	payments PaymentInitiator
	status   StatusReader
	cart     Cart
	hooks    Hooks

	PollInterval time.Duration
	MaxPolls     int

	state State
}

func NewOrchestrator(
	orders OrderPlacer,
	payments PaymentInitiator,
	status StatusReader,
	cart Cart,
	hooks Hooks,
) *Orchestrator {
	if hooks == nil {
		hooks = nopHooks{}
	}
	return &Orchestrator{
		orders:       orders,
		payments:     payments,
		status:       status,
		cart:         cart,
		hooks:        hooks,
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
		state:        StateIdle,
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

// Run submits the checkout and blocks until the payment reaches a terminal
// client state or ctx is cancelled. Cancellation stops the poll loop cleanly:
// no further status reads or hook calls happen after it.
func (o *Orchestrator) Run(ctx context.Context, userID string, req *dto.CreateOrderRequest) (*Result, error) {
	items := o.cart.Items()
	if len(items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}
	req.Items = make([]*dto.OrderItemRequest, len(items))
	for i, item := range items {
		req.Items[i] = &dto.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	order, err := o.orders.Create(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	o.state = StateOrderCreated

	if req.PaymentMethod == string(model.PaymentMethodPayOnDelivery) {
		o.cart.Clear()
		o.hooks.OrderPlaced(order.OrderID)
		o.state = StateSuccess
		return &Result{State: StateSuccess, OrderID: order.OrderID}, nil
	}

	o.state = StatePending
	_, err = o.payments.InitiateSTKPush(ctx, &dto.STKPushRequest{
		OrderID: order.OrderID,
		Phone:   req.CustomerPhone,
		Amount:  order.TotalAmount,
	})
	if err != nil {
		// Push could not be sent. The order exists; route the user to it
		// instead of dead-ending the checkout.
		o.cart.Clear()
		o.hooks.OrderUnconfirmed(order.OrderID)
		o.state = StateUnconfirmed
		return &Result{State: StateUnconfirmed, OrderID: order.OrderID}, nil
	}

	return o.poll(ctx, order.OrderID)
}

// poll runs non-overlapping fixed-interval status checks. Each tick finishes
// its single read before the next is scheduled.
func (o *Orchestrator) poll(ctx context.Context, orderID string) (*Result, error) {
	o.state = StatePolling

	timer := time.NewTimer(o.PollInterval)
	defer timer.Stop()

	for tick := 1; tick <= o.MaxPolls; tick++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := o.status.PaymentStatus(ctx, orderID)
		if err == nil {
			switch status {
			case model.PaymentStatusPaid:
				o.cart.Clear()
				o.hooks.PaymentConfirmed(orderID)
				o.state = StateSuccess
				return &Result{State: StateSuccess, OrderID: orderID, Polls: tick}, nil
			case model.PaymentStatusFailed:
				o.hooks.PaymentFailed(orderID)
				o.state = StateFailed
				return &Result{State: StateFailed, OrderID: orderID, Polls: tick}, nil
			}
		}
		// Transient read errors consume the tick and the wait continues.

		timer.Reset(o.PollInterval)
	}

	o.hooks.PaymentPending(orderID)
	o.state = StateTimedOut
	return &Result{State: StateTimedOut, OrderID: orderID, Polls: o.MaxPolls}, nil
}
