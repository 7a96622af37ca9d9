package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"mpesa-checkout/internal/client"
	"mpesa-checkout/internal/dto"
	"mpesa-checkout/internal/model"
	"mpesa-checkout/internal/repository"

	"gorm.io/gorm"
)

type MpesaService interface {
	InitiateSTKPush(ctx context.Context, req *dto.STKPushRequest) (*dto.STKPushResponse, error)
	HandleCallback(ctx context.Context, body []byte)
}

type mpesaServiceImpl struct {
	mpesaClient client.MpesaClient
	orderRepo   repository.OrderRepository
	log         *slog.Logger
}

func NewMpesaService(
	mpesaClient client.MpesaClient,
	orderRepo repository.OrderRepository,
	log *slog.Logger,
) MpesaService {
	return &mpesaServiceImpl{
		mpesaClient: mpesaClient,
		orderRepo:   orderRepo,
		log:         log,
	}
}

// InitiateSTKPush fires the push payment request for an order and stores the
// gateway's CheckoutRequestID on it so the callback can match later. On any
// failure the order is left untouched; the caller decides what to do next.
func (s *mpesaServiceImpl) InitiateSTKPush(ctx context.Context, req *dto.STKPushRequest) (*dto.STKPushResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	if order.PaymentMethod != model.PaymentMethodMpesa {
		return nil, fmt.Errorf("order %s is not an m-pesa order", order.ID)
	}
	if order.PaymentStatus.Terminal() {
		return nil, fmt.Errorf("order %s payment already %s", order.ID, order.PaymentStatus)
	}
	// The client-supplied amount is only accepted when it matches the stored
	// total. The gateway is always charged the stored total.
	if !req.Amount.Equal(order.TotalAmount) {
		return nil, fmt.Errorf("amount %s does not match order total %s", req.Amount, order.TotalAmount)
	}

	result, err := s.mpesaClient.STKPush(ctx, &client.STKPushRequest{
		Phone:            req.Phone,
		Amount:           order.TotalAmount,
		OrderID:          order.ID,
		AccountReference: req.AccountReference,
	})
	if err != nil {
		return nil, fmt.Errorf("m-pesa stk push: %w", err)
	}

	if err := s.orderRepo.SetPaymentReference(ctx, order.ID, result.CheckoutRequestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A callback settled the order while the push round-trip was in
			// flight. The settled state wins; this push is not recorded.
			return nil, fmt.Errorf("order %s settled before push could be recorded", order.ID)
		}
		return nil, fmt.Errorf("store checkout request id: %w", err)
	}

	return &dto.STKPushResponse{
		Success:           true,
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
		Message:           "STK push sent successfully. Please check your phone.",
	}, nil
}

// HandleCallback applies the gateway's asynchronous payment result. It never
// reports failure to the caller: whatever happens here, the webhook endpoint
// acknowledges the gateway, so every problem is logged and swallowed.
func (s *mpesaServiceImpl) HandleCallback(ctx context.Context, body []byte) {
	var envelope model.CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.log.Error("decode m-pesa callback", "error", err)
		return
	}

	stk := envelope.Body.StkCallback
	if stk == nil {
		s.log.Error("invalid m-pesa callback format")
		return
	}

	log := s.log.With(
		"checkout_request_id", stk.CheckoutRequestID,
		"result_code", stk.ResultCode,
	)

	if stk.ResultCode != 0 {
		affected, err := s.orderRepo.MarkFailedByReference(ctx, stk.CheckoutRequestID)
		if err != nil {
			log.Error("mark order failed", "error", err)
			return
		}
		if affected == 0 {
			log.Info("failure callback matched no pending order", "result_desc", stk.ResultDesc)
			return
		}
		log.Info("payment failed or cancelled", "result_desc", stk.ResultDesc)
		return
	}

	receipt, ok := stk.CallbackMetadata.Value("MpesaReceiptNumber")
	if !ok {
		log.Error("success callback missing receipt number")
		return
	}
	receiptNumber := fmt.Sprint(receipt)
	if receiptNumber == "" {
		log.Error("success callback has empty receipt number")
		return
	}
	transactionDate, _ := stk.CallbackMetadata.Value("TransactionDate")

	affected, err := s.orderRepo.MarkPaidByReference(ctx, stk.CheckoutRequestID, receiptNumber)
	if err != nil {
		log.Error("mark order paid", "error", err)
		return
	}
	if affected == 0 {
		// Stale or duplicate callback, or the order is gone. Benign.
		log.Info("success callback matched no pending order")
		return
	}

	log.Info("payment confirmed",
		"receipt", receiptNumber,
		"transaction_date", transactionDate,
	)
}
