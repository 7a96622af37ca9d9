package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mpesa-checkout/internal/dto"
	"mpesa-checkout/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMpesaService struct {
	pushResp      *dto.STKPushResponse
	pushErr       error
	callbackCalls int
	lastBody      []byte
}

func (f *fakeMpesaService) InitiateSTKPush(ctx context.Context, req *dto.STKPushRequest) (*dto.STKPushResponse, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return f.pushResp, nil
}

func (f *fakeMpesaService) HandleCallback(ctx context.Context, body []byte) {
	f.callbackCalls++
	f.lastBody = body
}

type passValidator struct{}

func (passValidator) Validate(i interface{}) error { return nil }

func newCallbackContext(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/mpesa/callback", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCallback_AlwaysAcknowledges(t *testing.T) {
	bodies := []string{
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_123","ResultCode":0}}}`,
		`{"Body":{}}`,
		`not json at all`,
		``,
	}

	for _, body := range bodies {
		e := echo.New()
		fake := &fakeMpesaService{}
		h := NewMpesaHandler(fake)

		c, rec := newCallbackContext(e, body)
		require.NoError(t, h.Callback(c))

		assert.Equal(t, http.StatusOK, rec.Code)

		var ack model.CallbackAck
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.Equal(t, 0, ack.ResultCode)
		assert.Equal(t, "Accepted", ack.ResultDesc)

		assert.Equal(t, 1, fake.callbackCalls)
		assert.Equal(t, body, string(fake.lastBody))
	}
}

func TestSTKPush_ServiceFailureReturnsStructuredError(t *testing.T) {
	e := echo.New()
	e.Validator = passValidator{}
	h := NewMpesaHandler(&fakeMpesaService{pushErr: fmt.Errorf("m-pesa stk push: connection refused")})

	req := httptest.NewRequest(http.MethodPost, "/api/mpesa/stk-push",
		strings.NewReader(`{"order_id":"o1","phone":"0711000000","amount":"5265"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.STKPush(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.STKPushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "connection refused")
}

func TestSTKPush_Accepted(t *testing.T) {
	e := echo.New()
	e.Validator = passValidator{}
	h := NewMpesaHandler(&fakeMpesaService{pushResp: &dto.STKPushResponse{
		Success:           true,
		CheckoutRequestID: "ws_CO_123",
		Message:           "STK push sent successfully. Please check your phone.",
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/mpesa/stk-push",
		strings.NewReader(`{"order_id":"o1","phone":"0711000000","amount":"5265"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.STKPush(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.STKPushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ws_CO_123", resp.CheckoutRequestID)
}
