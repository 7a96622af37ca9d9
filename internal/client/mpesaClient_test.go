package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mpesa-checkout/internal/config"
	"mpesa-checkout/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"international with plus", "+254711000000", "254711000000"},
		{"national trunk prefix", "0711000000", "254711000000"},
		{"bare subscriber", "711000000", "254711000000"},
		{"already canonical", "254711000000", "254711000000"},
		{"spaces and dashes", "+254 711-000 000", "254711000000"},
		{"parentheses", "(0711) 000000", "254711000000"},
		{"landline style prefix 1", "110000000", "254110000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestPassword(t *testing.T) {
	got := Password("174379", "passkey123", "20240115093000")

	want := base64.StdEncoding.EncodeToString([]byte("174379passkey12320240115093000"))
	assert.Equal(t, want, got)
}

func newTestClient(t *testing.T, gatewayURL string) MpesaClient {
	t.Helper()
	return NewMpesaClient(&config.Mpesa{
		BaseApiURL:     gatewayURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey123",
		CallbackURL:    "https://example.com/api/mpesa/callback",
	})
}

func TestSTKPush_Accepted(t *testing.T) {
	var captured model.STKPushPayload

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token-abc"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_123",
			"MerchantRequestID": "29115-34620561-1",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL)

	result, err := c.STKPush(context.Background(), &STKPushRequest{
		Phone:   "0711000000",
		Amount:  decimal.NewFromInt(5265),
		OrderID: "a3f2c8d1-0000-0000-0000-000000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_123", result.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", result.MerchantRequestID)

	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "174379", captured.PartyB)
	assert.Equal(t, "254711000000", captured.PartyA)
	assert.Equal(t, "254711000000", captured.PhoneNumber)
	assert.Equal(t, int64(5265), captured.Amount)
	assert.Equal(t, "CustomerBuyGoodsOnline", captured.TransactionType)
	assert.Equal(t, "https://example.com/api/mpesa/callback", captured.CallBackURL)
	assert.Equal(t, "Order-a3f2c8d1", captured.AccountReference)

	// Password is the digest of shortcode+passkey+the same timestamp sent in
	// the payload.
	assert.Len(t, captured.Timestamp, 14)
	assert.Equal(t, Password("174379", "passkey123", captured.Timestamp), captured.Password)
}

func TestSTKPush_AmountRounded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "t"})
	})
	var captured model.STKPushPayload
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_1",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL)

	_, err := c.STKPush(context.Background(), &STKPushRequest{
		Phone:   "0711000000",
		Amount:  decimal.RequireFromString("1250.50"),
		OrderID: "o1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1251), captured.Amount)
}

func TestSTKPush_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]string
		wantMsg  string
	}{
		{
			name: "errorMessage field",
			response: map[string]string{
				"ResponseCode": "1",
				"errorMessage": "Invalid PhoneNumber",
			},
			wantMsg: "Invalid PhoneNumber",
		},
		{
			name: "ResponseDescription fallback",
			response: map[string]string{
				"ResponseCode":        "1",
				"ResponseDescription": "Request cancelled",
			},
			wantMsg: "Request cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"access_token": "t"})
			})
			mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.response)
			})
			ts := httptest.NewServer(mux)
			defer ts.Close()

			c := newTestClient(t, ts.URL)

			_, err := c.STKPush(context.Background(), &STKPushRequest{
				Phone:   "0711000000",
				Amount:  decimal.NewFromInt(100),
				OrderID: "o1",
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSTKPush_MissingCredentials(t *testing.T) {
	c := NewMpesaClient(&config.Mpesa{BaseApiURL: "http://localhost:0"})

	_, err := c.STKPush(context.Background(), &STKPushRequest{
		Phone:   "0711000000",
		Amount:  decimal.NewFromInt(100),
		OrderID: "o1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSTKPush_OAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL)

	_, err := c.STKPush(context.Background(), &STKPushRequest{
		Phone:   "0711000000",
		Amount:  decimal.NewFromInt(100),
		OrderID: "o1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token")
}
