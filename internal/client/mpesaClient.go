package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mpesa-checkout/internal/config"
	"mpesa-checkout/internal/model"

	"github.com/shopspring/decimal"
)

const transactionType = "CustomerBuyGoodsOnline" // till number transaction type

type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	OrderID          string
	AccountReference string
}

type STKPushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
}

type MpesaClient interface {
	STKPush(ctx context.Context, req *STKPushRequest) (*STKPushResult, error)
}

type mpesaClientImpl struct {
	httpClient     *http.Client
	baseApiURL     string
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	now            func() time.Time
}

func NewMpesaClient(mpesaCfg *config.Mpesa) MpesaClient {
	return &mpesaClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:     mpesaCfg.BaseApiURL,
		consumerKey:    mpesaCfg.ConsumerKey,
		consumerSecret: mpesaCfg.ConsumerSecret,
		shortcode:      mpesaCfg.Shortcode,
		passkey:        mpesaCfg.Passkey,
		callbackURL:    mpesaCfg.CallbackURL,
		now:            time.Now,
	}
}

// NormalizePhone canonicalizes a Kenyan subscriber number to the 254XXXXXXXXX
// form the gateway requires. "+254711000000", "0711000000" and "711000000"
// all map to "254711000000".
func NormalizePhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	switch {
	case strings.HasPrefix(cleaned, "+254"):
		cleaned = cleaned[1:]
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "7"), strings.HasPrefix(cleaned, "1"):
		cleaned = "254" + cleaned
	}

	return cleaned
}

// Password derives the request credential for an STK push: the base64 digest
// of shortcode+passkey+timestamp. The timestamp must be the same one sent in
// the payload, freshly generated per request.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

func (c *mpesaClientImpl) getAccessToken(ctx context.Context) (string, error) {
	if c.consumerKey == "" || c.consumerSecret == "" {
		return "", fmt.Errorf("m-pesa credentials not configured")
	}

	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.consumerKey + ":" + c.consumerSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseApiURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("oauth error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode oauth response: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("oauth response missing access token")
	}

	return res.AccessToken, nil
}

func (c *mpesaClientImpl) STKPush(ctx context.Context, pushReq *STKPushRequest) (*STKPushResult, error) {
	if c.shortcode == "" || c.passkey == "" {
		return nil, fmt.Errorf("m-pesa shortcode or passkey not configured")
	}

	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get m-pesa access token: %w", err)
	}

	timestamp := c.now().Format("20060102150405")
	phone := NormalizePhone(pushReq.Phone)

	accountRef := pushReq.AccountReference
	if accountRef == "" {
		accountRef = "Order-" + shortID(pushReq.OrderID)
	}

	payload := &model.STKPushPayload{
		BusinessShortCode: c.shortcode,
		Password:          Password(c.shortcode, c.passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            pushReq.Amount.Round(0).IntPart(),
		PartyA:            phone,
		PartyB:            c.shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   "Payment for order " + shortID(pushReq.OrderID),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/mpesa/stkpush/v1/processrequest",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	var result model.STKPushAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode stk push response: %w", err)
	}

	if result.ResponseCode != "0" {
		return nil, fmt.Errorf("stk push rejected: %s", rejectionMessage(&result))
	}

	return &STKPushResult{
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
	}, nil
}

func rejectionMessage(resp *model.STKPushAPIResponse) string {
	if resp.ErrorMessage != "" {
		return resp.ErrorMessage
	}
	if resp.ResponseDescription != "" {
		return resp.ResponseDescription
	}
	return "stk push failed"
}

func shortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}
