// Package sumup talks to the payment provider: checkout creation, status
// queries, and normalization of its webhook events into settlement signals.
package sumup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/settlement"

	"github.com/shopspring/decimal"
)

type Client struct {
	BaseURL      string
	APIKey       string
	MerchantCode string
	HTTP         *http.Client
}

type Checkout struct {
	CheckoutID  string
	CheckoutURL string
}

func NewClient(baseURL, apiKey, merchantCode string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		MerchantCode: merchantCode,
		HTTP:         &http.Client{Timeout: timeout},
	}
}

type createCheckoutRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	MerchantCode string          `json:"merchant_code"`
	Description  string          `json:"description"`
	Reference    string          `json:"checkout_reference"`
}

type checkoutResponse struct {
	ID          string          `json:"id"`
	CheckoutURL string          `json:"checkout_url"`
	Status      string          `json:"status"`
	Reference   string          `json:"checkout_reference"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreateCheckout opens a hosted checkout whose reference ties the payment
// back to the order. Called once per order, behind the checkout lease.
func (c *Client) CreateCheckout(ctx context.Context, orderPublicID string, amount decimal.Decimal, currency, description string) (Checkout, error) {
	body, err := json.Marshal(createCheckoutRequest{
		Amount:       amount,
		Currency:     currency,
		MerchantCode: c.MerchantCode,
		Description:  description,
		Reference:    orderPublicID,
	})
	if err != nil {
		return Checkout{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v0.1/checkouts", bytes.NewReader(body))
	if err != nil {
		return Checkout{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var resp checkoutResponse
	if err := c.do(req, &resp); err != nil {
		return Checkout{}, fmt.Errorf("create checkout: %w", err)
	}
	return Checkout{CheckoutID: resp.ID, CheckoutURL: resp.CheckoutURL}, nil
}

// GetCheckoutStatus reads the provider's view of a checkout for the poller.
func (c *Client) GetCheckoutStatus(ctx context.Context, checkoutID string) (settlement.CheckoutStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v0.1/checkouts/"+checkoutID, nil)
	if err != nil {
		return settlement.CheckoutStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	var resp checkoutResponse
	if err := c.do(req, &resp); err != nil {
		return settlement.CheckoutStatus{}, fmt.Errorf("get checkout status: %w", err)
	}
	return settlement.CheckoutStatus{
		Status:    resp.Status,
		Reference: resp.Reference,
		Amount:    resp.Amount,
	}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("sumup %s: %s", res.Status, text)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
