// Package catalog wraps the top-up provider: country and operator lookups,
// product listings, and top-up execution.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/shopspring/decimal"
)

var errStatusNotFound = errors.New("not found")

type Country struct {
	ISOCode      string `json:"isoName"`
	Name         string `json:"name"`
	CurrencyCode string `json:"currencyCode"`
}

type Operator struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	CountryCode     string
	SupportsAirtime bool `json:"supportsAirtime"`
	SupportsData    bool `json:"supportsData"`
	SupportsVoice   bool `json:"supportsVoice"`
}

type Client struct {
	baseURL string
	tokens  *tokenSource
	http    *http.Client
}

func NewClient(baseURL, authURL, clientID, clientSecret string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		tokens: &tokenSource{
			authURL:      authURL,
			clientID:     clientID,
			clientSecret: clientSecret,
			audience:     baseURL,
			httpClient:   httpClient,
		},
	}
}

func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	var out []Country
	if err := c.get(ctx, "/countries", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindCountry matches user input against ISO code or country name,
// case-insensitively.
func (c *Client) FindCountry(ctx context.Context, input string) (*Country, error) {
	t := strings.ToLower(strings.TrimSpace(input))
	if t == "" {
		return nil, nil
	}
	countries, err := c.Countries(ctx)
	if err != nil {
		return nil, err
	}
	for i := range countries {
		if strings.ToLower(countries[i].ISOCode) == t || strings.ToLower(countries[i].Name) == t {
			return &countries[i], nil
		}
	}
	return nil, nil
}

// ResolveOperator auto-detects the operator serving a phone number. A miss
// is (nil, nil): plenty of valid numbers are simply not in the provider's
// prefix tables.
func (c *Client) ResolveOperator(ctx context.Context, phone string) (*Operator, error) {
	var raw operatorPayload
	path := "/operators/auto-detect/phone/" + url.PathEscape(phone)
	if err := c.get(ctx, path, &raw); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	op := raw.toOperator()
	return &op, nil
}

// OperatorsByCountry lists every operator serving a country, the fallback
// when phone auto-detection has no answer.
func (c *Client) OperatorsByCountry(ctx context.Context, isoCode string) ([]Operator, error) {
	var raw []operatorPayload
	path := "/operators/countries/" + url.PathEscape(strings.ToUpper(isoCode))
	if err := c.get(ctx, path, &raw); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ops := make([]Operator, 0, len(raw))
	for _, p := range raw {
		ops = append(ops, p.toOperator())
	}
	return ops, nil
}

type operatorPayload struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	SupportsAirtime bool   `json:"supportsAirtime"`
	SupportsData    bool   `json:"supportsData"`
	SupportsVoice   bool   `json:"supportsVoice"`
	Country         struct {
		ISOCode string `json:"isoName"`
	} `json:"country"`
}

func (p operatorPayload) toOperator() Operator {
	return Operator{
		ID:              p.ID,
		Name:            p.Name,
		CountryCode:     p.Country.ISOCode,
		SupportsAirtime: p.SupportsAirtime,
		SupportsData:    p.SupportsData,
		SupportsVoice:   p.SupportsVoice,
	}
}

// ListProducts returns the purchasable products for an operator and
// service type, normalized to the internal product shape.
func (c *Client) ListProducts(ctx context.Context, operatorID int64, serviceType models.ServiceType) ([]models.Product, error) {
	switch serviceType {
	case models.ServiceAirtime:
		return c.airtimeProducts(ctx, operatorID)
	case models.ServiceData:
		return c.bundleProducts(ctx, fmt.Sprintf("/operators/%d/data/bundles", operatorID))
	case models.ServiceVoice:
		return c.bundleProducts(ctx, fmt.Sprintf("/operators/%d/voice/bundles", operatorID))
	default:
		return nil, fmt.Errorf("unknown service type %q", serviceType)
	}
}

func (c *Client) airtimeProducts(ctx context.Context, operatorID int64) ([]models.Product, error) {
	var raw struct {
		CurrencyCode string            `json:"currencyCode"`
		Amounts      []decimal.Decimal `json:"amounts"`
	}
	if err := c.get(ctx, fmt.Sprintf("/operators/%d/amounts", operatorID), &raw); err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(raw.Amounts))
	for _, amount := range raw.Amounts {
		products = append(products, models.Product{
			Name:          amount.StringFixed(2) + " " + raw.CurrencyCode,
			Amount:        amount,
			Currency:      raw.CurrencyCode,
			LocalAmount:   amount,
			LocalCurrency: raw.CurrencyCode,
		})
	}
	return products, nil
}

func (c *Client) bundleProducts(ctx context.Context, path string) ([]models.Product, error) {
	var raw struct {
		Content []struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Price struct {
				Amount       decimal.Decimal `json:"amount"`
				CurrencyCode string          `json:"currencyCode"`
			} `json:"price"`
			LocalAmount   decimal.Decimal `json:"localAmount"`
			LocalCurrency string          `json:"localCurrency"`
		} `json:"content"`
	}
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(raw.Content))
	for _, b := range raw.Content {
		products = append(products, models.Product{
			ProductID:     b.ID,
			Name:          b.Name,
			Amount:        b.Price.Amount,
			Currency:      b.Price.CurrencyCode,
			LocalAmount:   b.LocalAmount,
			LocalCurrency: b.LocalCurrency,
		})
	}
	return products, nil
}

// EstimateLocal converts a billing-currency amount into the operator's
// destination currency via the provider's FX rate.
func (c *Client) EstimateLocal(ctx context.Context, operatorID int64, amount decimal.Decimal) (decimal.Decimal, string, error) {
	body, err := json.Marshal(map[string]any{
		"operatorId": operatorID,
		"amount":     amount,
	})
	if err != nil {
		return decimal.Decimal{}, "", err
	}

	var raw struct {
		FxRate       decimal.Decimal `json:"fxRate"`
		CurrencyCode string          `json:"currencyCode"`
	}
	if err := c.post(ctx, "/operators/fx-rate", body, &raw); err != nil {
		return decimal.Decimal{}, "", err
	}
	return amount.Mul(raw.FxRate).Round(2), raw.CurrencyCode, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("reloadly %s: %w", path, errStatusNotFound)
	}
	if res.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("reloadly %s %s: %s", path, res.Status, text)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
