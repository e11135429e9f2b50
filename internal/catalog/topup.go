package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/settlement"
)

// ExecuteTopup sends the recharge. CustomIdentifier carries the caller's
// idempotency key so the provider deduplicates re-sends of the same order.
func (c *Client) ExecuteTopup(ctx context.Context, req settlement.TopupRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"operatorId":       req.OperatorID,
		"amount":           req.Amount,
		"customIdentifier": req.IdempotencyKey,
		"recipientPhone": map[string]string{
			"countryCode": req.CountryCode,
			"number":      req.Phone,
		},
	})
	if err != nil {
		return "", err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/topups", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	res, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if permanentRejection(res.StatusCode) {
			return "", fmt.Errorf("reloadly topup %s: %s: %w", res.Status, text, settlement.ErrTopupRejected)
		}
		return "", fmt.Errorf("reloadly topup %s: %s", res.Status, text)
	}

	var payload struct {
		TransactionID int64 `json:"transactionId"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", payload.TransactionID), nil
}

// permanentRejection distinguishes a refused order from a transient fault.
// 401 means an expired token, 408/429 mean backoff; any other 4xx is the
// provider saying the request itself can never succeed.
func permanentRejection(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return true
}

// DisabledExecutor stands in for the live provider when execution is
// switched off in config: it logs what would have run and returns a stub
// transaction id so the rest of the flow can be exercised end to end.
type DisabledExecutor struct{}

func (DisabledExecutor) ExecuteTopup(_ context.Context, req settlement.TopupRequest) (string, error) {
	log.Printf("topup disabled: would execute operator=%d amount=%s key=%s",
		req.OperatorID, req.Amount.StringFixed(2), req.IdempotencyKey)
	return "TOPUP_DISABLED", nil
}
