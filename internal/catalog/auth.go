package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// tokenSource caches the OAuth client-credentials token until shortly
// before expiry so catalog lookups do not re-authenticate per call.
type tokenSource struct {
	authURL      string
	clientID     string
	clientSecret string
	audience     string
	httpClient   *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expires) {
		return t.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     t.clientID,
		"client_secret": t.clientSecret,
		"grant_type":    "client_credentials",
		"audience":      t.audience,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("reloadly auth %s: %s", res.Status, text)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("reloadly auth: empty access token")
	}

	t.token = payload.AccessToken
	// Renew a minute early to avoid using a token that dies mid-request.
	t.expires = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return t.token, nil
}
