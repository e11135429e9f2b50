package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/secrets"
)

// Sender delivers text via the Graph API. With no token configured it logs
// instead of sending, which keeps local runs working without credentials.
type Sender struct {
	BaseURL       string
	Token         string
	PhoneNumberID string
	HTTP          *http.Client
}

func NewSender(baseURL, token, phoneNumberID string, timeout time.Duration) *Sender {
	return &Sender{
		BaseURL:       baseURL,
		Token:         token,
		PhoneNumberID: phoneNumberID,
		HTTP:          &http.Client{Timeout: timeout},
	}
}

func (s *Sender) SendText(ctx context.Context, address, body string) error {
	if s.Token == "" {
		log.Printf("whatsapp send to=%s (dry run)", secrets.MaskPhone(address))
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                address,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", s.BaseURL, s.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("whatsapp send %s: %s", res.Status, text)
	}
	return nil
}
