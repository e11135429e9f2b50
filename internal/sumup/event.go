package sumup

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/settlement"

	"github.com/shopspring/decimal"
)

var ErrNoReference = errors.New("event has no checkout reference")

type eventEnvelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Data      json.RawMessage `json:"data"`
	eventFields
}

type eventFields struct {
	Status            string          `json:"status"`
	Reference         string          `json:"reference"`
	CheckoutReference string          `json:"checkout_reference"`
	Amount            decimal.Decimal `json:"amount"`
	EventType         string          `json:"event_type"`
}

// ParseEvent normalizes a webhook body into a settlement signal. The
// provider nests the interesting fields under payload or data, or sends
// them flat, and names the reference two different ways; each field is
// resolved from an ordered candidate list.
func ParseEvent(body []byte) (settlement.Signal, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return settlement.Signal{}, err
	}

	inner := env.eventFields
	for _, raw := range []json.RawMessage{env.Payload, env.Data} {
		if len(raw) == 0 {
			continue
		}
		var nested eventFields
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		inner = merge(nested, inner)
	}

	reference := firstNonEmpty(inner.CheckoutReference, inner.Reference)
	if reference == "" {
		return settlement.Signal{}, ErrNoReference
	}

	status := strings.ToUpper(strings.TrimSpace(inner.Status))
	eventType := strings.ToLower(strings.TrimSpace(firstNonEmpty(env.EventType, inner.EventType)))
	if eventType == "checkout.paid" && status == "" {
		status = "PAID"
	}

	return settlement.Signal{
		OrderPublicID:     reference,
		ReportedStatus:    status,
		ReportedReference: reference,
		ReportedAmount:    inner.Amount,
	}, nil
}

func merge(primary, fallback eventFields) eventFields {
	out := primary
	if out.Status == "" {
		out.Status = fallback.Status
	}
	if out.Reference == "" {
		out.Reference = fallback.Reference
	}
	if out.CheckoutReference == "" {
		out.CheckoutReference = fallback.CheckoutReference
	}
	if out.Amount.IsZero() {
		out.Amount = fallback.Amount
	}
	if out.EventType == "" {
		out.EventType = fallback.EventType
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
