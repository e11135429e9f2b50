package settlement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Signal is a normalized payment confirmation. Both triggers produce the
// same shape: the webhook ingestor parses one out of a provider event, the
// poller synthesizes one from a checkout status query.
type Signal struct {
	OrderPublicID     string
	ReportedStatus    string
	ReportedReference string
	ReportedAmount    decimal.Decimal
}

// paidStatuses is the provider's observed vocabulary for a settled payment.
// An allow-list rather than an enum: success has arrived under several
// spellings, so a new one is a one-line addition here.
var paidStatuses = map[string]bool{
	"PAID":               true,
	"SUCCESS":            true,
	"SUCCESSFUL":         true,
	"CHECKOUT_COMPLETED": true,
}

// Paid reports whether the signal claims money was collected. Non-paid
// signals are routine (pending, failed, expired checkouts) and are
// discarded silently, never logged as failures.
func (s Signal) Paid() bool {
	return paidStatuses[strings.ToUpper(strings.TrimSpace(s.ReportedStatus))]
}
