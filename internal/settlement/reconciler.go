// Package settlement drives paid orders to a terminal state exactly once.
//
// Two independent triggers feed it: the payment provider's webhook and the
// periodic poller. Both may fire for the same order, concurrently or
// repeatedly; the per-order lease plus a fresh re-read inside it make the
// pair safe in either arrival order.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/lock"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/store"

	"github.com/shopspring/decimal"
)

const (
	settleLeaseTTL = 300 * time.Second

	// LeasePrefix namespaces settlement leases in the shared lock store.
	LeasePrefix = "settle:"
)

type OrderStore interface {
	Get(ctx context.Context, publicID string) (*models.Order, error)
	MarkProcessing(ctx context.Context, publicID string, paidAt time.Time) error
	MarkDone(ctx context.Context, publicID, transactionID string, completedAt time.Time) error
	MarkFailed(ctx context.Context, publicID string) error
}

type FieldCodec interface {
	Decrypt(ciphertext string) (string, error)
}

type TopupRequest struct {
	OperatorID     int64
	Amount         decimal.Decimal
	Currency       string
	Phone          string
	CountryCode    string
	IdempotencyKey string
}

// ErrTopupRejected marks a provider refusal that no retry can fix (bad
// operator, unsupported amount, rejected destination). The executor wraps
// it so the reconciler can tell a dead order from a transient outage.
var ErrTopupRejected = errors.New("topup rejected by provider")

// TopupExecutor must be idempotent server-side on IdempotencyKey; the
// reconciler relies on that if a crash forces a second call for one order.
type TopupExecutor interface {
	ExecuteTopup(ctx context.Context, req TopupRequest) (transactionID string, err error)
}

type Notifier interface {
	SendText(ctx context.Context, address, body string) error
}

type SuccessFormatter interface {
	TopupSuccess(language, reference string) string
}

type Reconciler struct {
	Orders    OrderStore
	Leases    lock.Store
	Codec     FieldCodec
	Topup     TopupExecutor
	Notifier  Notifier
	Formatter SuccessFormatter

	// Language resolves the user's reply language from the order's subject
	// hash. Optional; empty result falls back to DefaultLang.
	Language    func(ctx context.Context, subjectHash string) string
	DefaultLang string

	Now func() time.Time
}

// Reconcile validates a payment confirmation and, if it wins the per-order
// lease, executes the top-up and finalizes the order. Safe to call any
// number of times with the same signal.
func (r *Reconciler) Reconcile(ctx context.Context, sig Signal) error {
	if !sig.Paid() {
		return nil
	}

	// Integrity gates. A mismatch means provider tampering or an upstream
	// bug; the order is left untouched rather than "corrected".
	if sig.ReportedReference != sig.OrderPublicID {
		log.Printf("reconcile order=%s rejected: reference mismatch (%q)", sig.OrderPublicID, sig.ReportedReference)
		return nil
	}

	order, err := r.Orders.Get(ctx, sig.OrderPublicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("reconcile order=%s rejected: unknown order", sig.OrderPublicID)
			return nil
		}
		return fmt.Errorf("load order: %w", err)
	}

	if !sig.ReportedAmount.Equal(order.Total) {
		log.Printf("reconcile order=%s rejected: amount mismatch reported=%s stored=%s",
			order.PublicID, sig.ReportedAmount.StringFixed(2), order.Total.StringFixed(2))
		return nil
	}

	ok, err := r.Leases.TryAcquire(ctx, LeasePrefix+order.PublicID, settleLeaseTTL)
	if err != nil {
		return fmt.Errorf("acquire settle lease: %w", err)
	}
	if !ok {
		// The other trigger, or a retry, is already settling this order.
		log.Printf("reconcile order=%s skipped: lease held", order.PublicID)
		return nil
	}

	// Re-read under the lease. The lease bounds concurrency, this check
	// survives lease expiry after a crash.
	order, err = r.Orders.Get(ctx, order.PublicID)
	if err != nil {
		return fmt.Errorf("reload order: %w", err)
	}
	switch order.Status {
	case models.OrderPaymentPending:
		// Commit point: past this write the order must reach DONE or
		// FAILED, never be abandoned.
		if err := r.Orders.MarkProcessing(ctx, order.PublicID, r.now()); err != nil {
			if errors.Is(err, store.ErrStaleTransition) {
				return nil
			}
			return fmt.Errorf("mark processing: %w", err)
		}
	case models.OrderProcessingTopup:
		// A crash or transient failure left the order mid-settlement;
		// resume past the commit point.
	case models.OrderDraft:
		// The provider claims payment for an order that never reached
		// PAYMENT_PENDING. The checkout attach must land first; never
		// execute a top-up from here.
		log.Printf("reconcile order=%s anomaly: paid signal for DRAFT order", order.PublicID)
		return nil
	default:
		return nil
	}

	return r.executeTopup(ctx, order)
}

func (r *Reconciler) executeTopup(ctx context.Context, order *models.Order) error {
	// PII is decrypted only here, at the moment of use.
	phone, err := r.Codec.Decrypt(order.PhoneEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt phone: %w", err)
	}

	txID, err := r.Topup.ExecuteTopup(ctx, TopupRequest{
		OperatorID:     order.OperatorID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Phone:          phone,
		CountryCode:    order.CountryCode,
		IdempotencyKey: order.PublicID,
	})
	if err != nil {
		if errors.Is(err, ErrTopupRejected) {
			// The provider will refuse this order forever; park it in
			// FAILED for manual refund handling.
			if ferr := r.Orders.MarkFailed(ctx, order.PublicID); ferr != nil {
				return fmt.Errorf("mark failed order=%s: %w", order.PublicID, ferr)
			}
			log.Printf("reconcile order=%s failed permanently: %v", order.PublicID, err)
			return nil
		}
		// Transient: the order stays PROCESSING_TOPUP. A blind inline retry
		// could double-charge if the provider executed before failing; the
		// next sweep retries once provider status is known.
		return fmt.Errorf("execute topup order=%s: %w", order.PublicID, err)
	}

	if err := r.Orders.MarkDone(ctx, order.PublicID, txID, r.now()); err != nil {
		return fmt.Errorf("mark done order=%s: %w", order.PublicID, err)
	}
	log.Printf("reconcile order=%s done tx=%s", order.PublicID, txID)

	r.notify(ctx, order)
	return nil
}

// notify tells the user their top-up landed. Best effort only: settlement
// already succeeded and must not be reported as failed over a chat hiccup.
func (r *Reconciler) notify(ctx context.Context, order *models.Order) {
	if r.Notifier == nil || r.Formatter == nil {
		return
	}
	address, err := r.Codec.Decrypt(order.ChannelAddressEncrypted)
	if err != nil {
		log.Printf("notify order=%s failed: %v", order.PublicID, err)
		return
	}

	lang := r.DefaultLang
	if r.Language != nil {
		if l := r.Language(ctx, order.SubjectHash); l != "" {
			lang = l
		}
	}

	body := r.Formatter.TopupSuccess(lang, order.PublicID)
	if err := r.Notifier.SendText(ctx, address, body); err != nil {
		log.Printf("notify order=%s failed: %v", order.PublicID, err)
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
