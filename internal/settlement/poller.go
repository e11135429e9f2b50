package settlement

import (
	"context"
	"log"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/shopspring/decimal"
)

type PendingLister interface {
	ListAwaitingSettlement(ctx context.Context) ([]*models.Order, error)
}

// CheckoutStatus is the provider's answer to "was this checkout paid".
type CheckoutStatus struct {
	Status    string
	Reference string
	Amount    decimal.Decimal
}

type CheckoutStatusQuerier interface {
	GetCheckoutStatus(ctx context.Context, checkoutID string) (CheckoutStatus, error)
}

// Poller is the safety net for missed or delayed webhooks. Each sweep it
// re-derives a payment signal for every unsettled order from the provider's
// checkout status and feeds it through the same reconciler the webhook uses.
type Poller struct {
	Orders          PendingLister
	Checkouts       CheckoutStatusQuerier
	Reconciler      *Reconciler
	Interval        time.Duration
	ProviderTimeout time.Duration
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		if err := p.SweepOnce(ctx); err != nil {
			log.Printf("sweep error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce reconciles every unsettled order. Per-order failures are logged
// and skipped so one bad order never halts the sweep.
func (p *Poller) SweepOnce(ctx context.Context) error {
	orders, err := p.Orders.ListAwaitingSettlement(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}
	log.Printf("sweep pending=%d", len(orders))

	for _, order := range orders {
		if err := p.sweepOrder(ctx, order); err != nil {
			log.Printf("sweep order %s failed: %v", order.PublicID, err)
		}
	}
	return nil
}

func (p *Poller) sweepOrder(ctx context.Context, order *models.Order) error {
	if order.PaymentCheckoutID == "" {
		log.Printf("sweep order %s skipped: no checkout id", order.PublicID)
		return nil
	}

	statusCtx, cancel := context.WithTimeout(ctx, p.ProviderTimeout)
	status, err := p.Checkouts.GetCheckoutStatus(statusCtx, order.PaymentCheckoutID)
	cancel()
	if err != nil {
		return err
	}

	return p.Reconciler.Reconcile(ctx, Signal{
		OrderPublicID:     order.PublicID,
		ReportedStatus:    status.Status,
		ReportedReference: status.Reference,
		ReportedAmount:    status.Amount,
	})
}
