package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/lock"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckouts struct {
	statuses map[string]CheckoutStatus
	errs     map[string]error
}

func (f *fakeCheckouts) GetCheckoutStatus(_ context.Context, checkoutID string) (CheckoutStatus, error) {
	if err, ok := f.errs[checkoutID]; ok {
		return CheckoutStatus{}, err
	}
	status, ok := f.statuses[checkoutID]
	if !ok {
		return CheckoutStatus{}, errors.New("unknown checkout")
	}
	return status, nil
}

func TestSweepSettlesPaidCheckout(t *testing.T) {
	codec := testCodec(t)
	order := pendingOrder(t, codec)
	orders := newMemOrders(order)
	topup := &fakeTopup{}
	p := &Poller{
		Orders: orders,
		Checkouts: &fakeCheckouts{statuses: map[string]CheckoutStatus{
			"co_1": {Status: "PAID", Reference: order.PublicID, Amount: order.Total},
		}},
		Reconciler:      newReconciler(orders, lock.NewMemory(), topup, codec, &fakeNotifier{}),
		Interval:        time.Minute,
		ProviderTimeout: time.Second,
	}

	require.NoError(t, p.SweepOnce(context.Background()))

	got, _ := orders.Get(context.Background(), order.PublicID)
	assert.Equal(t, models.OrderDone, got.Status)
	assert.Equal(t, int64(1), topup.calls.Load())
}

func TestSweepContinuesPastFailingOrder(t *testing.T) {
	codec := testCodec(t)
	broken := pendingOrder(t, codec)
	broken.PublicID = "TX-broken0000000000"
	broken.PaymentCheckoutID = "co_broken"
	healthy := pendingOrder(t, codec)
	healthy.PublicID = "TX-healthy000000000"
	healthy.PaymentCheckoutID = "co_healthy"
	orders := newMemOrders(broken, healthy)

	topup := &fakeTopup{}
	p := &Poller{
		Orders: orders,
		Checkouts: &fakeCheckouts{
			statuses: map[string]CheckoutStatus{
				"co_healthy": {Status: "PAID", Reference: healthy.PublicID, Amount: healthy.Total},
			},
			errs: map[string]error{"co_broken": errors.New("provider 500")},
		},
		Reconciler:      newReconciler(orders, lock.NewMemory(), topup, codec, &fakeNotifier{}),
		Interval:        time.Minute,
		ProviderTimeout: time.Second,
	}

	require.NoError(t, p.SweepOnce(context.Background()))

	got, _ := orders.Get(context.Background(), healthy.PublicID)
	assert.Equal(t, models.OrderDone, got.Status, "failure on one order must not halt the sweep")
	got, _ = orders.Get(context.Background(), broken.PublicID)
	assert.Equal(t, models.OrderPaymentPending, got.Status)
}

func TestSweepSkipsOrderWithoutCheckout(t *testing.T) {
	codec := testCodec(t)
	order := pendingOrder(t, codec)
	order.PaymentCheckoutID = ""
	orders := newMemOrders(order)
	topup := &fakeTopup{}
	p := &Poller{
		Orders:          orders,
		Checkouts:       &fakeCheckouts{},
		Reconciler:      newReconciler(orders, lock.NewMemory(), topup, codec, &fakeNotifier{}),
		Interval:        time.Minute,
		ProviderTimeout: time.Second,
	}

	require.NoError(t, p.SweepOnce(context.Background()))
	assert.Zero(t, topup.calls.Load())
}

func TestSweepUnpaidCheckoutLeavesOrderPending(t *testing.T) {
	codec := testCodec(t)
	order := pendingOrder(t, codec)
	orders := newMemOrders(order)
	topup := &fakeTopup{}
	p := &Poller{
		Orders: orders,
		Checkouts: &fakeCheckouts{statuses: map[string]CheckoutStatus{
			"co_1": {Status: "PENDING", Reference: order.PublicID, Amount: order.Total},
		}},
		Reconciler:      newReconciler(orders, lock.NewMemory(), topup, codec, &fakeNotifier{}),
		Interval:        time.Minute,
		ProviderTimeout: time.Second,
	}

	require.NoError(t, p.SweepOnce(context.Background()))

	got, _ := orders.Get(context.Background(), order.PublicID)
	assert.Equal(t, models.OrderPaymentPending, got.Status)
	assert.Zero(t, topup.calls.Load())
}

func TestSweepRecoversProcessingOrderAfterCrash(t *testing.T) {
	codec := testCodec(t)
	order := pendingOrder(t, codec)
	// Simulates a crash after the processing commit but before the top-up.
	order.Status = models.OrderProcessingTopup
	paid := time.Now().UTC()
	order.PaidAt = &paid
	orders := newMemOrders(order)
	topup := &fakeTopup{}
	p := &Poller{
		Orders: orders,
		Checkouts: &fakeCheckouts{statuses: map[string]CheckoutStatus{
			"co_1": {Status: "PAID", Reference: order.PublicID, Amount: order.Total},
		}},
		Reconciler:      newReconciler(orders, lock.NewMemory(), topup, codec, &fakeNotifier{}),
		Interval:        time.Minute,
		ProviderTimeout: time.Second,
	}

	require.NoError(t, p.SweepOnce(context.Background()))

	got, _ := orders.Get(context.Background(), order.PublicID)
	assert.Equal(t, models.OrderDone, got.Status)
	assert.Equal(t, int64(1), topup.calls.Load())
}
