package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/catalog"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/lock"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/pricing"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/reply"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/secrets"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/store"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/sumup"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "+33612345678"

type memConvos struct {
	convos map[string]*models.Conversation
}

func (m *memConvos) Get(_ context.Context, subjectHash string) (*models.Conversation, error) {
	convo, ok := m.convos[subjectHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *convo
	return &copied, nil
}

func (m *memConvos) Upsert(_ context.Context, convo *models.Conversation) error {
	copied := *convo
	m.convos[convo.SubjectHash] = &copied
	return nil
}

type memOrderCreator struct {
	orders map[string]*models.Order
}

func (m *memOrderCreator) Create(_ context.Context, order *models.Order) error {
	copied := *order
	m.orders[order.PublicID] = &copied
	return nil
}

func (m *memOrderCreator) MarkPaymentPending(_ context.Context, publicID, checkoutID string) error {
	order, ok := m.orders[publicID]
	if !ok || order.Status != models.OrderDraft {
		return store.ErrStaleTransition
	}
	order.Status = models.OrderPaymentPending
	order.PaymentCheckoutID = checkoutID
	return nil
}

func (m *memOrderCreator) only(t *testing.T) *models.Order {
	t.Helper()
	require.Len(t, m.orders, 1)
	for _, order := range m.orders {
		return order
	}
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) Countries(context.Context) ([]catalog.Country, error) {
	return []catalog.Country{
		{ISOCode: "AF", Name: "Afghanistan", CurrencyCode: "AFN"},
		{ISOCode: "FR", Name: "France", CurrencyCode: "EUR"},
		{ISOCode: "TR", Name: "Turkey", CurrencyCode: "TRY"},
	}, nil
}

func (f fakeCatalog) FindCountry(ctx context.Context, input string) (*catalog.Country, error) {
	countries, _ := f.Countries(ctx)
	for i := range countries {
		if input == countries[i].ISOCode || input == countries[i].Name {
			return &countries[i], nil
		}
	}
	return nil, nil
}

func (fakeCatalog) ResolveOperator(_ context.Context, phone string) (*catalog.Operator, error) {
	if phone == "+93700000000" {
		return &catalog.Operator{ID: 77, Name: "Roshan", CountryCode: "AF"}, nil
	}
	return nil, nil
}

func (fakeCatalog) OperatorsByCountry(_ context.Context, isoCode string) ([]catalog.Operator, error) {
	switch isoCode {
	case "AF":
		return []catalog.Operator{
			{ID: 77, Name: "Roshan", CountryCode: "AF"},
			{ID: 78, Name: "AWCC", CountryCode: "AF"},
		}, nil
	case "TR":
		return []catalog.Operator{{ID: 90, Name: "Turkcell", CountryCode: "TR"}}, nil
	}
	return nil, nil
}

func (fakeCatalog) EstimateLocal(_ context.Context, _ int64, amount decimal.Decimal) (decimal.Decimal, string, error) {
	return amount.Mul(decimal.RequireFromString("90")).Round(2), "AFN", nil
}

func (fakeCatalog) ListProducts(_ context.Context, _ int64, _ models.ServiceType) ([]models.Product, error) {
	return []models.Product{
		{Name: "5.00 EUR", Amount: decimal.RequireFromString("5.00"), Currency: "EUR",
			LocalAmount: decimal.RequireFromString("450.00"), LocalCurrency: "AFN"},
		{Name: "10.00 EUR", Amount: decimal.RequireFromString("10.00"), Currency: "EUR",
			LocalAmount: decimal.RequireFromString("900.00"), LocalCurrency: "AFN"},
	}, nil
}

type fakeCheckouts struct {
	calls        int
	lastCurrency string
	lastAmount   decimal.Decimal
}

func (f *fakeCheckouts) CreateCheckout(_ context.Context, orderPublicID string, amount decimal.Decimal, currency, _ string) (sumup.Checkout, error) {
	f.calls++
	f.lastCurrency = currency
	f.lastAmount = amount
	return sumup.Checkout{
		CheckoutID:  "co_" + orderPublicID,
		CheckoutURL: "https://pay.example/" + orderPublicID,
	}, nil
}

type capturingSender struct {
	bodies []string
}

func (c *capturingSender) SendText(_ context.Context, _, body string) error {
	c.bodies = append(c.bodies, body)
	return nil
}

func (c *capturingSender) last() string {
	if len(c.bodies) == 0 {
		return ""
	}
	return c.bodies[len(c.bodies)-1]
}

type testHarness struct {
	engine    *Engine
	convos    *memConvos
	orders    *memOrderCreator
	checkouts *fakeCheckouts
	sender    *capturingSender
	leases    lock.Store
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	fees, err := pricing.New(map[string]string{
		"5.00":  "1.00",
		"9.99":  "1.00",
		"10.00": "1.50",
	})
	require.NoError(t, err)
	codec, err := secrets.NewCodec("conversation-test-key")
	require.NoError(t, err)

	h := &testHarness{
		convos:    &memConvos{convos: make(map[string]*models.Conversation)},
		orders:    &memOrderCreator{orders: make(map[string]*models.Order)},
		checkouts: &fakeCheckouts{},
		sender:    &capturingSender{},
		leases:    lock.NewMemory(),
	}
	h.engine = &Engine{
		Convos:      h.convos,
		Orders:      h.orders,
		Catalog:     fakeCatalog{},
		Checkouts:   h.checkouts,
		Sender:      h.sender,
		Leases:      h.leases,
		Encryptor:   codec,
		Pricing:     fees,
		Format:      reply.Formatter{DefaultLang: "fr"},
		DefaultLang: "fr",
		MinAmount:   decimal.RequireFromString("1.99"),
		MaxAmount:   decimal.RequireFromString("100.00"),
	}
	return h
}

func (h *testHarness) say(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, h.engine.HandleIncoming(context.Background(), testUser, text, ""))
}

func (h *testHarness) convo(t *testing.T) *models.Conversation {
	t.Helper()
	convo, err := h.convos.Get(context.Background(), secrets.SubjectHash(testUser))
	require.NoError(t, err)
	return convo
}

// advanceToAmount walks the flow to the product selection step.
func (h *testHarness) advanceToAmount(t *testing.T) {
	t.Helper()
	h.say(t, "AF")
	h.say(t, "+93700000000")
	h.say(t, "oui")
	h.say(t, "1")
	require.Equal(t, models.StateWaitingAmount, h.convo(t).State)
}

func TestFullFlowToPaymentLink(t *testing.T) {
	h := newHarness(t)

	// A greeting matches no country, so the bot opens with the list.
	h.say(t, "bonjour")
	assert.Equal(t, models.StateWaitingCountry, h.convo(t).State)
	assert.Contains(t, h.sender.last(), "Afghanistan")

	h.say(t, "AF")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingPhone, convo.State)
	assert.Equal(t, "AF", convo.Data.CountryCode)
	assert.Equal(t, "AFN", convo.Data.Currency)

	h.say(t, "0700000000")
	convo = h.convo(t)
	assert.Equal(t, models.StateWaitingOperatorConfirm, convo.State)
	assert.Equal(t, "+93700000000", convo.Data.Phone)
	assert.Equal(t, "Roshan", convo.Data.OperatorName)
	assert.Contains(t, h.sender.last(), "****0000")
	assert.NotContains(t, h.sender.last(), "93700000000", "full number never leaves the store")

	h.say(t, "oui")
	assert.Equal(t, models.StateWaitingServiceType, h.convo(t).State)

	h.say(t, "1")
	convo = h.convo(t)
	assert.Equal(t, models.StateWaitingAmount, convo.State)
	assert.Equal(t, models.ServiceAirtime, convo.Data.ServiceType)
	assert.Len(t, convo.Data.Products, 2)

	// Product 2 is the 10.00 EUR bundle: fee 1.50, total 11.50.
	h.say(t, "2")
	convo = h.convo(t)
	assert.Equal(t, models.StateWaitingOrderConfirm, convo.State)
	order := h.orders.only(t)
	assert.Equal(t, models.OrderDraft, order.Status)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, order.Fee.Equal(decimal.RequireFromString("1.50")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("11.50")))
	assert.Equal(t, "****0000", order.PhoneMasked)
	assert.NotEqual(t, "+93700000000", order.PhoneEncrypted)
	assert.Contains(t, h.sender.last(), order.PublicID)

	h.say(t, "OUI")
	convo = h.convo(t)
	assert.Equal(t, models.StateWaitingPayment, convo.State)
	order = h.orders.only(t)
	assert.Equal(t, models.OrderPaymentPending, order.Status)
	assert.Equal(t, "co_"+order.PublicID, order.PaymentCheckoutID)
	assert.Equal(t, 1, h.checkouts.calls)
	assert.Equal(t, "EUR", h.checkouts.lastCurrency, "charge runs in the billing currency, not AFN")
	assert.True(t, h.checkouts.lastAmount.Equal(order.Total))
	assert.Contains(t, h.sender.last(), "https://pay.example/"+order.PublicID)
}

func TestUnavailableCountryStaysAtCountryStep(t *testing.T) {
	h := newHarness(t)
	h.engine.AllowedCountries = []string{"AF", "TR"}

	h.say(t, "FR")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingCountry, convo.State)
	assert.Empty(t, convo.Data.CountryCode)
}

func TestInvalidPhoneAsksAgain(t *testing.T) {
	h := newHarness(t)
	h.say(t, "AF")

	h.say(t, "12")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingPhone, convo.State)
	assert.Empty(t, convo.Data.Phone)
}

func TestOperatorRejectedReturnsToPhoneStep(t *testing.T) {
	h := newHarness(t)
	h.say(t, "AF")
	h.say(t, "+93700000000")

	h.say(t, "non")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingPhone, convo.State)
	assert.Equal(t, "AF", convo.Data.CountryCode, "country survives a phone redo")
}

func TestSingleOperatorCountryFallback(t *testing.T) {
	h := newHarness(t)
	h.say(t, "TR")

	// Auto-detect misses, but Turkey's lone operator is unambiguous.
	h.say(t, "05321234567")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingOperatorConfirm, convo.State)
	assert.Equal(t, "Turkcell", convo.Data.OperatorName)
	assert.Equal(t, int64(90), convo.Data.OperatorID)
}

func TestUnknownOperatorConfirmedResetsFlow(t *testing.T) {
	h := newHarness(t)
	h.say(t, "AF")
	h.say(t, "+93799999999")
	require.Equal(t, "Unknown", h.convo(t).Data.OperatorName)

	h.say(t, "oui")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingCountry, convo.State)
	assert.Empty(t, convo.Data.Phone)
}

func TestGarbageAmountHardResets(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)

	h.say(t, "banana")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingCountry, convo.State)
	assert.Empty(t, convo.Data.CountryCode)
	assert.Empty(t, convo.Data.Phone)
	assert.Empty(t, h.orders.orders)
}

func TestFreeAmountWithCommaDecimal(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)

	h.say(t, "9,99")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingOrderConfirm, convo.State)
	order := h.orders.only(t)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("10.99")))

	// The summary carries the destination-currency estimate (9.99 * 90).
	assert.Equal(t, "AFN", order.LocalCurrency)
	assert.True(t, order.LocalAmount.Equal(decimal.RequireFromString("899.10")))
}

func TestFreeAmountBelowMinimumHardResets(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)

	h.say(t, "1.50")
	assert.Equal(t, models.StateWaitingCountry, h.convo(t).State)
	assert.Empty(t, h.orders.orders)
}

func TestOrderRejectedReturnsToProductList(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)
	h.say(t, "1")
	require.Equal(t, models.StateWaitingOrderConfirm, h.convo(t).State)

	h.say(t, "non")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingAmount, convo.State)
	assert.Len(t, convo.Data.Products, 2, "product list is replayed, not refetched")
	assert.Zero(t, h.checkouts.calls)
}

func TestUnclearOrderConfirmHardResets(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)
	h.say(t, "1")

	h.say(t, "maybe tomorrow")
	assert.Equal(t, models.StateWaitingCountry, h.convo(t).State)
	assert.Zero(t, h.checkouts.calls)
}

func TestDuplicateConfirmDoesNotCreateSecondCheckout(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)
	h.say(t, "1")

	// The lease is already held, as if a first "oui" is still in flight.
	publicID := h.convo(t).Data.OrderPublicID
	require.NotEmpty(t, publicID)
	ok, err := h.leases.TryAcquire(context.Background(), "checkout:"+publicID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	h.say(t, "oui")
	assert.Zero(t, h.checkouts.calls, "duplicate confirmation must not open a second checkout")
	assert.Equal(t, models.StateWaitingOrderConfirm, h.convo(t).State)
}

func TestConfirmOnAlreadyPendingOrderFreezesOnIt(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)
	h.say(t, "1")

	// A prior confirm advanced the order but its conversation save never
	// landed, so the user is re-confirming with an expired lease.
	order := h.orders.only(t)
	order.Status = models.OrderPaymentPending
	order.PaymentCheckoutID = "co_prior"

	h.say(t, "oui")
	convo := h.convo(t)
	assert.Equal(t, models.StateWaitingPayment, convo.State)
	assert.Contains(t, h.sender.last(), "Paiement en attente")
	assert.Equal(t, "co_prior", h.orders.only(t).PaymentCheckoutID, "the original checkout stays attached")
}

func TestWaitingPaymentReplaysLink(t *testing.T) {
	h := newHarness(t)
	h.advanceToAmount(t)
	h.say(t, "1")
	h.say(t, "oui")
	require.Equal(t, models.StateWaitingPayment, h.convo(t).State)
	payURL := h.convo(t).Data.PayURL
	require.NotEmpty(t, payURL)

	// Any chatter while payment is open replays the link, nothing else moves.
	h.say(t, "AF")
	assert.Equal(t, models.StateWaitingPayment, h.convo(t).State)
	assert.Contains(t, h.sender.last(), payURL)
	assert.Equal(t, 1, h.checkouts.calls)
}

func TestTranscriptNeverStoresInboundText(t *testing.T) {
	h := newHarness(t)
	logged := &capturingLog{}
	h.engine.Messages = logged

	h.say(t, "AF")
	h.say(t, "+93700000000")

	require.NotEmpty(t, logged.msgs)
	for _, msg := range logged.msgs {
		if msg.Direction == models.MessageIn {
			assert.Equal(t, "[REDACTED]", msg.Text)
		}
		assert.NotContains(t, msg.Text, "93700000000")
	}
}

type capturingLog struct {
	msgs []models.Message
}

func (c *capturingLog) Add(_ context.Context, msg *models.Message) error {
	c.msgs = append(c.msgs, *msg)
	return nil
}
