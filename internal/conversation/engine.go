// Package conversation turns inbound chat messages into order drafts and
// payment checkouts. One inbound message yields at most one outbound
// message plus state transitions; anything unrecognized hard-resets the
// flow rather than attempting partial recovery.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
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
)

const checkoutLeaseTTL = 60 * time.Second

type ConversationStore interface {
	Get(ctx context.Context, subjectHash string) (*models.Conversation, error)
	Upsert(ctx context.Context, convo *models.Conversation) error
}

type OrderCreator interface {
	Create(ctx context.Context, order *models.Order) error
	MarkPaymentPending(ctx context.Context, publicID, checkoutID string) error
}

type MessageLog interface {
	Add(ctx context.Context, msg *models.Message) error
}

type Catalog interface {
	Countries(ctx context.Context) ([]catalog.Country, error)
	FindCountry(ctx context.Context, input string) (*catalog.Country, error)
	ResolveOperator(ctx context.Context, phone string) (*catalog.Operator, error)
	OperatorsByCountry(ctx context.Context, isoCode string) ([]catalog.Operator, error)
	ListProducts(ctx context.Context, operatorID int64, serviceType models.ServiceType) ([]models.Product, error)
	EstimateLocal(ctx context.Context, operatorID int64, amount decimal.Decimal) (decimal.Decimal, string, error)
}

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, orderPublicID string, amount decimal.Decimal, currency, description string) (sumup.Checkout, error)
}

type Sender interface {
	SendText(ctx context.Context, address, body string) error
}

type FieldEncryptor interface {
	Encrypt(plain string) (string, error)
}

type Engine struct {
	Convos    ConversationStore
	Orders    OrderCreator
	Messages  MessageLog
	Catalog   Catalog
	Checkouts CheckoutCreator
	Sender    Sender
	Leases    lock.Store
	Encryptor FieldEncryptor
	Pricing   pricing.Service
	Format    reply.Formatter

	DefaultLang string
	MinAmount   decimal.Decimal
	MaxAmount   decimal.Decimal

	// AllowedCountries restricts where top-ups are sold. Empty means no
	// restriction.
	AllowedCountries []string

	// DetectLanguage is optional best-effort language detection; failures
	// only keep the previous language.
	DetectLanguage func(ctx context.Context, text string) (string, error)

	Now func() time.Time
}

// HandleIncoming processes one user message. The returned error is for the
// transport boundary to log; the user always gets a reply or silence, never
// a raw error.
func (e *Engine) HandleIncoming(ctx context.Context, from, text, messageID string) error {
	subjectHash := secrets.SubjectHash(from)
	e.logMessage(ctx, subjectHash, models.MessageIn, "[REDACTED]", messageID)

	convo, err := e.Convos.Get(ctx, subjectHash)
	if errors.Is(err, store.ErrNotFound) {
		convo = &models.Conversation{
			SubjectHash: subjectHash,
			Language:    e.DefaultLang,
			State:       models.StateWaitingCountry,
		}
		convo.LastActivityAt = e.now()
		if err := e.Convos.Upsert(ctx, convo); err != nil {
			return fmt.Errorf("init conversation: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	if e.DetectLanguage != nil {
		if detected, err := e.DetectLanguage(ctx, text); err == nil && detected != "" && detected != convo.Language {
			convo.Language = detected
		}
	}

	text = strings.TrimSpace(text)

	switch convo.State {
	case models.StateWaitingCountry:
		return e.stepCountry(ctx, from, convo, text)
	case models.StateWaitingPhone:
		return e.stepPhone(ctx, from, convo, text)
	case models.StateWaitingOperatorConfirm:
		return e.stepOperatorConfirm(ctx, from, convo, text)
	case models.StateWaitingServiceType:
		return e.stepServiceType(ctx, from, convo, text)
	case models.StateWaitingAmount:
		return e.stepAmount(ctx, from, convo, text)
	case models.StateWaitingOrderConfirm:
		return e.stepOrderConfirm(ctx, from, convo, text)
	case models.StateWaitingPayment:
		// Frozen until settlement completes; just replay the link.
		return e.send(ctx, from, convo, e.Format.PaymentPending(convo.Language, convo.Data.PayURL))
	default:
		return e.hardReset(ctx, from, convo)
	}
}

func (e *Engine) stepCountry(ctx context.Context, from string, convo *models.Conversation, text string) error {
	country, err := e.Catalog.FindCountry(ctx, text)
	if err != nil {
		return fmt.Errorf("find country: %w", err)
	}
	if country == nil {
		countries, err := e.Catalog.Countries(ctx)
		if err != nil {
			return fmt.Errorf("list countries: %w", err)
		}
		top := make([]reply.CountryOption, 0, 8)
		for _, c := range countries {
			if len(top) == 8 {
				break
			}
			top = append(top, reply.CountryOption{ISOCode: c.ISOCode, Name: c.Name})
		}
		return e.send(ctx, from, convo, e.Format.AskCountry(convo.Language, top))
	}

	if !e.countryAllowed(country.ISOCode) {
		return e.send(ctx, from, convo, e.Format.CountryUnavailable(convo.Language))
	}

	convo.State = models.StateWaitingPhone
	convo.Data = models.StateData{
		CountryCode: country.ISOCode,
		CountryName: country.Name,
		Currency:    country.CurrencyCode,
	}
	if err := e.save(ctx, convo); err != nil {
		return err
	}
	return e.send(ctx, from, convo, e.Format.AskPhone(convo.Language))
}

func (e *Engine) stepPhone(ctx context.Context, from string, convo *models.Conversation, text string) error {
	phone, err := secrets.NormalizePhone(text, convo.Data.CountryCode)
	if err != nil {
		return e.send(ctx, from, convo, e.Format.InvalidPhone(convo.Language))
	}

	op, err := e.Catalog.ResolveOperator(ctx, phone)
	if err != nil {
		return fmt.Errorf("resolve operator: %w", err)
	}
	if op == nil {
		// Auto-detect misses on numbers outside the provider's prefix
		// tables; a country with a single operator is still unambiguous.
		ops, err := e.Catalog.OperatorsByCountry(ctx, convo.Data.CountryCode)
		if err != nil {
			return fmt.Errorf("list operators: %w", err)
		}
		if len(ops) == 1 {
			op = &ops[0]
		}
	}

	convo.Data.Phone = phone
	convo.Data.PhoneMasked = secrets.MaskPhone(phone)
	if op != nil {
		convo.Data.OperatorID = op.ID
		convo.Data.OperatorName = op.Name
	} else {
		convo.Data.OperatorID = 0
		convo.Data.OperatorName = "Unknown"
	}

	convo.State = models.StateWaitingOperatorConfirm
	if err := e.save(ctx, convo); err != nil {
		return err
	}
	return e.send(ctx, from, convo,
		e.Format.ConfirmOperator(convo.Language, convo.Data.OperatorName, convo.Data.PhoneMasked))
}

func (e *Engine) stepOperatorConfirm(ctx context.Context, from string, convo *models.Conversation, text string) error {
	if !isYes(text) {
		// Negative or unclear: back to phone entry, keeping country data.
		convo.State = models.StateWaitingPhone
		if err := e.save(ctx, convo); err != nil {
			return err
		}
		return e.send(ctx, from, convo, e.Format.AskPhone(convo.Language))
	}

	if convo.Data.OperatorID == 0 {
		return e.hardReset(ctx, from, convo)
	}

	convo.State = models.StateWaitingServiceType
	if err := e.save(ctx, convo); err != nil {
		return err
	}
	return e.send(ctx, from, convo, e.Format.AskServiceType(convo.Language))
}

func (e *Engine) stepServiceType(ctx context.Context, from string, convo *models.Conversation, text string) error {
	serviceType := parseServiceType(text)
	if serviceType == "" {
		return e.hardReset(ctx, from, convo)
	}

	products, err := e.Catalog.ListProducts(ctx, convo.Data.OperatorID, serviceType)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	convo.Data.ServiceType = serviceType
	convo.Data.Products = products
	convo.State = models.StateWaitingAmount
	if err := e.save(ctx, convo); err != nil {
		return err
	}
	return e.send(ctx, from, convo, e.Format.AskProduct(convo.Language, products))
}

func (e *Engine) stepAmount(ctx context.Context, from string, convo *models.Conversation, text string) error {
	// A bare in-range integer picks from the product list; anything else
	// is tried as a typed amount ("9.99", FR-style "9,99").
	if idx, err := strconv.Atoi(text); err == nil && idx >= 1 && idx <= len(convo.Data.Products) {
		return e.draftOrder(ctx, from, convo, convo.Data.Products[idx-1])
	}

	amount, ok := parseFreeAmount(text)
	if !ok || amount.LessThan(e.MinAmount) || amount.GreaterThan(e.MaxAmount) {
		return e.hardReset(ctx, from, convo)
	}
	product := models.Product{
		Name:          "Montant libre",
		Amount:        amount,
		Currency:      "EUR",
		LocalAmount:   amount,
		LocalCurrency: "EUR",
	}
	// Best effort: show what the recipient receives in their currency. A
	// failed estimate keeps the billing-currency display.
	if local, currency, err := e.Catalog.EstimateLocal(ctx, convo.Data.OperatorID, amount); err == nil && currency != "" {
		product.LocalAmount = local
		product.LocalCurrency = currency
	}
	return e.draftOrder(ctx, from, convo, product)
}

// draftOrder is the handoff boundary to settlement: the order is persisted
// DRAFT with encrypted PII and the priced totals the reconciler will later
// verify against the provider's report.
func (e *Engine) draftOrder(ctx context.Context, from string, convo *models.Conversation, product models.Product) error {
	quote, err := e.Pricing.Quote(product.Amount)
	if err != nil {
		if errors.Is(err, pricing.ErrUnsupportedAmount) || errors.Is(err, pricing.ErrInvalidAmount) {
			return e.hardReset(ctx, from, convo)
		}
		return err
	}

	phoneEnc, err := e.Encryptor.Encrypt(convo.Data.Phone)
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}
	addressEnc, err := e.Encryptor.Encrypt(from)
	if err != nil {
		return fmt.Errorf("encrypt channel address: %w", err)
	}

	now := e.now()
	order := &models.Order{
		PublicID:                secrets.NewPublicID(),
		SubjectHash:             convo.SubjectHash,
		Status:                  models.OrderDraft,
		OperatorID:              convo.Data.OperatorID,
		OperatorName:            convo.Data.OperatorName,
		CountryCode:             convo.Data.CountryCode,
		Amount:                  quote.Amount,
		Currency:                product.Currency,
		LocalAmount:             product.LocalAmount,
		LocalCurrency:           product.LocalCurrency,
		Fee:                     quote.Fee,
		Total:                   quote.Total,
		PhoneMasked:             convo.Data.PhoneMasked,
		PhoneEncrypted:          phoneEnc,
		ChannelAddressEncrypted: addressEnc,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := e.Orders.Create(ctx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	convo.Data.ProductLabel = product.Name
	convo.Data.Price = quote.Amount
	convo.Data.PriceCurrency = product.Currency
	convo.Data.LocalAmount = product.LocalAmount
	convo.Data.LocalCurrency = product.LocalCurrency
	convo.Data.Fee = quote.Fee
	convo.Data.Total = quote.Total
	convo.Data.OrderPublicID = order.PublicID
	convo.State = models.StateWaitingOrderConfirm
	if err := e.save(ctx, convo); err != nil {
		return err
	}

	summary := reply.OrderSummary{
		CountryLabel: fmt.Sprintf("%s (%s)", convo.Data.CountryName, convo.Data.CountryCode),
		PhoneMasked:  convo.Data.PhoneMasked,
		OperatorName: convo.Data.OperatorName,
		ServiceLabel: e.Format.ServiceLabel(convo.Language, convo.Data.ServiceType),
		ProductLabel: product.Name,
		Price:        quote.Amount,
		Currency:     product.Currency,
		Fee:          quote.Fee,
		Total:        quote.Total,
		Reference:    order.PublicID,
	}
	return e.send(ctx, from, convo, e.Format.Summary(convo.Language, summary))
}

func (e *Engine) stepOrderConfirm(ctx context.Context, from string, convo *models.Conversation, text string) error {
	if isNo(text) {
		// Back to the product list, keeping everything else.
		convo.State = models.StateWaitingAmount
		if err := e.save(ctx, convo); err != nil {
			return err
		}
		return e.send(ctx, from, convo, e.Format.AskProduct(convo.Language, convo.Data.Products))
	}
	if !isYes(text) {
		return e.hardReset(ctx, from, convo)
	}

	publicID := convo.Data.OrderPublicID
	if publicID == "" {
		return e.hardReset(ctx, from, convo)
	}

	// One checkout per order: a duplicate "yes" loses the lease and gets
	// the pending notice instead of a second checkout.
	ok, err := e.Leases.TryAcquire(ctx, "checkout:"+publicID, checkoutLeaseTTL)
	if err != nil {
		return fmt.Errorf("acquire checkout lease: %w", err)
	}
	if !ok {
		return e.send(ctx, from, convo, e.Format.PaymentPending(convo.Language, convo.Data.PayURL))
	}

	// The charge happens in the product's billing currency, not the
	// destination country's.
	currency := convo.Data.PriceCurrency
	if currency == "" {
		currency = "EUR"
	}
	checkout, err := e.Checkouts.CreateCheckout(ctx, publicID, convo.Data.Total, currency, "Recharge mobile")
	if err != nil {
		return fmt.Errorf("create checkout: %w", err)
	}

	if err := e.Orders.MarkPaymentPending(ctx, publicID, checkout.CheckoutID); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			// A prior confirm already attached a checkout to this order;
			// freeze the conversation on it and replay what we have.
			convo.State = models.StateWaitingPayment
			if err := e.save(ctx, convo); err != nil {
				return err
			}
			return e.send(ctx, from, convo, e.Format.PaymentPending(convo.Language, convo.Data.PayURL))
		}
		return fmt.Errorf("mark payment pending: %w", err)
	}

	convo.Data.PayURL = checkout.CheckoutURL
	convo.State = models.StateWaitingPayment
	if err := e.save(ctx, convo); err != nil {
		return err
	}
	return e.send(ctx, from, convo, e.Format.PaymentLink(convo.Language, checkout.CheckoutURL))
}

func (e *Engine) hardReset(ctx context.Context, from string, convo *models.Conversation) error {
	convo.ResetWorkingData()
	if err := e.save(ctx, convo); err != nil {
		return err
	}
	return e.send(ctx, from, convo, e.Format.FallbackReset(convo.Language))
}

func (e *Engine) save(ctx context.Context, convo *models.Conversation) error {
	convo.LastActivityAt = e.now()
	if err := e.Convos.Upsert(ctx, convo); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (e *Engine) send(ctx context.Context, address string, convo *models.Conversation, body string) error {
	if err := e.Sender.SendText(ctx, address, body); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	e.logMessage(ctx, convo.SubjectHash, models.MessageOut, body, "")
	return nil
}

// logMessage appends to the transcript, best effort. Inbound text arrives
// already redacted; outbound bot text carries no PII beyond masked digits.
func (e *Engine) logMessage(ctx context.Context, subjectHash string, dir models.MessageDirection, text, providerID string) {
	if e.Messages == nil {
		return
	}
	err := e.Messages.Add(ctx, &models.Message{
		SubjectHash:       subjectHash,
		Direction:         dir,
		Type:              "text",
		Text:              text,
		ProviderMessageID: providerID,
	})
	if err != nil {
		log.Printf("message log failed: %v", err)
	}
}

func (e *Engine) countryAllowed(iso string) bool {
	if len(e.AllowedCountries) == 0 {
		return true
	}
	for _, c := range e.AllowedCountries {
		if strings.EqualFold(c, iso) {
			return true
		}
	}
	return false
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
