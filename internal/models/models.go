package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderDraft           OrderStatus = "DRAFT"
	OrderPaymentPending  OrderStatus = "PAYMENT_PENDING"
	OrderProcessingTopup OrderStatus = "PROCESSING_TOPUP"
	OrderDone            OrderStatus = "DONE"
	OrderFailed          OrderStatus = "FAILED"
)

var statusRank = map[OrderStatus]int{
	OrderDraft:           0,
	OrderPaymentPending:  1,
	OrderProcessingTopup: 2,
	OrderDone:            3,
	OrderFailed:          3,
}

// Terminal reports whether s is an end state. DONE and FAILED are immutable.
func (s OrderStatus) Terminal() bool {
	return s == OrderDone || s == OrderFailed
}

// CanTransition reports whether an order may move from s to next.
// Status only moves forward; terminal states accept nothing.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	from, ok1 := statusRank[s]
	to, ok2 := statusRank[next]
	if !ok1 || !ok2 {
		return false
	}
	return to == from+1
}

type Order struct {
	PublicID    string
	SubjectHash string
	Status      OrderStatus

	OperatorID   int64
	OperatorName string
	CountryCode  string

	Amount        decimal.Decimal
	Currency      string
	LocalAmount   decimal.Decimal
	LocalCurrency string
	Fee           decimal.Decimal
	Total         decimal.Decimal

	PhoneMasked             string
	PhoneEncrypted          string
	ChannelAddressEncrypted string

	PaymentCheckoutID  string
	PaidAt             *time.Time
	TopupTransactionID string
	CompletedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ConversationState string

const (
	StateWaitingCountry         ConversationState = "WAITING_COUNTRY"
	StateWaitingPhone           ConversationState = "WAITING_PHONE"
	StateWaitingOperatorConfirm ConversationState = "WAITING_OPERATOR_CONFIRM"
	StateWaitingServiceType     ConversationState = "WAITING_SERVICE_TYPE"
	StateWaitingAmount          ConversationState = "WAITING_AMOUNT"
	StateWaitingOrderConfirm    ConversationState = "WAITING_ORDER_CONFIRM"
	StateWaitingPayment         ConversationState = "WAITING_PAYMENT"
)

type ServiceType string

const (
	ServiceAirtime ServiceType = "AIRTIME"
	ServiceData    ServiceType = "DATA"
	ServiceVoice   ServiceType = "VOICE"
)

type Product struct {
	ProductID     int64           `json:"productId,omitempty"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	LocalAmount   decimal.Decimal `json:"localAmount"`
	LocalCurrency string          `json:"localCurrency"`
}

// StateData is the conversation working set. Fields fill in as the user
// advances; a hard reset clears the whole struct.
type StateData struct {
	CountryCode string `json:"countryCode,omitempty"`
	CountryName string `json:"countryName,omitempty"`
	Currency    string `json:"currency,omitempty"`

	Phone       string `json:"phone,omitempty"`
	PhoneMasked string `json:"phoneMasked,omitempty"`

	OperatorID   int64  `json:"operatorId,omitempty"`
	OperatorName string `json:"operatorName,omitempty"`

	ServiceType ServiceType `json:"serviceType,omitempty"`
	Products    []Product   `json:"products,omitempty"`

	ProductLabel  string          `json:"productLabel,omitempty"`
	Price         decimal.Decimal `json:"price,omitempty"`
	PriceCurrency string          `json:"priceCurrency,omitempty"`
	LocalAmount   decimal.Decimal `json:"localAmount,omitempty"`
	LocalCurrency string          `json:"localCurrency,omitempty"`
	Fee           decimal.Decimal `json:"fee,omitempty"`
	Total         decimal.Decimal `json:"total,omitempty"`

	OrderPublicID string `json:"orderPublicId,omitempty"`
	PayURL        string `json:"payUrl,omitempty"`
}

type Conversation struct {
	SubjectHash    string
	Language       string
	State          ConversationState
	Data           StateData
	LastActivityAt time.Time
}

// ResetWorkingData is the hard-reset path: back to the first question with
// an empty working set.
func (c *Conversation) ResetWorkingData() {
	c.State = StateWaitingCountry
	c.Data = StateData{}
}

type MessageDirection string

const (
	MessageIn  MessageDirection = "IN"
	MessageOut MessageDirection = "OUT"
)

type Message struct {
	ID                string
	SubjectHash       string
	Direction         MessageDirection
	Type              string
	Text              string
	ProviderMessageID string
	CreatedAt         time.Time
}
