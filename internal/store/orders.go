package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// ErrStaleTransition is returned when a status-guarded update matched no
// row: the order moved on (or finished) under someone else.
var ErrStaleTransition = errors.New("stale status transition")

type Orders struct {
	pool *pgxpool.Pool
}

func NewOrders(pool *pgxpool.Pool) *Orders {
	return &Orders{pool: pool}
}

const orderColumns = `
	public_id, subject_hash, status,
	operator_id, operator_name, country_code,
	amount, currency, local_amount, local_currency, fee, total,
	phone_masked, phone_enc, channel_address_enc,
	payment_checkout_id, paid_at, topup_transaction_id, completed_at,
	created_at, updated_at`

func (s *Orders) Create(ctx context.Context, order *models.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (
			public_id, subject_hash, status,
			operator_id, operator_name, country_code,
			amount, currency, local_amount, local_currency, fee, total,
			phone_masked, phone_enc, channel_address_enc,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
	`,
		order.PublicID,
		order.SubjectHash,
		order.Status,
		order.OperatorID,
		order.OperatorName,
		order.CountryCode,
		order.Amount,
		order.Currency,
		order.LocalAmount,
		order.LocalCurrency,
		order.Fee,
		order.Total,
		order.PhoneMasked,
		order.PhoneEncrypted,
		order.ChannelAddressEncrypted,
		order.CreatedAt,
	)
	return err
}

func (s *Orders) Get(ctx context.Context, publicID string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE public_id=$1`, publicID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return order, err
}

// ListAwaitingSettlement returns orders the poller must still drive to a
// terminal state: awaiting payment, plus orders a crash left mid-settlement.
func (s *Orders) ListAwaitingSettlement(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ('PAYMENT_PENDING','PROCESSING_TOPUP')
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// MarkPaymentPending attaches the checkout and advances DRAFT orders only.
func (s *Orders) MarkPaymentPending(ctx context.Context, publicID, checkoutID string) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status='PAYMENT_PENDING', payment_checkout_id=$2, updated_at=now()
		WHERE public_id=$1 AND status='DRAFT'
	`, publicID, checkoutID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkProcessing is the settlement commit point: it only fires from
// PAYMENT_PENDING, so a re-delivered signal can never rewind a later state.
func (s *Orders) MarkProcessing(ctx context.Context, publicID string, paidAt time.Time) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status='PROCESSING_TOPUP', paid_at=$2, updated_at=now()
		WHERE public_id=$1 AND status='PAYMENT_PENDING'
	`, publicID, paidAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (s *Orders) MarkDone(ctx context.Context, publicID, transactionID string, completedAt time.Time) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status='DONE', topup_transaction_id=$2, completed_at=$3, updated_at=now()
		WHERE public_id=$1 AND status='PROCESSING_TOPUP'
	`, publicID, transactionID, completedAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (s *Orders) MarkFailed(ctx context.Context, publicID string) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status='FAILED', updated_at=now()
		WHERE public_id=$1 AND status='PROCESSING_TOPUP'
	`, publicID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var checkoutID, txID sql.NullString
	var paidAt, completedAt sql.NullTime

	err := row.Scan(
		&order.PublicID,
		&order.SubjectHash,
		&order.Status,
		&order.OperatorID,
		&order.OperatorName,
		&order.CountryCode,
		&order.Amount,
		&order.Currency,
		&order.LocalAmount,
		&order.LocalCurrency,
		&order.Fee,
		&order.Total,
		&order.PhoneMasked,
		&order.PhoneEncrypted,
		&order.ChannelAddressEncrypted,
		&checkoutID,
		&paidAt,
		&txID,
		&completedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if checkoutID.Valid {
		order.PaymentCheckoutID = checkoutID.String
	}
	if txID.Valid {
		order.TopupTransactionID = txID.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		order.CompletedAt = &t
	}
	return &order, nil
}
