package store

import (
	"context"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Messages is the append-only transcript log. Inbound user text is stored
// redacted upstream; only bot-authored text arrives here verbatim.
type Messages struct {
	pool *pgxpool.Pool
}

func NewMessages(pool *pgxpool.Pool) *Messages {
	return &Messages{pool: pool}
}

func (s *Messages) Add(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, subject_hash, direction, type, text, provider_message_id)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, msg.ID, msg.SubjectHash, msg.Direction, msg.Type, msg.Text, msg.ProviderMessageID)
	return err
}
