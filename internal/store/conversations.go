package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Conversations struct {
	pool *pgxpool.Pool
}

func NewConversations(pool *pgxpool.Pool) *Conversations {
	return &Conversations{pool: pool}
}

func (s *Conversations) Get(ctx context.Context, subjectHash string) (*models.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT subject_hash, language, state, state_data, last_activity_at
		FROM conversations WHERE subject_hash=$1
	`, subjectHash)

	var convo models.Conversation
	var data []byte
	err := row.Scan(&convo.SubjectHash, &convo.Language, &convo.State, &data, &convo.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &convo.Data); err != nil {
			return nil, err
		}
	}
	return &convo, nil
}

func (s *Conversations) Upsert(ctx context.Context, convo *models.Conversation) error {
	data, err := json.Marshal(convo.Data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (subject_hash, language, state, state_data, last_activity_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (subject_hash) DO UPDATE
		SET language=EXCLUDED.language,
			state=EXCLUDED.state,
			state_data=EXCLUDED.state_data,
			last_activity_at=EXCLUDED.last_activity_at
	`, convo.SubjectHash, convo.Language, convo.State, data, convo.LastActivityAt)
	return err
}
