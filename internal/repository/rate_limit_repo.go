package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/service"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRateLimitRepository implementa service.RateLimitStore sobre Postgres.
type PgRateLimitRepository struct {
	pool pgQuerier
}

var _ service.RateLimitStore = (*PgRateLimitRepository)(nil)

func NewPgRateLimitRepository(pool pgQuerier) *PgRateLimitRepository {
	return &PgRateLimitRepository{pool: pool}
}

func (r *PgRateLimitRepository) Load(ctx context.Context, key string) (domain.RateLimitState, error) {
	const query = `
		SELECT state
		FROM chat_rate_limits
		WHERE key = $1
	`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RateLimitState{}, nil
	}
	if err != nil {
		return domain.RateLimitState{}, err
	}
	return service.DecodeRateLimitState(raw), nil
}

func (r *PgRateLimitRepository) Save(ctx context.Context, key string, state domain.RateLimitState) error {
	const query = `
		INSERT INTO chat_rate_limits (key, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`
	payload, err := service.EncodeRateLimitState(state)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, key, string(payload), time.Now().UTC())
	return err
}

// DeleteExpired borra filas sin actividad desde before; las ventanas ya vencieron.
func (r *PgRateLimitRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `
		DELETE FROM chat_rate_limits
		WHERE updated_at < $1
	`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
