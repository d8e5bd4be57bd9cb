package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check
var _ MessageStore = (*PG)(nil)

// PG persists message records in Postgres. The daemon uses it when a
// DATABASE_URL is configured.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// EnsureSchema creates the outbound_messages table if it is missing.
func (p *PG) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS outbound_messages (
			id          BIGSERIAL PRIMARY KEY,
			message_id  BIGINT NOT NULL,
			dest        TEXT NOT NULL,
			body        TEXT NOT NULL,
			state       TEXT NOT NULL,
			error_code  INT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure outbound_messages schema: %w", err)
	}
	return nil
}

func (p *PG) Insert(ctx context.Context, rec Record) (Handle, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO outbound_messages (message_id, dest, body, state, error_code)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rec.MessageID, rec.Dest, rec.Body, string(rec.State), rec.ErrorCode,
	).Scan(&id)
	if err != nil {
		return HandleNone, fmt.Errorf("insert outbound message: %w", err)
	}
	return Handle(id), nil
}

func (p *PG) Update(ctx context.Context, h Handle, state State, errorCode int) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE outbound_messages SET state = $1, error_code = $2, updated_at = now() WHERE id = $3`,
		string(state), errorCode, int64(h),
	)
	if err != nil {
		return fmt.Errorf("update outbound message %d: %w", h, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no record for handle %d", h)
	}
	return nil
}
