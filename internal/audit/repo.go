package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists entries into audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts one entry. A duplicate id means the background task was
// retried after a successful write; that is not an error.
func (r *Repository) Append(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit repository not initialised")
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, entity_type, entity_id, action, success, ip_address, user_agent, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.ActorID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Success, entry.IPAddress, entry.UserAgent, metaJSON, entry.OccurredAt)
	if err != nil && !isDuplicateEntry(err) {
		return err
	}
	return nil
}

// isDuplicateEntry reports whether err is a unique-constraint violation from
// Postgres, which Append tolerates as an already-applied write.
func isDuplicateEntry(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
