package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore remembers the client keys of processed requests.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

// IdempotencyKey scopes a client supplied key to a company.
func IdempotencyKey(companyID int64, key string) string {
	return fmt.Sprintf("%d:%s", companyID, key)
}

// CheckAndInsert claims key for module. A key claimed before returns
// ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" || module == "" {
		return errors.New("idempotency key and module required")
	}
	cmd, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)
ON CONFLICT (key, module) DO NOTHING`, key, module, s.now())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases the claim of module on key so a failed request can be
// retried. Claims of other modules on the same key stay.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil || key == "" || module == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}

// Cleanup purges keys older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cmd, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
