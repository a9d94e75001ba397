package certificate

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/certdesk/integration/database/pg"
)

// ProviderLetsEncrypt marks certificates managed by certbot.
const ProviderLetsEncrypt = "letsencrypt"

// Certificate is the subset of a certificate row the renewal sweep needs.
type Certificate struct {
	ID          int64
	NiceName    string
	DomainNames []string
	ExpiresOn   time.Time
}

// Store reads and updates certificate rows.
type Store interface {
	ListExpiring(ctx context.Context, provider string, before time.Time) ([]Certificate, error)
	SetExpiry(ctx context.Context, id int64, expiresOn time.Time) error
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListExpiring(ctx context.Context, provider string, before time.Time) ([]Certificate, error) {
	rows, err := pg.Conn(ctx, s.pool).Query(ctx,
		`SELECT id, nice_name, domain_names, expires_on FROM certificate
		 WHERE is_deleted = FALSE AND provider = $1 AND expires_on IS NOT NULL AND expires_on < $2
		 ORDER BY expires_on`,
		provider, before,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Certificate, error) {
		var c Certificate
		err := row.Scan(&c.ID, &c.NiceName, &c.DomainNames, &c.ExpiresOn)
		return c, err
	})
}

func (s *PostgresStore) SetExpiry(ctx context.Context, id int64, expiresOn time.Time) error {
	tag, err := pg.Conn(ctx, s.pool).Exec(ctx,
		`UPDATE certificate SET expires_on = $2, modified_on = now() WHERE id = $1`,
		id, expiresOn,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
