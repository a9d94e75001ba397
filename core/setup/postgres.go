package setup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/certdesk/integration/database/pg"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CountActiveUsers(ctx context.Context) (int, error) {
	var n int
	err := pg.Conn(ctx, s.pool).
		QueryRow(ctx, `SELECT count(*) FROM "user" WHERE is_deleted = FALSE`).
		Scan(&n)
	return n, err
}

func (s *PostgresStore) CreateAdmin(ctx context.Context, admin Admin) error {
	roles, err := json.Marshal(admin.Roles)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ctx := pg.WithTx(ctx, tx)
		q := pg.Conn(ctx, s.pool)

		var userID int64
		err := q.QueryRow(ctx,
			`INSERT INTO "user" (email, name, nickname, roles) VALUES ($1, $2, $3, $4) RETURNING id`,
			admin.Email, admin.Name, admin.Nickname, roles,
		).Scan(&userID)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		_, err = q.Exec(ctx,
			`INSERT INTO auth (user_id, type, secret) VALUES ($1, 'password', $2)`,
			userID, admin.PasswordHash,
		)
		if err != nil {
			return fmt.Errorf("insert auth: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) EnsureSetting(ctx context.Context, setting Setting) (bool, error) {
	meta, err := json.Marshal(setting.Meta)
	if err != nil {
		return false, err
	}

	tag, err := pg.Conn(ctx, s.pool).Exec(ctx,
		`INSERT INTO setting (id, name, description, value, meta) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		setting.ID, setting.Name, setting.Description, setting.Value, meta,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListDNSCertificates(ctx context.Context) ([]DNSCertificate, error) {
	rows, err := pg.Conn(ctx, s.pool).Query(ctx,
		`SELECT id,
		        COALESCE(meta->>'dns_provider', ''),
		        COALESCE(meta->>'dns_provider_credentials', '')
		   FROM certificate
		  WHERE is_deleted = FALSE
		    AND provider = 'letsencrypt'
		    AND (meta->>'dns_challenge')::boolean IS TRUE
		  ORDER BY id`)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DNSCertificate, error) {
		var c DNSCertificate
		err := row.Scan(&c.ID, &c.Provider, &c.Credentials)
		return c, err
	})
}
