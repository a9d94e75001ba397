// Package pg manages the PostgreSQL pool and schema migrations.
//
// Open parses the configuration and builds a pgx pool without dialing, so a
// database that is still starting surfaces as an error in the migration
// phase, where the boot chain can retry it, instead of aborting the process.
//
//	pool, err := pg.Open(ctx, cfg)
//	if err != nil {
//		return err // malformed PG_CONN_URL
//	}
//	migrator := pg.NewMigrator(pool, cfg, log)
//	if err := migrator.RunPendingMigrations(ctx); err != nil {
//		// ErrHealthcheckFailed, ErrMigrationsDirNotFound, ErrFailedToApplyMigrations
//	}
//
// Migrations are goose SQL files under PG_MIGRATIONS_PATH, applied through
// the pgx database/sql bridge so goose shares the pool.
//
// WithTx and TxFromContext carry a pgx.Tx through a call chain so stores can
// join a transaction started by their caller.
package pg
