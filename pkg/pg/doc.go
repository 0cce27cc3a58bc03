// Package pg is the PostgreSQL backend of the metering engine.
//
// Connect opens a pgx pool with bounded retries, Migrate applies the embedded
// goose migrations and Healthcheck returns a ping probe. Store implements the
// account, meeting, usage, subscription and notification stores in single
// statements, so the uniqueness and compare-and-set rules hold across
// processes:
//
//   - a partial unique index allows one open meeting per user;
//   - meeting closes and warning marks only write rows still in the expected state;
//   - subscriptions are upserted by provider subscription id.
//
// Driver errors are translated into the pkg/store taxonomy: missing rows become
// store.ErrNotFound, unique violations store.ErrConflict and timeouts or lost
// connections store.ErrUnavailable.
//
// Typical wiring:
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	st := pg.NewStore(pool)
package pg
