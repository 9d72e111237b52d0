// Package pg provides PostgreSQL connection pooling via pgxpool, with
// connection retries, health checks, and embedded goose migrations.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//	pool, err := pg.Connect(ctx, cfg)
//	if err := pg.Migrate(ctx, pool, migrationsFS, slog.Default()); err != nil {
//		...
//	}
package pg
