// Package redis provides Redis connection management with retry logic and
// health checks.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//	client, err := redis.Connect(ctx, cfg)
//
// Connect retries with a fixed interval until the connection succeeds or
// the retry budget runs out, which smooths over container start ordering.
package redis
