// Package redis holds the short-lived state that does not belong in
// Postgres: resolved media sources and admission counters.
package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
}

type HealthChecker struct {
	client *goredis.Client
}

func NewHealthChecker(client *goredis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

func (h *HealthChecker) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}
