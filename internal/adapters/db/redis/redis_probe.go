package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	probeKey   = "health_check"
	probeValue = "ok"
	probeTTL   = 10 * time.Second
)

type Probe struct {
	client redis.UniversalClient
}

func NewProbe(client redis.UniversalClient) *Probe {
	return &Probe{client: client}
}

// Ping writes a short-lived key and reads it back.
func (p *Probe) Ping(ctx context.Context) error {
	if err := p.client.Set(ctx, probeKey, probeValue, probeTTL).Err(); err != nil {
		return err
	}
	got, err := p.client.Get(ctx, probeKey).Result()
	if err != nil {
		return err
	}
	if got != probeValue {
		return fmt.Errorf("unexpected %s value %q", probeKey, got)
	}
	return nil
}
