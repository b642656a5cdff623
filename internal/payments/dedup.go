package payments

import (
	"context"
	"time"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/redis"
)

// dedupGuard is the fast-path webhook deduplicator. It is advisory only:
// the conditional processed_at update remains the authoritative gate, so a
// redis outage degrades to slower duplicate handling, never to double apply.
type dedupGuard struct {
	store  redis.DedupStore
	ttl    time.Duration
	logger *logger.Logger
}

func newDedupGuard(store redis.DedupStore, ttl time.Duration, logg *logger.Logger) *dedupGuard {
	return &dedupGuard{store: store, ttl: ttl, logger: logg}
}

// seen claims the event id for this delivery. It returns true when another
// delivery already claimed it.
func (g *dedupGuard) seen(ctx context.Context, scope, eventID string) bool {
	if g == nil || g.store == nil || eventID == "" {
		return false
	}
	fresh, err := g.store.SetNX(ctx, g.store.DedupKey(scope, eventID), time.Now().Unix(), g.ttl)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn(ctx, "webhook dedup store unavailable, falling back to ledger guard")
		}
		return false
	}
	return !fresh
}

// release frees the claim so a failed delivery can be retried by the
// provider.
func (g *dedupGuard) release(ctx context.Context, scope, eventID string) {
	if g == nil || g.store == nil || eventID == "" {
		return
	}
	if err := g.store.Del(ctx, g.store.DedupKey(scope, eventID)); err != nil && g.logger != nil {
		g.logger.Warn(ctx, "webhook dedup release failed")
	}
}
