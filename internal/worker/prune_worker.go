package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner drops expired entries from an in-process store.
type Pruner interface {
	Prune() int
}

// StartPruneWorker prunes on every tick until ctx is done. The returned channel closes when
// the worker has stopped.
func StartPruneWorker(ctx context.Context, name string, pruner Pruner, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if pruner == nil || interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := pruner.Prune(); n > 0 {
					logger.Debug("pruned expired entries", zap.String("store", name), zap.Int("count", n))
				}
			}
		}
	}()
	return done
}
