// This file defines the idea of a "refresh hook".
// This hook allows the cache to do something extra WHEN data is read from the cache.
// The goal of refresh is: "Keep data fresh without slowing down reads"

package refresh

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/types"
)

/*
Hook is the interface for refresh behavior.
If a refresh hook is configured, it will be called every time a cached call is served from the store.

This gives us a chance to:
- Check if the entry is about to expire
- Trigger a background recompute

The wrapper does NOT care what the hook does.
It just calls OnRead and returns the cached value.
*/
type Hook interface {

	/*
		OnRead is called after a hit with the entry's lifetime and a reload
		function that recomputes the value and stores it.
		This method MUST be fast and non blocking because it runs on the hot read path.
	*/
	OnRead(key string, lt types.Lifetime, reload func())
}

/*
Ahead recomputes entries in the background shortly before they expire, so
callers keep hitting while the new value is computed.

BEHAVIOR:
- An entry is due once its remaining lifetime is below Window
- Entries without an expiry are never due
- At most one reload per key runs at a time; triggers arriving meanwhile join it
*/
type Ahead struct {
	Window time.Duration

	clock   clock.Clock
	metrics types.Metrics
	logger  *zap.Logger

	sf singleflight.Group
	wg sync.WaitGroup
}

// NewAhead creates a refresh-ahead hook.
func NewAhead(window time.Duration, clk clock.Clock, metrics types.Metrics, logger *zap.Logger) *Ahead {
	if clk == nil {
		clk = clock.System()
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ahead{
		Window:  window,
		clock:   clk,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "refresh")),
	}
}

// Due reports whether lt is close enough to expiry to reload at now.
func (a *Ahead) Due(lt types.Lifetime, now time.Time) bool {
	if a.Window <= 0 || lt.ExpiresAt.IsZero() {
		return false
	}
	return lt.ExpiresAt.Sub(now) < a.Window
}

func (a *Ahead) OnRead(key string, lt types.Lifetime, reload func()) {
	if !a.Due(lt, a.clock.Now()) {
		return
	}
	a.Trigger(key, reload)
}

// Trigger starts reload in the background unless one is already running for key.
func (a *Ahead) Trigger(key string, reload func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_, _, shared := a.sf.Do(key, func() (any, error) {
			a.metrics.Refresh()
			a.logger.Debug("refreshing entry ahead of expiry", zap.String("key", key))
			reload()
			return nil, nil
		})
		if shared {
			a.logger.Debug("refresh already in flight", zap.String("key", key))
		}
	}()
}

// Wait blocks until every triggered reload has finished.
func (a *Ahead) Wait() {
	a.wg.Wait()
}
