package marketcache

import (
	"context"
	"sync"
	"time"

	"github.com/coinwatch/coinwatch/internal/models"
)

// Poller drives periodic background refresh of one cache key for as long
// as it is running. Refreshes are strictly serialized: a tick that fires
// while the previous refresh is still outstanding is coalesced, so an
// older response can never overwrite a newer one. After Cancel, an
// in-flight refresh is allowed to finish but its result is discarded
// rather than delivered.
type Poller struct {
	interval time.Duration
	refresh  func(ctx context.Context)

	startOnce  sync.Once
	cancelOnce sync.Once
	cancel     context.CancelFunc
	done       chan struct{}
}

func newPoller(interval time.Duration, refresh func(ctx context.Context)) *Poller {
	return &Poller{
		interval: interval,
		refresh:  refresh,
		done:     make(chan struct{}),
	}
}

// Start begins polling. The first refresh happens immediately; subsequent
// refreshes fire on the interval. Start is a no-op after the first call.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		go p.run(ctx)
	})
}

// Cancel stops the timer. Safe to call multiple times and before Start.
func (p *Poller) Cancel() {
	p.cancelOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		} else {
			// Never started; nothing will close done.
			close(p.done)
		}
	})
}

// Done is closed once the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// refresh blocks until the fetch completes, so ticks that
			// fire meanwhile coalesce into at most one pending tick.
			p.refresh(ctx)
		}
	}
}

// SnapshotUpdate is one delivery from a snapshot poller.
type SnapshotUpdate struct {
	Assets []models.Asset
	Err    error
	At     time.Time
}

// NewSnapshotPoller creates a poller that force-refreshes the market
// snapshot for ids on each tick and delivers the result to fn. The first
// delivery may come from cache when still fresh.
func (c *Cache) NewSnapshotPoller(ids []string, interval time.Duration, fn func(SnapshotUpdate)) *Poller {
	ids = snapshotIDs(ids)
	first := true
	return newPoller(interval, func(ctx context.Context) {
		var assets []models.Asset
		var err error
		if first {
			first = false
			assets, err = c.Snapshot(ctx, ids)
		} else {
			assets, err = c.RefreshSnapshot(ctx, ids)
		}
		if ctx.Err() != nil {
			return // cancelled while in flight: discard
		}
		fn(SnapshotUpdate{Assets: assets, Err: err, At: c.now()})
	})
}

// PriceUpdate is one delivery from a simple-price poller.
type PriceUpdate struct {
	Prices map[string]models.SimplePrice
	Err    error
	At     time.Time
}

// NewPricePoller creates a poller for the simple-price mapping of ids.
func (c *Cache) NewPricePoller(ids []string, interval time.Duration, fn func(PriceUpdate)) *Poller {
	first := true
	return newPoller(interval, func(ctx context.Context) {
		var prices map[string]models.SimplePrice
		var err error
		if first {
			first = false
			prices, err = c.SimplePrice(ctx, ids)
		} else {
			prices, err = c.RefreshSimplePrice(ctx, ids)
		}
		if ctx.Err() != nil {
			return
		}
		fn(PriceUpdate{Prices: prices, Err: err, At: c.now()})
	})
}
