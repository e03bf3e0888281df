package app

import (
	"context"

	"github.com/coinwatch/coinwatch/internal/marketcache"
)

// AddRefreshListener registers a callback invoked after every snapshot
// refresh.
func (a *App) AddRefreshListener(fn func(marketcache.SnapshotUpdate)) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// StartPolling subscribes the current watchlist to scheduled background
// refresh. Every delivery also runs alert evaluation.
func (a *App) StartPolling() {
	a.pollMu.Lock()
	defer a.pollMu.Unlock()
	a.startPollerLocked()
}

// StopPolling cancels the active subscription, discarding any in-flight
// refresh result.
func (a *App) StopPolling() {
	a.pollMu.Lock()
	defer a.pollMu.Unlock()
	a.stopPollerLocked()
}

// RestartPolling re-subscribes with the current watchlist. Called after
// watchlist mutations so the polled key follows the parameters: the old
// key's timer is cancelled and its in-flight result discarded.
func (a *App) RestartPolling() {
	a.pollMu.Lock()
	defer a.pollMu.Unlock()
	if a.poller == nil {
		return
	}
	a.stopPollerLocked()
	a.startPollerLocked()
}

func (a *App) startPollerLocked() {
	if a.poller != nil {
		return
	}

	coins := a.Watchlist.Coins()
	interval := a.Config.Poll.GetInterval()

	a.poller = a.Cache.NewSnapshotPoller(coins, interval, a.onRefresh)
	a.poller.Start(context.Background())

	a.Logger.Info().
		Int("coins", len(coins)).
		Dur("interval", interval).
		Msg("Snapshot polling started")
}

func (a *App) stopPollerLocked() {
	if a.poller == nil {
		return
	}
	a.poller.Cancel()
	<-a.poller.Done()
	a.poller = nil
}

func (a *App) onRefresh(update marketcache.SnapshotUpdate) {
	if update.Err != nil {
		a.Logger.Warn().Err(update.Err).Msg("Snapshot refresh failed")
	}

	if len(update.Assets) > 0 {
		if triggered := a.Alerts.Evaluate(update.Assets); len(triggered) > 0 {
			a.Logger.Info().Int("count", len(triggered)).Msg("Alerts transitioned to triggered")
		}
	}

	a.listenerMu.Lock()
	listeners := make([]func(marketcache.SnapshotUpdate), len(a.listeners))
	copy(listeners, a.listeners)
	a.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(update)
	}
}
