package marketcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinwatch/coinwatch/internal/common"
)

func TestSnapshotPoller_DeliversUpdates(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	updates := make(chan SnapshotUpdate, 8)
	poller := cache.NewSnapshotPoller([]string{"bitcoin"}, 10*time.Millisecond, func(u SnapshotUpdate) {
		select {
		case updates <- u:
		default:
		}
	})
	poller.Start(context.Background())
	defer func() {
		poller.Cancel()
		<-poller.Done()
	}()

	// First delivery is immediate, subsequent ones come on the interval.
	for i := 0; i < 2; i++ {
		select {
		case u := <-updates:
			require.NoError(t, u.Err)
			require.Len(t, u.Assets, 1)
			assert.Equal(t, "bitcoin", u.Assets[0].ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for poller delivery")
		}
	}
}

func TestSnapshotPoller_SubsequentTicksForceRefresh(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	delivered := make(chan struct{}, 16)
	poller := cache.NewSnapshotPoller([]string{"bitcoin"}, 10*time.Millisecond, func(SnapshotUpdate) {
		select {
		case delivered <- struct{}{}:
		default:
		}
	})
	poller.Start(context.Background())

	for i := 0; i < 3; i++ {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for poller delivery")
		}
	}
	poller.Cancel()
	<-poller.Done()

	// The clock never moves, so every delivery past the first must have
	// bypassed the freshness window.
	assert.GreaterOrEqual(t, client.markets(), 3)
}

func TestPoller_CancelStopsDeliveries(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	delivered := make(chan struct{}, 64)
	poller := cache.NewSnapshotPoller([]string{"bitcoin"}, 5*time.Millisecond, func(SnapshotUpdate) {
		select {
		case delivered <- struct{}{}:
		default:
		}
	})
	poller.Start(context.Background())

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first delivery")
	}

	poller.Cancel()
	<-poller.Done()

	// Drain anything delivered before the goroutine exited, then verify
	// silence.
	for {
		select {
		case <-delivered:
			continue
		default:
		}
		break
	}
	time.Sleep(30 * time.Millisecond)
	select {
	case <-delivered:
		t.Fatal("delivery after cancel")
	default:
	}
}

func TestPoller_CancelDiscardsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	client := &fakeClient{block: block}
	cache := New(client, common.NewSilentLogger(), WithClock(newTestClock().Now))

	delivered := make(chan struct{}, 8)
	poller := cache.NewSnapshotPoller([]string{"bitcoin"}, time.Hour, func(SnapshotUpdate) {
		delivered <- struct{}{}
	})
	poller.Start(context.Background())

	// The first refresh is now blocked inside the client. Cancel while it
	// is in flight, then release it; the late result must be discarded.
	time.Sleep(20 * time.Millisecond)
	poller.Cancel()
	close(block)
	<-poller.Done()

	select {
	case <-delivered:
		t.Fatal("in-flight result delivered after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPoller_CancelBeforeStart(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	poller := cache.NewSnapshotPoller(nil, time.Second, func(SnapshotUpdate) {})
	poller.Cancel()

	select {
	case <-poller.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed for never-started poller")
	}
	assert.Zero(t, client.markets())
}

func TestPricePoller_DeliversPriceMapping(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	updates := make(chan PriceUpdate, 8)
	poller := cache.NewPricePoller([]string{"bitcoin", "ethereum"}, 10*time.Millisecond, func(u PriceUpdate) {
		select {
		case updates <- u:
		default:
		}
	})
	poller.Start(context.Background())
	defer func() {
		poller.Cancel()
		<-poller.Done()
	}()

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		require.Len(t, u.Prices, 2)
		assert.Equal(t, 100.0, u.Prices["bitcoin"].USD)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for price delivery")
	}
}
