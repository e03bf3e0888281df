package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinwatch/coinwatch/internal/marketcache"
	"github.com/coinwatch/coinwatch/internal/models"
)

func TestStream_BroadcastsRefreshes(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the hub a moment to register the client, then push a refresh
	// the way the poller would.
	time.Sleep(50 * time.Millisecond)
	srv.hub.broadcastUpdate(marketcache.SnapshotUpdate{
		Assets: []models.Asset{{ID: "bitcoin", CurrentPrice: 40000}},
		At:     time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event streamEvent
	require.NoError(t, json.Unmarshal(data, &event))
	require.Len(t, event.Assets, 1)
	assert.Equal(t, "bitcoin", event.Assets[0].ID)
	assert.Empty(t, event.Error)
}

func TestStream_ErrorEventsCarryMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	srv.hub.broadcastUpdate(marketcache.SnapshotUpdate{
		Err: assert.AnError,
		At:  time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event streamEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.NotEmpty(t, event.Error)
	assert.Empty(t, event.Assets)
}
