package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/marketcache"
	"github.com/coinwatch/coinwatch/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamEvent is the payload pushed to websocket clients on every
// snapshot refresh.
type streamEvent struct {
	Assets []models.Asset `json:"assets"`
	Error  string         `json:"error,omitempty"`
	At     time.Time      `json:"at"`
}

// streamHub manages websocket clients and broadcasts snapshot refreshes.
type streamHub struct {
	clients    map[*streamClient]bool
	broadcast  chan streamEvent
	register   chan *streamClient
	unregister chan *streamClient
	done       chan struct{}
	once       sync.Once
	logger     *common.Logger
}

// streamClient represents one connected websocket client.
type streamClient struct {
	hub  *streamHub
	conn *websocket.Conn
	send chan []byte
}

func newStreamHub(logger *common.Logger) *streamHub {
	return &streamHub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan streamEvent, 16),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// broadcastUpdate adapts a cache refresh into a hub event. Dropped when
// the broadcast buffer is full; the next refresh supersedes it anyway.
func (h *streamHub) broadcastUpdate(update marketcache.SnapshotUpdate) {
	event := streamEvent{Assets: update.Assets, At: update.At}
	if update.Err != nil {
		event.Error = update.Err.Error()
	}
	select {
	case h.broadcast <- event:
	default:
	}
}

func (h *streamHub) stop() {
	h.once.Do(func() { close(h.done) })
}

// run is the hub's main event loop. Runs as a goroutine.
func (h *streamHub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Stream client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Stream client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to marshal stream event")
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer: drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// handleStream upgrades the connection and attaches it to the hub.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &streamClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 16),
	}
	s.hub.register <- client

	go client.writeLoop()
	go client.readLoop()
}

func (c *streamClient) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop discards inbound messages; its job is to notice the close.
func (c *streamClient) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
