package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ftnmarket/internal/market"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster pushes the market overview to every connected client on a
// fixed interval and on connect.
type Broadcaster struct {
	market   *market.Service
	log      *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

func NewBroadcaster(m *market.Service, log *zap.Logger, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Broadcaster{
		market:   m,
		log:      log,
		interval: interval,
		clients:  make(map[*wsClient]bool),
	}
}

// Run broadcasts until the context ends.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.broadcast(ctx)
		}
	}
}

func (b *Broadcaster) broadcast(ctx context.Context) {
	b.mu.RLock()
	n := len(b.clients)
	b.mu.RUnlock()
	if n == 0 {
		return
	}

	ov, err := b.market.MarketOverview(ctx)
	if err != nil {
		b.log.Warn("overview broadcast failed", zap.Error(err))
		return
	}
	data, err := json.Marshal(ov)
	if err != nil {
		b.log.Warn("overview marshal failed", zap.Error(err))
		return
	}

	var dead []*wsClient
	b.mu.RLock()
	for c := range b.clients {
		if err := c.write(data); err != nil {
			dead = append(dead, c)
		}
	}
	b.mu.RUnlock()

	if len(dead) > 0 {
		b.mu.Lock()
		for _, c := range dead {
			delete(b.clients, c)
			c.conn.Close()
		}
		b.mu.Unlock()
	}
}

// Handle upgrades the connection and registers the client.
func (b *Broadcaster) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}
	b.mu.Lock()
	b.clients[client] = true
	b.mu.Unlock()

	if ov, err := b.market.MarketOverview(r.Context()); err == nil {
		if data, err := json.Marshal(ov); err == nil {
			client.write(data)
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			b.mu.Lock()
			delete(b.clients, client)
			b.mu.Unlock()
			conn.Close()
			return
		}
	}
}
