package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/relaychat/internal/backplane"
	"github.com/Tyrowin/relaychat/internal/protocol"
)

// HubOptions tunes per-connection behaviour. Zero values fall back to defaults.
type HubOptions struct {
	MaxMessageSize int64
	SendBufferSize int
	WriteWait      time.Duration
	PongWait       time.Duration
	// Backplane, when set, routes every broadcast through it so that
	// several relay processes share one room. Until its subscription is
	// confirmed, broadcasts are delivered locally.
	Backplane backplane.Backplane
}

func (o HubOptions) withDefaults() HubOptions {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	return o
}

// pingPeriod must be shorter than PongWait so a healthy peer's pong
// arrives before the read deadline.
func (o HubOptions) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Hub owns the registry, fans frames out to every registered client, and
// supervises the goroutines of each connection.
type Hub struct {
	registry     *Registry
	opts         HubOptions
	logger       *slog.Logger
	clientLogger *slog.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup

	ctx        context.Context
	cancel     context.CancelFunc
	subWG      sync.WaitGroup
	subscribed atomic.Bool
}

// NewHub creates a Hub. When opts carries a Backplane, the hub subscribes to
// it immediately and delivers every frame it receives to local clients.
// Broadcasts go through the backplane only while that subscription is live.
func NewHub(opts HubOptions, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:     NewRegistry(),
		opts:         opts.withDefaults(),
		logger:       logger.With("component", "hub"),
		clientLogger: logger.With("component", "client"),
		ctx:          ctx,
		cancel:       cancel,
	}

	if h.opts.Backplane != nil {
		h.subWG.Add(1)
		go func() {
			defer h.subWG.Done()
			defer h.subscribed.Store(false)
			ready := func() { h.subscribed.Store(true) }
			if err := h.opts.Backplane.Subscribe(ctx, h.deliver, ready); err != nil {
				h.logger.Error("backplane subscription ended", "error", err)
			}
		}()
	}

	return h
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}

// Serve registers c and starts its read and write pumps. The read pump's
// exit is the only path that unregisters c and announces its departure.
// After Shutdown has begun, Serve closes c instead.
func (h *Hub) Serve(c *Client) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		c.close()
		c.closeConn()
		return
	}
	h.registry.Add(c)
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.Info("client registered", "client_id", c.id, "addr", c.addr, "clients", h.registry.Len())

	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		defer h.release(c)
		c.readPump()
	}()
}

// release runs exactly once per served client, when its read loop exits.
func (h *Hub) release(c *Client) {
	removed := h.registry.Remove(c)
	if name := c.Name(); removed && name != "" {
		h.Broadcast(protocol.LeaveAnnouncement(name))
	}
	c.close()
	h.logger.Info("client unregistered", "client_id", c.id, "addr", c.addr, "name", c.Name(), "clients", h.registry.Len())
}

// Broadcast sends frame to every registered client. Clients that are
// closed or whose send buffer is full are skipped; Broadcast never blocks
// on a slow peer and never fails.
func (h *Hub) Broadcast(frame string) {
	if bp := h.opts.Backplane; bp != nil && h.subscribed.Load() {
		err := bp.Publish(h.ctx, frame)
		if err == nil {
			return
		}
		h.logger.Warn("backplane publish failed; delivering locally", "error", err)
	}
	h.deliver(frame)
}

// deliver enqueues frame on every client in a registry snapshot.
func (h *Hub) deliver(frame string) {
	clients := h.registry.Snapshot()
	payload := []byte(frame)

	skipped := 0
	for _, c := range clients {
		if !c.enqueue(payload) {
			skipped++
		}
	}

	if skipped > 0 {
		h.logger.Debug("broadcast skipped clients", "targets", len(clients), "skipped", skipped)
	}
}

// Shutdown closes every connection and waits for the per-connection
// goroutines to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	clients := h.registry.Snapshot()
	for _, c := range clients {
		c.close()
	}
	h.logger.Info("closing client connections", "count", len(clients))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		h.cancel()
		h.subWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
