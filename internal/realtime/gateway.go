// Package realtime serves the WebSocket channel: each connection is echoed
// and receives every change notification while it is open.
package realtime

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zoravur/bookstore/internal/protocol"
	"github.com/zoravur/bookstore/internal/reactive"
)

type Options struct {
	// IdleTimeout closes a connection that sends nothing, not even a pong,
	// for this long. Pings go out every IdleTimeout*9/10.
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	// AllowedOrigins empty or containing "*" accepts any Origin.
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		IdleTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxMessageBytes: 4096,
	}
}

// Gateway upgrades requests and runs one connection per handler goroutine.
type Gateway struct {
	reg      *reactive.Registry
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*conn]struct{}
	wg       sync.WaitGroup
	shutdown bool
}

func NewGateway(reg *reactive.Registry, opts Options, log *zap.Logger) *Gateway {
	def := DefaultOptions()
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = def.IdleTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = def.MaxMessageBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		reg:   reg,
		opts:  opts,
		log:   log,
		conns: make(map[*conn]struct{}),
	}
	g.upgrader = websocket.Upgrader{CheckOrigin: g.checkOrigin}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 || slices.Contains(g.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(g.opts.AllowedOrigins, origin)
}

// ServeHTTP upgrades the connection and blocks until it is closed.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied with an HTTP error
		g.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	c, ok := g.open(ws)
	if !ok {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	defer c.close()
	c.readLoop()
}

// open moves a fresh socket to the open state: tracked and registered.
// It refuses once Shutdown has started.
func (g *Gateway) open(ws *websocket.Conn) (*conn, bool) {
	c := &conn{
		id:   uuid.NewString(),
		ws:   ws,
		gw:   g,
		done: make(chan struct{}),
	}
	c.client = &reactive.Client{ID: c.id, Send: c.send}

	g.mu.Lock()
	if g.shutdown {
		g.mu.Unlock()
		return nil, false
	}
	g.conns[c] = struct{}{}
	g.wg.Add(1)
	g.mu.Unlock()

	g.reg.Register(c.client)
	g.log.Info("ws client connected",
		zap.String("client_id", c.id),
		zap.Int("total_clients", g.reg.Len()),
	)
	return c, true
}

func (g *Gateway) forget(c *conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
	g.wg.Done()
}

// Shutdown sends a going-away close frame to every open connection, closes
// them and waits for their handlers to finish or ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.shutdown = true
	open := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		open = append(open, c)
	}
	g.mu.Unlock()

	for _, c := range open {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// conn is one accepted socket. Writes are serialized by writeMu; close runs
// once no matter how the connection ended.
type conn struct {
	id     string
	ws     *websocket.Conn
	gw     *Gateway
	client *reactive.Client

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *conn) send(ctx context.Context, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.gw.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		// a failed write leaves the socket unusable; unblock the read loop
		_ = c.ws.Close()
		return err
	}
	return nil
}

func (c *conn) readLoop() {
	idle := c.gw.opts.IdleTimeout
	c.ws.SetReadLimit(c.gw.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(idle))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idle))
	})
	go c.pingLoop(idle * 9 / 10)

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.gw.log.Debug("ws read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))

		reply, ok := protocol.HandleMessage(mt, data)
		if !ok {
			continue
		}
		if err := c.send(context.Background(), reply); err != nil {
			c.gw.log.Debug("ws echo failed", zap.String("client_id", c.id), zap.Error(err))
			return
		}
	}
}

func (c *conn) pingLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.gw.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// close moves the connection to its terminal state. Unregistration is
// deferred first so it runs even if the rest of teardown panics.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		defer c.gw.forget(c)
		defer func() {
			c.gw.reg.Unregister(c.client)
			c.gw.log.Info("ws client disconnected",
				zap.String("client_id", c.id),
				zap.Int("total_clients", c.gw.reg.Len()),
			)
		}()

		close(c.done)
		_ = c.ws.Close()
	})
}
