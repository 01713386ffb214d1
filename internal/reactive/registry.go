// Package reactive tracks live realtime clients and fans change
// notifications out to them.
package reactive

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 32

// Registry is the set of currently connected clients. A client is present
// from Register until Unregister.
type Registry struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	log         *zap.Logger
	concurrency int
}

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithConcurrency bounds how many deliveries one Broadcast runs at once.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clients:     make(map[*Client]struct{}),
		log:         zap.NewNop(),
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds c. It reports false, changing nothing, if c is already present.
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; ok {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// Unregister removes c and reports whether it was present.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot copies the active set, ordered by client ID.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SnapshotView is the JSON-friendly diagnostic form of the registry.
func (r *Registry) SnapshotView() map[string]any {
	clients := r.Snapshot()
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	return map[string]any{
		"clients": len(ids),
		"ids":     ids,
	}
}

// Broadcast sends text to every client registered at the moment of the call.
// Deliveries run concurrently and independently: a failing or panicking
// client is recorded in the report and never stops the others.
func (r *Registry) Broadcast(ctx context.Context, text string) Report {
	targets := r.Snapshot()
	rep := Report{Recipients: len(targets)}
	if len(targets) == 0 {
		return rep
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for _, c := range targets {
		g.Go(func() error {
			err := deliver(ctx, c, text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Failures = append(rep.Failures, Failure{ClientID: c.ID, Err: err})
			} else {
				rep.Delivered++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(rep.Failures, func(i, j int) bool { return rep.Failures[i].ClientID < rep.Failures[j].ClientID })
	for _, f := range rep.Failures {
		r.log.Warn("broadcast delivery failed",
			zap.String("client_id", f.ClientID),
			zap.Error(f.Err),
		)
	}
	r.log.Debug("broadcasted",
		zap.String("message", text),
		zap.Int("recipients", rep.Recipients),
		zap.Int("delivered", rep.Delivered),
	)
	return rep
}

func deliver(ctx context.Context, c *Client, text string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send panicked: %v", p)
		}
	}()
	if c.Send == nil {
		return fmt.Errorf("client %s has no sender", c.ID)
	}
	return c.Send(ctx, text)
}
