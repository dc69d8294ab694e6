package topology

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by checkout once the pool has been cleared for
// good (the server was removed from the topology).
var ErrPoolClosed = errors.New("topology: connection pool is closed")

// poolConfig configures a connection Pool.
type poolConfig struct {
	maxSize     uint64
	minSize     uint64
	maxIdleTime time.Duration
	connOpts    []ConnectionOption
}

// pool maintains a LIFO set of idle connections to a single server,
// discarding any whose generation predates the most recent clear (the
// SDAM "generation number" invalidation scheme).
type pool struct {
	addr address.Address
	cfg  poolConfig

	mu         sync.Mutex
	generation uint64
	idle       []*connection
	total      uint64
	closed     bool

	semaphore *semaphore.Weighted
}

func newPool(addr address.Address, cfg poolConfig) *pool {
	if cfg.maxSize == 0 {
		cfg.maxSize = 100
	}
	return &pool{
		addr:      addr,
		cfg:       cfg,
		semaphore: semaphore.NewWeighted(int64(cfg.maxSize)),
	}
}

// checkOut returns an idle connection if one is live, else dials a new one,
// blocking on the pool's size semaphore if it is already at capacity.
func (p *pool) checkOut(ctx context.Context) (*connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	generation := p.generation
	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if c.generation != generation || c.Expired() {
			p.total--
			p.mu.Unlock()
			c.close()
			p.semaphore.Release(1)
			p.mu.Lock()
			continue
		}
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	if err := p.semaphore.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	c, err := connect(ctx, p.addr, generation, p.cfg.connOpts...)
	if err != nil {
		p.semaphore.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.total++
	p.mu.Unlock()
	return c, nil
}

// checkIn returns c to the idle list, or discards it (and releases its
// semaphore slot) if it's dead, expired, or stale relative to the pool's
// current generation.
func (p *pool) checkIn(c *connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || c.generation != p.generation || !c.Alive() || c.Expired() {
		p.total--
		p.mu.Unlock()
		c.close()
		p.semaphore.Release(1)
		p.mu.Lock()
		return
	}
	c.bumpIdle()
	p.idle = append(p.idle, c)
}

// clear bumps the generation, invalidating every connection currently
// checked out without closing them synchronously (the owner's next
// checkIn discards them), and drops every currently idle connection.
func (p *pool) clear() {
	p.mu.Lock()
	p.generation++
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	for _, c := range idle {
		c.close()
		p.semaphore.Release(1)
	}
}

// close tears the pool down entirely, e.g. when its server is removed from
// the topology.
func (p *pool) close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	for _, c := range idle {
		c.close()
	}
}
