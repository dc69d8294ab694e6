package topology

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"golang.org/x/sync/errgroup"
)

// Config configures a Topology's seed list and server dialing behavior.
type Config struct {
	Seeds             []address.Address
	SetName           string
	Mode              description.TopologyKind // Single forces the seed to be trusted without discovery
	Handshaker        driver.Handshaker
	ConnectionOptions []ConnectionOption
	MaxPoolSize       uint64
	MinPoolSize       uint64
	MaxConnIdleTime   time.Duration
	ServerSelectionTimeout time.Duration
}

// Topology aggregates every known Server's description into a single
// snapshot and implements driver.Deployment so an Operation can select
// against it.
type Topology struct {
	cfg Config

	mu      sync.RWMutex
	kind    description.TopologyKind
	servers map[address.Address]*Server

	desc description.Topology

	subLock     sync.Mutex
	subscribers map[uint64]chan description.Topology
	nextSubID   uint64
}

// New builds a Topology from cfg's seed list but does not yet start
// monitoring; call Connect for that.
func New(cfg Config) *Topology {
	kind := cfg.Mode
	if kind == description.TopologyUnknown {
		kind = description.TopologyReplicaSetNoPrimary
		if len(cfg.Seeds) == 1 && cfg.SetName == "" {
			kind = description.TopologySingle
		}
	}

	t := &Topology{
		cfg:         cfg,
		kind:        kind,
		servers:     make(map[address.Address]*Server),
		subscribers: make(map[uint64]chan description.Topology),
	}
	t.desc = description.Topology{Kind: kind, SetName: cfg.SetName}
	return t
}

// Connect starts a monitor for every seed and begins aggregating updates.
func (t *Topology) Connect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, addr := range t.cfg.Seeds {
		t.addServer(addr)
	}
}

// Disconnect stops every server's monitor and connection pool.
func (t *Topology) Disconnect() {
	t.mu.Lock()
	servers := make([]*Server, 0, len(t.servers))
	for _, s := range t.servers {
		servers = append(servers, s)
	}
	t.mu.Unlock()

	var g errgroup.Group
	for _, s := range servers {
		s := s
		g.Go(func() error {
			s.Disconnect()
			return nil
		})
	}
	g.Wait()
}

func (t *Topology) addServer(addr address.Address) *Server {
	if s, ok := t.servers[addr]; ok {
		return s
	}
	poolCfg := poolConfig{
		maxSize:     t.cfg.MaxPoolSize,
		minSize:     t.cfg.MinPoolSize,
		maxIdleTime: t.cfg.MaxConnIdleTime,
	}
	s := NewServer(addr, t.cfg.Handshaker, t.cfg.ConnectionOptions, poolCfg)
	t.servers[addr] = s
	s.Connect(func(desc description.Server) description.Server {
		t.applyUpdate(addr, desc)
		return desc
	})
	return s
}

// applyUpdate folds a single server's new description into the topology's
// aggregate view, growing the server set from a primary's reported hosts
// list the way SDAM discovers a replica set from one seed.
func (t *Topology) applyUpdate(addr address.Address, desc description.Server) {
	t.mu.Lock()

	if t.kind != description.TopologySingle && desc.Kind == description.RSPrimary {
		for _, host := range append(append(append([]string{}, desc.Hosts...), desc.Passives...), desc.Arbiters...) {
			hostAddr := address.Address(host)
			if _, ok := t.servers[hostAddr]; !ok {
				t.addServer(hostAddr)
			}
		}
		if desc.SetName != "" {
			t.desc.SetName = desc.SetName
		}
	}

	servers := make([]description.Server, 0, len(t.servers))
	hasPrimary := false
	for a, s := range t.servers {
		d := s.Description()
		if a == addr {
			d = desc
		}
		servers = append(servers, d)
		if d.Kind == description.RSPrimary {
			hasPrimary = true
		}
	}

	if t.kind == description.TopologyReplicaSetNoPrimary || t.kind == description.TopologyReplicaSetWithPrimary {
		if hasPrimary {
			t.kind = description.TopologyReplicaSetWithPrimary
		} else {
			t.kind = description.TopologyReplicaSetNoPrimary
		}
	}

	t.desc.Kind = t.kind
	t.desc.Servers = servers
	snapshot := t.desc
	t.mu.Unlock()

	t.publish(snapshot)
}

func (t *Topology) publish(desc description.Topology) {
	t.subLock.Lock()
	defer t.subLock.Unlock()
	for _, ch := range t.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- desc
	}
}

// Subscribe registers a channel receiving every updated topology snapshot.
func (t *Topology) Subscribe() (<-chan description.Topology, func()) {
	t.subLock.Lock()
	defer t.subLock.Unlock()
	ch := make(chan description.Topology, 1)
	ch <- t.Description()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = ch
	return ch, func() {
		t.subLock.Lock()
		defer t.subLock.Unlock()
		delete(t.subscribers, id)
	}
}

// Description returns the current aggregate topology snapshot.
func (t *Topology) Description() description.Topology {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.desc
}

// Kind implements driver.Deployment.
func (t *Topology) Kind() description.TopologyKind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kind
}

// SelectServer implements driver.Deployment: it waits (subscribing to
// topology updates) until selector accepts at least one server, then
// returns a driver.Server wrapping it.
func (t *Topology) SelectServer(ctx context.Context, selector driver.ServerSelector) (driver.Server, error) {
	timeout := t.cfg.ServerSelectionTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, unsubscribe := t.Subscribe()
	defer unsubscribe()

	for {
		desc := t.Description()
		candidates, err := selector.SelectServer(desc, desc.Servers)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			addr := candidates[0].Addr
			t.mu.RLock()
			srv, ok := t.servers[addr]
			t.mu.RUnlock()
			if ok {
				return &selectedServer{Server: srv, kind: t.Kind()}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("topology: server selection timed out: %w", ctx.Err())
		case <-ch:
		case <-time.After(minHeartbeatInterval):
		}
	}
}

// selectedServer pairs a chosen Server with the topology kind it was
// selected from, which read preference application needs (e.g. a
// secondary-preferred read against a Single-kind topology always goes to
// the one server regardless of its reported kind).
type selectedServer struct {
	*Server
	kind description.TopologyKind
}
