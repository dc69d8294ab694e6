package topology

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

const (
	minHeartbeatInterval     = 500 * time.Millisecond
	defaultHeartbeatInterval = 10 * time.Second
	defaultHeartbeatTimeout  = 10 * time.Second
	rttSmoothingFactor       = 0.2
)

const (
	serverDisconnected int32 = iota
	serverConnected
	serverDisconnecting
)

// Server owns one MongoDB server's connection pool and the background
// monitor goroutine that keeps its description current, publishing every
// update to its subscribers the way the topology state machine listens
// for changes.
type Server struct {
	addr address.Address
	pool *pool

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	handshaker        driver.Handshaker
	connOpts          []ConnectionOption

	state int32

	desc atomic.Value // description.Server

	checkNow      chan struct{}
	done          chan struct{}
	closewg       sync.WaitGroup

	subLock     sync.Mutex
	subscribers map[uint64]chan description.Server
	nextSubID   uint64
	subsClosed  bool

	averageRTTSet bool
	averageRTT    time.Duration
}

// NewServer constructs a Server with its connection pool, in the
// disconnected state; call Connect to start monitoring.
func NewServer(addr address.Address, handshaker driver.Handshaker, connOpts []ConnectionOption, poolCfg poolConfig) *Server {
	s := &Server{
		addr:              addr,
		heartbeatInterval: defaultHeartbeatInterval,
		heartbeatTimeout:  defaultHeartbeatTimeout,
		handshaker:        handshaker,
		connOpts:          connOpts,
		checkNow:          make(chan struct{}, 1),
		done:              make(chan struct{}),
		subscribers:       make(map[uint64]chan description.Server),
	}
	s.desc.Store(description.Server{Addr: addr, Kind: description.Unknown})

	poolCfg.connOpts = append(append([]ConnectionOption(nil), connOpts...), WithHandshaker(handshaker))
	s.pool = newPool(addr, poolCfg)
	return s
}

// Connect starts the background heartbeat monitor. updateCallback, if
// non-nil, lets the owning Topology fold each new description into its
// aggregate view before it is published to subscribers.
func (s *Server) Connect(updateCallback func(description.Server) description.Server) {
	if !atomic.CompareAndSwapInt32(&s.state, serverDisconnected, serverConnected) {
		return
	}
	s.closewg.Add(1)
	go s.monitor(updateCallback)
}

// Disconnect stops the monitor and tears down the connection pool.
func (s *Server) Disconnect() {
	if !atomic.CompareAndSwapInt32(&s.state, serverConnected, serverDisconnecting) {
		return
	}
	close(s.done)
	s.closewg.Wait()
	s.pool.close()
	atomic.StoreInt32(&s.state, serverDisconnected)
}

// Connection checks out a live connection for application use.
func (s *Server) Connection(ctx context.Context) (driver.Connection, error) {
	if atomic.LoadInt32(&s.state) != serverConnected {
		return nil, fmt.Errorf("topology: server %s is not connected", s.addr)
	}
	return s.pool.checkOut(ctx)
}

// Description returns the server's most recently observed description.
func (s *Server) Description() description.Server {
	return s.desc.Load().(description.Server)
}

// RequestImmediateCheck wakes the monitor for an out-of-cycle heartbeat,
// e.g. after a command reveals the server may have stepped down.
func (s *Server) RequestImmediateCheck() {
	select {
	case s.checkNow <- struct{}{}:
	default:
	}
}

// ClearPool invalidates every pooled connection, used after an error
// reveals a previous generation's connections can no longer be trusted.
func (s *Server) ClearPool() { s.pool.clear() }

// Subscribe registers a channel that receives every updated description,
// pre-populated with the current one. Call the returned func to release it.
func (s *Server) Subscribe() (<-chan description.Server, func(), error) {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	if s.subsClosed {
		return nil, nil, fmt.Errorf("topology: server %s subscriptions are closed", s.addr)
	}
	ch := make(chan description.Server, 1)
	ch <- s.Description()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	unsubscribe := func() {
		s.subLock.Lock()
		defer s.subLock.Unlock()
		delete(s.subscribers, id)
	}
	return ch, unsubscribe, nil
}

func (s *Server) monitor(updateCallback func(description.Server) description.Server) {
	defer s.closewg.Done()

	heartbeat := time.NewTicker(s.heartbeatInterval)
	rateLimit := time.NewTicker(minHeartbeatInterval)
	defer heartbeat.Stop()
	defer rateLimit.Stop()

	var conn *connection
	desc, conn := s.heartbeatOnce(conn)
	s.publish(desc, updateCallback)

	for {
		select {
		case <-s.done:
			s.closeSubscribers()
			if conn != nil {
				conn.close()
			}
			return
		default:
		}

		select {
		case <-heartbeat.C:
		case <-s.checkNow:
		case <-s.done:
			s.closeSubscribers()
			if conn != nil {
				conn.close()
			}
			return
		}

		select {
		case <-rateLimit.C:
		case <-s.done:
			s.closeSubscribers()
			if conn != nil {
				conn.close()
			}
			return
		}

		desc, conn = s.heartbeatOnce(conn)
		s.publish(desc, updateCallback)
	}
}

func (s *Server) closeSubscribers() {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subsClosed = true
}

func (s *Server) publish(desc description.Server, updateCallback func(description.Server) description.Server) {
	if updateCallback != nil {
		desc = updateCallback(desc)
	}
	s.desc.Store(desc)

	s.subLock.Lock()
	defer s.subLock.Unlock()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- desc
	}
}

// heartbeatOnce issues a single hello and returns the resulting
// description, retrying once on a fresh connection if the given one has
// gone stale. The connection is handed back for reuse on the next cycle.
func (s *Server) heartbeatOnce(conn *connection) (description.Server, *connection) {
	const maxAttempts = 2
	var lastErr error

	ctx, cancel := context.WithTimeout(context.Background(), s.heartbeatTimeout)
	defer cancel()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if conn != nil && conn.Expired() {
			conn.close()
			conn = nil
		}

		if conn == nil {
			start := time.Now()
			newConn, err := connect(ctx, s.addr, s.pool.generation,
				append(append([]ConnectionOption(nil), s.connOpts...), WithHandshaker(s.handshaker))...)
			if err != nil {
				lastErr = err
				conn = nil
				continue
			}
			rtt := time.Since(start)
			desc := newConn.desc
			desc.AverageRTT = s.updateAverageRTT(rtt)
			desc.AverageRTTSet = true
			desc.LastUpdateTime = time.Now()
			return desc, newConn
		}

		if s.handshaker == nil {
			lastErr = nil
			break
		}
		start := time.Now()
		info, err := s.handshaker.GetHandshakeInformation(ctx, s.addr, conn)
		if err != nil {
			lastErr = err
			conn.close()
			conn = nil
			continue
		}
		desc := info.Description
		desc.AverageRTT = s.updateAverageRTT(time.Since(start))
		desc.AverageRTTSet = true
		desc.LastUpdateTime = time.Now()
		return desc, conn
	}

	if lastErr != nil {
		s.pool.clear()
		return description.Server{
			Addr:           s.addr,
			Kind:           description.Unknown,
			LastUpdateTime: time.Now(),
			LastError:      lastErr,
		}, nil
	}

	return s.Description(), conn
}

func (s *Server) updateAverageRTT(delay time.Duration) time.Duration {
	if !s.averageRTTSet {
		s.averageRTT = delay
		s.averageRTTSet = true
	} else {
		s.averageRTT = time.Duration(rttSmoothingFactor*float64(delay) + (1-rttSmoothingFactor)*float64(s.averageRTT))
	}
	return s.averageRTT
}

func (s *Server) String() string {
	desc := s.Description()
	return fmt.Sprintf("Addr: %s, Kind: %s, AverageRTT: %s", s.addr, desc.Kind, desc.AverageRTT)
}
