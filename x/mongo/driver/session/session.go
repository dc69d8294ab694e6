// Package session implements logical sessions: cluster-time gossip, the
// server session ID pool, and the client session state a transaction
// executes against.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/google/uuid"
)

// ClusterClock tracks the highest $clusterTime seen across every server a
// client has talked to, advancing it on both outgoing and incoming
// commands so causally related operations stay ordered.
type ClusterClock struct {
	mu   sync.Mutex
	time bsoncore.Document
}

// ClusterTime returns the current cluster time document, or nil if none has
// been observed yet.
func (c *ClusterClock) ClusterTime() bsoncore.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// AdvanceClusterTime updates the clock if candidate is newer than what it
// already holds.
func (c *ClusterClock) AdvanceClusterTime(candidate bsoncore.Document) {
	if candidate == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.time == nil || compareClusterTime(candidate, c.time) > 0 {
		c.time = candidate
	}
}

func compareClusterTime(a, b bsoncore.Document) int {
	av, aok := a.Lookup("clusterTime")
	bv, bok := b.Lookup("clusterTime")
	if !aok || !bok {
		return 0
	}
	at, ai := av.Timestamp()
	bt, bi := bv.Timestamp()
	if at != bt {
		if at > bt {
			return 1
		}
		return -1
	}
	switch {
	case ai > bi:
		return 1
	case ai < bi:
		return -1
	default:
		return 0
	}
}

// Server is a single logical session ID, as lent out from a Pool and
// eventually returned or let expire server-side.
type Server struct {
	SessionID     bsoncore.Document
	LastUsed      time.Time
	TxnNumber     int64
}

func newServerSession() *Server {
	id := uuid.New()
	b := id[:]
	doc := bsoncore.NewDocumentBuilder().
		AppendValue("id", bsontype.Binary, append(bsoncore.AppendInt32(nil, int32(len(b))), append([]byte{0x04}, b...)...)).
		Build()
	return &Server{SessionID: doc, LastUsed: time.Now()}
}

// Expired reports whether the server would have already reaped this
// session, given timeoutMinutes from its logicalSessionTimeoutMinutes.
func (s *Server) Expired(timeoutMinutes uint32) bool {
	if timeoutMinutes == 0 {
		return false
	}
	staleAfter := time.Duration(timeoutMinutes)*time.Minute - time.Minute
	return time.Since(s.LastUsed) > staleAfter
}

// Pool hands out and recycles Server session IDs, the way the driver
// avoids opening an unbounded number of logical sessions on the server.
type Pool struct {
	mu    sync.Mutex
	idle  []*Server
	timeoutMinutes uint32
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// SetTimeout updates the server-advertised logicalSessionTimeoutMinutes
// used to decide when an idle session has likely already expired.
func (p *Pool) SetTimeout(minutes uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeoutMinutes = minutes
}

// GetSession returns a reusable Server session, preferring the
// most-recently-used idle one (servers evict oldest-first), or allocates a
// fresh one.
func (p *Pool) GetSession() *Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.idle) > 0 {
		s := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !s.Expired(p.timeoutMinutes) {
			return s
		}
	}
	return newServerSession()
}

// ReturnSession releases s back to the pool for reuse.
func (p *Pool) ReturnSession(s *Server) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s.LastUsed = time.Now()
	p.idle = append(p.idle, s)
}

// TransactionState is the state machine a ClientSession's transaction
// moves through.
type TransactionState uint8

const (
	TransactionNone TransactionState = iota
	TransactionStarting
	TransactionInProgress
	TransactionCommitted
	TransactionAborted
)

// Client is a logical session bound to a single application-level
// goroutine's use: it carries the server session, cluster time, causal
// consistency token, and (if one is open) transaction state.
type Client struct {
	mu                sync.Mutex
	pool              *Pool
	Server            *Server
	ClusterTime       bsoncore.Document
	OperationTime     *primitive.Timestamp
	Causal            bool
	TransactionState  TransactionState
	RetryingTxn       bool
	Pinned            interface{} // pinned mongos/server address for a sharded transaction
	clock             *ClusterClock
}

// NewClient starts a logical session leased from pool, optionally causally
// consistent.
func NewClient(pool *ClusterClock, sessPool *Pool, causal bool) *Client {
	return &Client{
		pool:   sessPool,
		Server: sessPool.GetSession(),
		Causal: causal,
		clock:  pool,
	}
}

// EndSession returns the underlying server session to the pool. Safe to
// call more than once.
func (c *Client) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Server == nil {
		return
	}
	c.pool.ReturnSession(c.Server)
	c.Server = nil
}

// AdvanceClusterTime records the newest cluster time this session has
// observed, gossiping it to the shared clock too.
func (c *Client) AdvanceClusterTime(ct bsoncore.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ClusterTime == nil || compareClusterTime(ct, c.ClusterTime) > 0 {
		c.ClusterTime = ct
	}
	if c.clock != nil {
		c.clock.AdvanceClusterTime(ct)
	}
}

// AdvanceOperationTime records the newest operationTime this session has
// observed from a server response, for causal consistency.
func (c *Client) AdvanceOperationTime(ts primitive.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OperationTime == nil || primitive.CompareTimestamp(ts, *c.OperationTime) > 0 {
		c.OperationTime = &ts
	}
}

// IncrementTxnNumber bumps the session's transaction/retry counter and
// returns the new value, as required at the start of each retryable write
// or transaction.
func (c *Client) IncrementTxnNumber() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server.TxnNumber++
	return c.Server.TxnNumber
}

// StartTransaction transitions the session into TransactionStarting,
// bumping the transaction number.
func (c *Client) StartTransaction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server.TxnNumber++
	c.TransactionState = TransactionStarting
}

// TransactionInProgress reports whether a transaction is currently open.
func (c *Client) TransactionInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TransactionState == TransactionStarting || c.TransactionState == TransactionInProgress
}

// CommitTransaction marks the open transaction committed.
func (c *Client) CommitTransaction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TransactionState = TransactionCommitted
}

// AbortTransaction marks the open transaction aborted.
func (c *Client) AbortTransaction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TransactionState = TransactionAborted
}

// AppendToCommand appends this session's lsid (and, mid-transaction,
// txnNumber/autocommit/startTransaction) elements to dst, which must
// already be inside an open document (after AppendDocumentStart).
func (c *Client) AppendToCommand(dst []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Server == nil {
		return dst
	}
	dst = bsoncore.AppendHeader(dst, bsontype.EmbeddedDocument, "lsid")
	dst = append(dst, c.Server.SessionID...)

	if c.TransactionState == TransactionStarting || c.TransactionState == TransactionInProgress {
		dst = bsoncore.AppendHeader(dst, bsontype.Int64, "txnNumber")
		dst = bsoncore.AppendInt64(dst, c.Server.TxnNumber)
		dst = bsoncore.AppendHeader(dst, bsontype.Boolean, "autocommit")
		dst = bsoncore.AppendBoolean(dst, false)
		if c.TransactionState == TransactionStarting {
			dst = bsoncore.AppendHeader(dst, bsontype.Boolean, "startTransaction")
			dst = bsoncore.AppendBoolean(dst, true)
			c.TransactionState = TransactionInProgress
		}
	}
	return dst
}

// WithSession attaches sess to ctx so nested helpers can recover it without
// threading it through every call explicitly.
func WithSession(ctx context.Context, sess *Client) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext recovers a *Client previously attached with WithSession.
func FromContext(ctx context.Context) (*Client, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Client)
	return s, ok
}

type sessionContextKey struct{}
