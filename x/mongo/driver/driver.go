// Package driver implements the operation-execution layer shared by every
// command the public mongo package issues: server selection, connection
// checkout, command framing over OP_MSG, and retry.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
	"github.com/brinkdb/mongowire/x/mongo/driver/wiremessage"
)

// Connection is a single MongoDB wire protocol connection as the operation
// executor consumes it: framed reads/writes plus the handshake result that
// selection and compression depend on.
type Connection interface {
	WriteWireMessage(ctx context.Context, wm []byte) error
	ReadWireMessage(ctx context.Context) ([]byte, error)
	Description() description.Server
	Close() error
	ID() string
	Address() address.Address
}

// Expirable connections report their own staleness so a checked-out
// connection can be discarded instead of returned to the pool.
type Expirable interface {
	Stale() bool
}

// Server hands out connections for a single selected server.
type Server interface {
	Connection(ctx context.Context) (Connection, error)
}

// ServerSelector narrows a topology snapshot down to the servers eligible
// for a given operation.
type ServerSelector interface {
	SelectServer(description.Topology, []description.Server) ([]description.Server, error)
}

// ServerSelectorFunc adapts a function to ServerSelector.
type ServerSelectorFunc func(description.Topology, []description.Server) ([]description.Server, error)

func (f ServerSelectorFunc) SelectServer(t description.Topology, svrs []description.Server) ([]description.Server, error) {
	return f(t, svrs)
}

// Deployment is the topology abstraction Operation selects against; the
// topology state machine in x/mongo/driver/topology implements it.
type Deployment interface {
	SelectServer(ctx context.Context, selector ServerSelector) (Server, error)
	Kind() description.TopologyKind
}

// SingleConnectionDeployment wraps one already-established Connection as a
// degenerate one-server Deployment, used for the handshake itself before a
// Server exists to select.
type SingleConnectionDeployment struct {
	C Connection
}

func (d SingleConnectionDeployment) SelectServer(context.Context, ServerSelector) (Server, error) {
	return singleServer{c: d.C}, nil
}

func (d SingleConnectionDeployment) Kind() description.TopologyKind { return description.TopologyUnknown }

type singleServer struct{ c Connection }

func (s singleServer) Connection(context.Context) (Connection, error) { return s.c, nil }

// ServerFromConnection pins a Server to a single already-checked-out
// Connection, the shape a cursor needs to pin its getMore/killCursors
// traffic to the connection its originating command ran on.
func ServerFromConnection(c Connection) Server { return singleServer{c: c} }

// RetryMode controls whether Operation.Execute retries a retryable failure.
type RetryMode uint8

const (
	RetryNone RetryMode = iota
	RetryOnce
	RetryOncePerCommand
)

// ResponseInfo is passed to ProcessResponseFn after a command round trip.
type ResponseInfo struct {
	ServerResponse bsoncore.Document
	Connection     Connection
	CurrentIndex   int
}

// HandshakeInformation is returned by a Handshaker's GetHandshakeInformation.
type HandshakeInformation struct {
	Description             description.Server
	SpeculativeAuthenticate bsoncore.Document
	SaslSupportedMechs      []string
}

// Handshaker performs the initial hello/isMaster exchange (and, for
// authenticated connections, speculative auth) immediately after dial.
type Handshaker interface {
	GetHandshakeInformation(ctx context.Context, addr address.Address, c Connection) (HandshakeInformation, error)
	FinishHandshake(ctx context.Context, c Connection) error
}

// Operation describes a single database command: how to build it, where to
// send it, and what to do with the response. Execute runs the full
// selection/checkout/command/retry cycle.
type Operation struct {
	CommandFn         func(dst []byte, desc description.SelectedServer) ([]byte, error)
	Database          string
	Deployment        Deployment
	ProcessResponseFn func(ResponseInfo) error
	Selector          ServerSelector
	ReadPreference    description.ReadPreference
	Session           *session.Client
	Clock             *session.ClusterClock
	RetryMode         RetryMode
	MinimumWriteConcernWireVersion int32
	Batches           *Batches
}

// Batches optionally carries a document sequence (bulk write payload) to
// append as an OP_MSG kind-1 section alongside the command body.
type Batches struct {
	Identifier string
	Documents  [][]byte
}

// CommandError wraps a server-reported command failure (ok: 0).
type CommandError struct {
	Code    int32
	Message string
	Name    string
	Labels  []string
}

func (e CommandError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%s) %s", e.Name, e.Message)
	}
	return e.Message
}

// HasErrorLabel reports whether label is attached to e, e.g.
// "RetryableWriteError" or "TransientTransactionError".
func (e CommandError) HasErrorLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

var retryableCodes = map[int32]bool{
	6:     true, // HostUnreachable
	7:     true, // HostNotFound
	89:    true, // NetworkTimeout
	91:    true, // ShutdownInProgress
	189:   true, // PrimarySteppedDown
	9001:  true, // SocketException
	10107: true, // NotWritablePrimary
	11600: true, // InterruptedAtShutdown
	11602: true, // InterruptedDueToReplStateChange
	13435: true, // NotPrimaryNoSecondaryOk
	13436: true, // NotPrimaryOrSecondary
}

func isRetryable(err error) bool {
	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code] || cmdErr.HasErrorLabel("RetryableWriteError")
	}
	return true // network-level errors (anything not a CommandError) are retryable
}

// Execute runs the operation against a selected server and connection,
// retrying once on a retryable error when RetryMode allows it.
func (op Operation) Execute(ctx context.Context) error {
	if op.Deployment == nil {
		return errors.New("driver: Operation requires a Deployment")
	}

	selector := op.Selector
	if selector == nil {
		selector = ServerSelectorFunc(func(_ description.Topology, svrs []description.Server) ([]description.Server, error) {
			return svrs, nil
		})
	}

	var lastErr error
	attempts := 1
	if op.RetryMode != RetryNone {
		attempts = 2
	}

	for attempt := 0; attempt < attempts; attempt++ {
		srv, err := op.Deployment.SelectServer(ctx, selector)
		if err != nil {
			return fmt.Errorf("driver: server selection failed: %w", err)
		}
		conn, err := srv.Connection(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		err = op.executeOnConnection(ctx, conn)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt+1 < attempts && isRetryable(err) {
			continue
		}
		return err
	}
	return lastErr
}

func (op Operation) executeOnConnection(ctx context.Context, conn Connection) error {
	desc := description.SelectedServer{Server: conn.Description()}

	idx, dst := bsoncore.AppendDocumentStart(nil)
	var err error
	dst, err = op.CommandFn(dst, desc)
	if err != nil {
		return err
	}
	dst = bsoncore.AppendHeader(dst, bsontype.String, "$db")
	dst = bsoncore.AppendString(dst, op.Database)
	if op.Clock != nil {
		if ct := op.Clock.ClusterTime(); ct != nil {
			dst = bsoncore.AppendHeader(dst, bsontype.EmbeddedDocument, "$clusterTime")
			dst = append(dst, ct...)
		}
	}
	if op.Session != nil {
		dst = op.Session.AppendToCommand(dst)
	}
	body := bsoncore.AppendDocumentEnd(dst, idx)

	sections := []wiremessage.Section{{Kind: wiremessage.SectionKindBody, Documents: [][]byte{body}}}
	if op.Batches != nil {
		sections = append(sections, wiremessage.Section{
			Kind:       wiremessage.SectionKindDocumentSequence,
			Identifier: op.Batches.Identifier,
			Documents:  op.Batches.Documents,
		})
	}

	wm := wiremessage.AppendMsg(nil, wiremessage.NextRequestID(), 0, sections)
	if err := conn.WriteWireMessage(ctx, wm); err != nil {
		return err
	}
	raw, err := conn.ReadWireMessage(ctx)
	if err != nil {
		return err
	}
	reply, err := wiremessage.ReadMsg(raw)
	if err != nil {
		return err
	}
	if len(reply.Sections) == 0 {
		return errors.New("driver: OP_MSG reply has no sections")
	}
	respDoc := bsoncore.Document(reply.Sections[0].Documents[0])

	if op.Clock != nil {
		if ctVal, ok := respDoc.Lookup("$clusterTime"); ok {
			op.Clock.AdvanceClusterTime(ctVal.Document())
		}
	}

	if okVal, found := respDoc.Lookup("ok"); found && !isOKTrue(okVal) {
		return commandErrorFromResponse(respDoc)
	}

	if op.ProcessResponseFn != nil {
		return op.ProcessResponseFn(ResponseInfo{ServerResponse: respDoc, Connection: conn})
	}
	return nil
}

func isOKTrue(v bsoncore.Value) bool {
	switch v.Type {
	case 1: // double
		return v.Double() == 1
	case 16: // int32
		return v.Int32() == 1
	case 18: // int64
		return v.Int64() == 1
	case 8: // bool
		return v.Boolean()
	}
	return false
}

func commandErrorFromResponse(doc bsoncore.Document) error {
	ce := CommandError{Message: "command failed"}
	if v, ok := doc.Lookup("code"); ok {
		ce.Code = v.Int32()
	}
	if v, ok := doc.Lookup("errmsg"); ok {
		ce.Message = v.StringValue()
	}
	if v, ok := doc.Lookup("codeName"); ok {
		ce.Name = v.StringValue()
	}
	if v, ok := doc.Lookup("errorLabels"); ok {
		vals, _ := v.Array().Values()
		for _, l := range vals {
			ce.Labels = append(ce.Labels, l.StringValue())
		}
	}
	return ce
}

