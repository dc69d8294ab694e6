// Package operation implements the command builders for every operation
// the public mongo package issues, each one a thin adapter around
// driver.Operation: build the command body, parse the response.
package operation

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

const driverName = "mongowire"
const driverVersion = "0.1.0"

// Hello runs the initial handshake (or a streaming heartbeat) against a
// single connection and parses the result into a description.Server.
type Hello struct {
	AppName         string
	Compressors     []string
	SASLSupportedMechsUser string
	SpeculativeAuth bsoncore.Document
	TopologyVersion *description.TopologyVersion
	MaxAwaitTimeMS  *int64
	Clock           *session.ClusterClock
	Deployment      driver.Deployment

	res bsoncore.Document
}

var _ driver.Handshaker = (*Hello)(nil)

// Execute runs the handshake as a standalone operation (used by the
// monitor's streaming heartbeats once a connection is already live).
func (h *Hello) Execute(ctx context.Context) error {
	if h.Deployment == nil {
		return errors.New("operation: Hello requires a Deployment")
	}
	return h.createOperation().Execute(ctx)
}

func (h *Hello) createOperation() driver.Operation {
	return driver.Operation{
		Clock:      h.Clock,
		CommandFn:  h.command,
		Database:   "admin",
		Deployment: h.Deployment,
		ProcessResponseFn: func(info driver.ResponseInfo) error {
			h.res = info.ServerResponse
			return nil
		},
	}
}

// GetHandshakeInformation implements driver.Handshaker: it runs hello on
// c and translates the response into a description.Server.
func (h *Hello) GetHandshakeInformation(ctx context.Context, addr address.Address, c driver.Connection) (driver.HandshakeInformation, error) {
	err := driver.Operation{
		Clock:      h.Clock,
		CommandFn:  h.command,
		Deployment: driver.SingleConnectionDeployment{C: c},
		Database:   "admin",
		ProcessResponseFn: func(info driver.ResponseInfo) error {
			h.res = info.ServerResponse
			return nil
		},
	}.Execute(ctx)
	if err != nil {
		return driver.HandshakeInformation{}, err
	}

	info := driver.HandshakeInformation{Description: parseHelloResponse(addr, h.res)}
	if speculative, ok := h.res.Lookup("speculativeAuthenticate"); ok {
		info.SpeculativeAuthenticate = speculative.Document()
	}
	if mechs, ok := h.res.Lookup("saslSupportedMechs"); ok {
		if arr := mechs.Array(); arr != nil {
			vals, _ := arr.Values()
			for _, v := range vals {
				info.SaslSupportedMechs = append(info.SaslSupportedMechs, v.StringValue())
			}
		}
	}
	return info, nil
}

// FinishHandshake is a no-op for an unauthenticated connection; an
// authenticated deployment wraps this Handshaker to run SASL here instead.
func (h *Hello) FinishHandshake(context.Context, driver.Connection) error { return nil }

func (h *Hello) command(dst []byte, desc description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendInt32Element(dst, "hello", 1)
	dst = bsoncore.AppendBooleanElement(dst, "helloOk", true)

	if tv := h.TopologyVersion; tv != nil {
		idx, d := bsoncore.AppendDocumentElementStart(dst, "topologyVersion")
		d = bsoncore.AppendObjectIDElement(d, "processId", tv.ProcessID)
		d = bsoncore.AppendInt64Element(d, "counter", tv.Counter)
		dst = bsoncore.AppendDocumentEnd(d, idx)
	}
	if h.MaxAwaitTimeMS != nil {
		dst = bsoncore.AppendInt64Element(dst, "maxAwaitTimeMS", *h.MaxAwaitTimeMS)
	}
	if h.SASLSupportedMechsUser != "" {
		dst = bsoncore.AppendStringElement(dst, "saslSupportedMechs", h.SASLSupportedMechsUser)
	}
	if h.SpeculativeAuth != nil {
		dst = bsoncore.AppendDocumentElement(dst, "speculativeAuthenticate", h.SpeculativeAuth)
	}

	if len(h.Compressors) > 0 {
		idx, d := bsoncore.AppendArrayElementStart(dst, "compression")
		for i, comp := range h.Compressors {
			d = bsoncore.AppendStringElement(d, itoa(i), comp)
		}
		dst = bsoncore.AppendArrayEnd(d, idx)
	}

	clientIdx, d := bsoncore.AppendDocumentElementStart(dst, "client")
	driverIdx, d := bsoncore.AppendDocumentElementStart(d, "driver")
	d = bsoncore.AppendStringElement(d, "name", driverName)
	d = bsoncore.AppendStringElement(d, "version", driverVersion)
	d = bsoncore.AppendDocumentEnd(d, driverIdx)
	osIdx, d := bsoncore.AppendDocumentElementStart(d, "os")
	d = bsoncore.AppendStringElement(d, "type", runtime.GOOS)
	d = bsoncore.AppendStringElement(d, "architecture", runtime.GOARCH)
	d = bsoncore.AppendDocumentEnd(d, osIdx)
	d = bsoncore.AppendStringElement(d, "platform", runtime.Version())
	if h.AppName != "" {
		appIdx, d2 := bsoncore.AppendDocumentElementStart(d, "application")
		d2 = bsoncore.AppendStringElement(d2, "name", h.AppName)
		d = bsoncore.AppendDocumentEnd(d2, appIdx)
	}
	dst = bsoncore.AppendDocumentEnd(d, clientIdx)

	return dst, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// parseHelloResponse translates a hello command reply into a
// description.Server, the shape server selection and SDAM consume.
func parseHelloResponse(addr address.Address, doc bsoncore.Document) description.Server {
	desc := description.Server{Addr: addr, LastUpdateTime: time.Now()}

	if v, ok := doc.Lookup("maxWireVersion"); ok {
		desc.MaxWireVersion = v.Int32()
	}
	if v, ok := doc.Lookup("minWireVersion"); ok {
		desc.MinWireVersion = v.Int32()
	}
	if v, ok := doc.Lookup("maxBsonObjectSize"); ok {
		desc.MaxDocumentSize = uint32(v.Int32())
	}
	if v, ok := doc.Lookup("maxMessageSizeBytes"); ok {
		desc.MaxMessageSize = uint32(v.Int32())
	}
	if v, ok := doc.Lookup("maxWriteBatchSize"); ok {
		desc.MaxBatchCount = uint32(v.Int32())
	}
	if v, ok := doc.Lookup("logicalSessionTimeoutMinutes"); ok {
		n := int64(v.Int32())
		desc.LogicalSessionTimeoutMinutes = &n
		desc.SessionTimeoutMinutes = uint32(n)
	}
	if v, ok := doc.Lookup("setName"); ok {
		desc.SetName = v.StringValue()
	}
	if v, ok := doc.Lookup("setVersion"); ok {
		desc.SetVersion = uint32(v.Int32())
	}
	if v, ok := doc.Lookup("electionId"); ok {
		desc.ElectionID = v.ObjectID()
	}
	if v, ok := doc.Lookup("primary"); ok {
		desc.Primary = address.Address(v.StringValue())
	}
	desc.Hosts = stringArray(doc, "hosts")
	desc.Passives = stringArray(doc, "passives")
	desc.Arbiters = stringArray(doc, "arbiters")
	desc.Compression = stringArray(doc, "compression")

	if tags, ok := doc.Lookup("tags"); ok {
		if sub := tags.Document(); sub != nil {
			desc.Tags = map[string]string{}
			elems, _ := sub.Elements()
			for _, e := range elems {
				desc.Tags[e.Key()] = e.Value().StringValue()
			}
		}
	}

	isReplicaSet, _ := doc.Lookup("isreplicaset")
	isMaster, hasIsMaster := doc.Lookup("ismaster")
	isMongos, _ := doc.Lookup("msg")
	_, hasSetName := doc.Lookup("setName")
	isArbiter, _ := doc.Lookup("arbiterOnly")
	secondary, _ := doc.Lookup("secondary")

	switch {
	case isMongos.Type != 0 && isMongos.StringValue() == "isdbgrid":
		desc.Kind = description.Mongos
	case hasSetName && isArbiter.Type != 0 && isArbiter.Boolean():
		desc.Kind = description.RSArbiter
	case hasSetName && hasIsMaster && isMaster.Boolean():
		desc.Kind = description.RSPrimary
	case hasSetName && secondary.Type != 0 && secondary.Boolean():
		desc.Kind = description.RSSecondary
	case hasSetName:
		desc.Kind = description.RSOther
	case isReplicaSet.Type != 0 && isReplicaSet.Boolean():
		desc.Kind = description.RSGhost
	default:
		desc.Kind = description.Standalone
	}

	return desc
}

func stringArray(doc bsoncore.Document, key string) []string {
	v, ok := doc.Lookup(key)
	if !ok {
		return nil
	}
	arr := v.Array()
	if arr == nil {
		return nil
	}
	vals, _ := arr.Values()
	out := make([]string, 0, len(vals))
	for _, val := range vals {
		out = append(out, val.StringValue())
	}
	return out
}
