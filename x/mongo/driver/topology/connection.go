// Package topology implements server discovery and monitoring: dialing and
// framing connections, pooling them per server, running the background
// monitor that keeps each server's description fresh, and aggregating
// those descriptions into a Topology that server selection reads.
package topology

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"sync/atomic"
	"time"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/wiremessage"
	"golang.org/x/crypto/ocsp"
)

var globalConnID uint64

func nextConnID() uint64 { return atomic.AddUint64(&globalConnID, 1) }

// Dialer opens the underlying net.Conn a Connection frames wire messages
// over. Swappable so tests can inject an in-memory pipe.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// DefaultDialer is used when no Dialer option is supplied. Its Control hook
// tunes TCP keepalive so a dead mongod is noticed quickly.
var DefaultDialer Dialer = &net.Dialer{
	Control: func(network, address string, rawConn syscall.RawConn) error {
		if !strings.HasPrefix(network, "tcp") {
			return nil
		}
		return tuneKeepAlive(rawConn)
	},
}

// Compressor is a negotiated wire compression algorithm.
type Compressor interface {
	Name() string
	ID() wiremessage.CompressorID
	CompressBytes(src, dst []byte) ([]byte, error)
	UncompressBytes(src []byte, uncompressedSize int32) ([]byte, error)
}

type connectionConfig struct {
	dialer       Dialer
	tlsConfig    *tls.Config
	handshaker   driver.Handshaker
	compressors  []Compressor
	idleTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// ConnectionOption configures a dialed connection.
type ConnectionOption func(*connectionConfig)

func WithDialer(d Dialer) ConnectionOption {
	return func(c *connectionConfig) { c.dialer = d }
}

func WithTLSConfig(cfg *tls.Config) ConnectionOption {
	return func(c *connectionConfig) { c.tlsConfig = cfg }
}

func WithHandshaker(h driver.Handshaker) ConnectionOption {
	return func(c *connectionConfig) { c.handshaker = h }
}

func WithCompressors(compressors []Compressor) ConnectionOption {
	return func(c *connectionConfig) { c.compressors = compressors }
}

func WithIdleTimeout(d time.Duration) ConnectionOption {
	return func(c *connectionConfig) { c.idleTimeout = d }
}

func newConnectionConfig(opts ...ConnectionOption) *connectionConfig {
	cfg := &connectionConfig{dialer: DefaultDialer}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// connection is a single dialed, framed MongoDB wire protocol connection.
type connection struct {
	addr         address.Address
	id           string
	generation   uint64
	nc           net.Conn
	desc         description.Server
	compressor   Compressor
	dead         bool
	idleTimeout  time.Duration
	idleDeadline time.Time
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// connect dials addr and, if cfg.handshaker is set, performs the initial
// hello exchange before returning.
func connect(ctx context.Context, addr address.Address, generation uint64, opts ...ConnectionOption) (*connection, error) {
	cfg := newConnectionConfig(opts...)

	nc, err := cfg.dialer.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("topology: dial %s: %w", addr, err)
	}
	if cfg.tlsConfig != nil {
		nc, err = configureTLS(ctx, nc, addr, cfg.tlsConfig.Clone())
		if err != nil {
			return nil, err
		}
	}

	c := &connection{
		addr:         addr,
		id:           fmt.Sprintf("%s[-%d]", addr, nextConnID()),
		generation:   generation,
		nc:           nc,
		idleTimeout:  cfg.idleTimeout,
		readTimeout:  cfg.readTimeout,
		writeTimeout: cfg.writeTimeout,
	}
	c.bumpIdle()

	if cfg.handshaker != nil {
		info, err := cfg.handshaker.GetHandshakeInformation(ctx, addr, c)
		if err != nil {
			c.close()
			return nil, err
		}
		c.desc = info.Description

		for _, comp := range cfg.compressors {
			for _, serverComp := range info.Description.Compression {
				if comp.Name() == serverComp {
					c.compressor = comp
					break
				}
			}
			if c.compressor != nil {
				break
			}
		}

		if err := cfg.handshaker.FinishHandshake(ctx, c); err != nil {
			c.close()
			return nil, err
		}
	}

	return c, nil
}

func configureTLS(ctx context.Context, nc net.Conn, addr address.Address, cfg *tls.Config) (net.Conn, error) {
	if cfg.ServerName == "" {
		host := string(addr)
		if idx := strings.LastIndex(host, ":"); idx != -1 {
			host = host[:idx]
		}
		cfg.ServerName = host
	}

	client := tls.Client(nc, cfg)
	errCh := make(chan error, 1)
	go func() { errCh <- client.HandshakeContext(ctx) }()
	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := verifyOCSPStaple(client.ConnectionState()); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// verifyOCSPStaple rejects a server certificate whose stapled OCSP response
// (if the server sent one) reports it revoked. A missing staple is not an
// error: stapling is optional and its absence is not proof of validity or
// revocation.
func verifyOCSPStaple(cs tls.ConnectionState) error {
	if len(cs.OCSPResponse) == 0 || len(cs.PeerCertificates) == 0 {
		return nil
	}

	leaf := cs.PeerCertificates[0]
	var issuer *x509.Certificate
	if len(cs.PeerCertificates) > 1 {
		issuer = cs.PeerCertificates[1]
	} else {
		issuer = leaf
	}

	resp, err := ocsp.ParseResponseForCert(cs.OCSPResponse, leaf, issuer)
	if err != nil {
		// A staple we can't parse/verify against this chain is treated as
		// absent rather than fatal, matching tlsDisableOCSPEndpointCheck's
		// best-effort posture.
		return nil
	}
	if resp.Status == ocsp.Revoked {
		return fmt.Errorf("topology: server certificate was revoked per stapled OCSP response")
	}
	return nil
}

func (c *connection) Description() description.Server { return c.desc }
func (c *connection) ID() string                       { return c.id }
func (c *connection) Address() address.Address         { return c.addr }
func (c *connection) Stale() bool                       { return c.dead }

func (c *connection) Alive() bool { return !c.dead }

func (c *connection) Expired() bool {
	return c.dead || (!c.idleDeadline.IsZero() && time.Now().After(c.idleDeadline))
}

func (c *connection) bumpIdle() {
	if c.idleTimeout > 0 {
		c.idleDeadline = time.Now().Add(c.idleTimeout)
	}
}

// WriteWireMessage writes a fully framed wire message, compressing it with
// OP_COMPRESSED first if a compressor was negotiated and the command
// permits compression.
func (c *connection) WriteWireMessage(ctx context.Context, wm []byte) error {
	if c.dead {
		return fmt.Errorf("topology: connection %s is dead", c.id)
	}

	deadline := c.deadline(ctx, c.writeTimeout)
	if err := c.nc.SetWriteDeadline(deadline); err != nil {
		return err
	}

	out := wm
	if c.compressor != nil && canCompress(wm) {
		compressed, err := c.compressMessage(wm)
		if err != nil {
			return fmt.Errorf("topology: compress wire message: %w", err)
		}
		out = compressed
	}

	if _, err := c.nc.Write(out); err != nil {
		c.close()
		return fmt.Errorf("topology: write wire message: %w", err)
	}
	c.bumpIdle()
	return nil
}

// ReadWireMessage reads one complete wire message, transparently
// decompressing an OP_COMPRESSED envelope.
func (c *connection) ReadWireMessage(ctx context.Context) ([]byte, error) {
	if c.dead {
		return nil, fmt.Errorf("topology: connection %s is dead", c.id)
	}

	deadline := c.deadline(ctx, c.readTimeout)
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.nc, sizeBuf[:]); err != nil {
		c.close()
		return nil, fmt.Errorf("topology: read message length: %w", err)
	}
	size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
	if size < 16 {
		c.close()
		return nil, fmt.Errorf("topology: invalid message length %d", size)
	}

	buf := make([]byte, size)
	copy(buf, sizeBuf[:])
	if _, err := io.ReadFull(c.nc, buf[4:]); err != nil {
		c.close()
		return nil, fmt.Errorf("topology: read message body: %w", err)
	}

	hdr, err := wiremessage.ReadHeader(buf)
	if err != nil {
		c.close()
		return nil, err
	}
	if hdr.OpCode != wiremessage.OpCompressed {
		c.bumpIdle()
		return buf, nil
	}

	compressed, err := wiremessage.ReadCompressed(buf)
	if err != nil {
		c.close()
		return nil, err
	}
	uncompressed, err := c.decompressMessage(compressed)
	if err != nil {
		c.close()
		return nil, err
	}
	c.bumpIdle()
	return uncompressed, nil
}

func (c *connection) deadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	return deadline
}

// canCompress excludes the commands the wire protocol spec forbids
// compressing (the handshake and auth exchanges, before a compressor could
// possibly have been negotiated).
func canCompress(wm []byte) bool {
	hdr, err := wiremessage.ReadHeader(wm)
	if err != nil || hdr.OpCode != wiremessage.OpMsg {
		return false
	}
	msg, err := wiremessage.ReadMsg(wm)
	if err != nil || len(msg.Sections) == 0 {
		return false
	}
	doc := bsoncore.Document(msg.Sections[0].Documents[0])
	elems, err := doc.Elements()
	if err != nil || len(elems) == 0 {
		return false
	}
	switch elems[0].Key() {
	case "hello", "isMaster", "ismaster", "saslStart", "saslContinue", "authenticate", "getnonce", "createUser", "updateUser":
		return false
	}
	return true
}

func (c *connection) compressMessage(wm []byte) ([]byte, error) {
	body := wm[wiremessage.HeaderLen:]
	compressed, err := c.compressor.CompressBytes(body, nil)
	if err != nil {
		return nil, err
	}
	hdr, err := wiremessage.ReadHeader(wm)
	if err != nil {
		return nil, err
	}
	return wiremessage.AppendCompressed(nil, hdr.RequestID, wiremessage.Compressed{
		OriginalOpCode:    hdr.OpCode,
		UncompressedSize:  int32(len(body)),
		CompressorID:      c.compressor.ID(),
		CompressedMessage: compressed,
	}), nil
}

func (c *connection) decompressMessage(compressed wiremessage.Compressed) ([]byte, error) {
	if c.compressor == nil || c.compressor.ID() != compressed.CompressorID {
		return nil, fmt.Errorf("topology: no compressor registered for id %d", compressed.CompressorID)
	}
	body, err := c.compressor.UncompressBytes(compressed.CompressedMessage, compressed.UncompressedSize)
	if err != nil {
		return nil, err
	}
	hdr := wiremessage.Header{
		MessageLength: int32(wiremessage.HeaderLen) + int32(len(body)),
		RequestID:     compressed.Header.RequestID,
		ResponseTo:    compressed.Header.ResponseTo,
		OpCode:        compressed.OriginalOpCode,
	}
	out := wiremessage.AppendHeader(nil, hdr)
	return append(out, body...), nil
}

func (c *connection) close() error {
	c.dead = true
	return c.nc.Close()
}

func (c *connection) Close() error { return c.close() }
