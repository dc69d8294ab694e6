// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/brinkdb/mongowire/internal/logger"
	"github.com/brinkdb/mongowire/internal/logr"
	"github.com/brinkdb/mongowire/mongo/options"
	"github.com/brinkdb/mongowire/mongo/readconcern"
	"github.com/brinkdb/mongowire/mongo/readpref"
	"github.com/brinkdb/mongowire/mongo/writeconcern"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/auth"
	"github.com/brinkdb/mongowire/x/mongo/driver/operation"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
	"github.com/brinkdb/mongowire/x/mongo/driver/topology"
	"go.uber.org/multierr"
)

// Client is a handle to a MongoDB deployment, holding the topology's
// connection pools, the session/cluster-time state shared across
// operations issued from it, and the default read/write settings every
// Database and Collection derived from it inherits unless overridden.
type Client struct {
	deployment   *topology.Topology
	sessionPool  *session.Pool
	clock        *session.ClusterClock
	registry     interface{} // reserved: custom bson.Registry hook point

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern
	retryWrites    bool
	retryReads     bool

	log *logger.Logger

	connected bool
}

// Connect creates a Client and starts its topology monitors. Unlike the
// legacy driver's two-step NewClient/Connect, this mirrors the v1 API: a
// single call returns a ready-to-use Client.
func Connect(ctx context.Context, opts *options.ClientOptions) (*Client, error) {
	if opts == nil {
		opts = options.Client()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("mongo: invalid options: %w", err)
	}
	if len(opts.Hosts) == 0 {
		return nil, fmt.Errorf("mongo: at least one host is required")
	}

	seeds := make([]address.Address, 0, len(opts.Hosts))
	for _, h := range opts.Hosts {
		seeds = append(seeds, address.Address(h))
	}

	hello := &operation.Hello{AppName: derefString(opts.AppName)}
	var handshaker driver.Handshaker = hello
	if opts.Auth != nil {
		handshaker = &topology.AuthHandshaker{
			Wrapped: hello,
			Mechanism: opts.Auth.AuthMechanism,
			Cred: &auth.Cred{
				Source:      opts.Auth.AuthSource,
				Username:    opts.Auth.Username,
				Password:    opts.Auth.Password,
				PasswordSet: opts.Auth.PasswordSet,
			},
		}
	}

	var connOpts []topology.ConnectionOption
	connOpts = append(connOpts, topology.WithHandshaker(handshaker))

	if opts.TLSCertificateKeyFile != nil || opts.TLSCAFile != nil || opts.TLSInsecure != nil {
		tlsCfg, err := buildTLSConfig(opts)
		if err != nil {
			return nil, fmt.Errorf("mongo: building TLS config: %w", err)
		}
		connOpts = append(connOpts, topology.WithTLSConfig(tlsCfg))
	}

	maxPoolSize := uint64(100)
	if opts.MaxPoolSize != nil {
		maxPoolSize = *opts.MaxPoolSize
	}

	deployment := topology.New(topology.Config{
		Seeds:             seeds,
		Handshaker:        handshaker,
		ConnectionOptions: connOpts,
		MaxPoolSize:       maxPoolSize,
	})
	deployment.Connect()

	clock := &session.ClusterClock{}
	sessPool := session.NewPool()

	retryWrites, retryReads := true, true
	if opts.RetryWrites != nil {
		retryWrites = *opts.RetryWrites
	}
	if opts.RetryReads != nil {
		retryReads = *opts.RetryReads
	}

	rp := opts.ReadPreference
	if rp == nil {
		rp = readpref.Primary()
	}
	rc := opts.ReadConcern
	if rc == nil {
		rc = readconcern.Local()
	}
	wc := opts.WriteConcern
	if wc == nil {
		wc = writeconcern.Majority()
	}

	log, err := buildLogger(opts.LoggerOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo: building logger: %w", err)
	}
	logger.StartPrintListener(log)

	return &Client{
		deployment:     deployment,
		sessionPool:    sessPool,
		clock:          clock,
		readPreference: rp,
		readConcern:    rc,
		writeConcern:   wc,
		retryWrites:    retryWrites,
		retryReads:     retryReads,
		log:            log,
		connected:      true,
	}, nil
}

// buildLogger constructs the client's structured logger. If the caller did
// not configure a sink, log lines go to a production zap logger (see
// internal/logr), the way the teacher's examples/_logger/zap integration
// plugs a third-party structured logger into the driver's log sink.
func buildLogger(opts *options.LoggerOptions) (*logger.Logger, error) {
	var sink logger.LogSink
	var componentLevels map[logger.Component]logger.Level
	var maxDocLen uint

	if opts != nil {
		sink = opts.Sink
		componentLevels = opts.ComponentLevels
		if opts.MaxDocumentLength != nil {
			maxDocLen = *opts.MaxDocumentLength
		}
	}

	if sink == nil {
		zapSink, err := logr.NewProduction()
		if err != nil {
			return nil, err
		}
		sink = zapSink
	}

	return logger.New(sink, maxDocLen, componentLevels), nil
}

// buildTLSConfig assembles a *tls.Config from the client's TLS options,
// loading an encrypted PKCS8 client key (x/mongo/driver/topology's
// youmark/pkcs8-backed loader) when a key file password is supplied.
func buildTLSConfig(opts *options.ClientOptions) (*tls.Config, error) {
	cfg := &tls.Config{}

	if opts.TLSInsecure != nil && *opts.TLSInsecure {
		cfg.InsecureSkipVerify = true
	}

	if opts.TLSCAFile != nil {
		pem, err := os.ReadFile(*opts.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", *opts.TLSCAFile)
		}
		cfg.RootCAs = pool
	}

	if opts.TLSCertificateKeyFile != nil {
		var password []byte
		if opts.TLSCertificateKeyFilePassword != nil {
			password = []byte(*opts.TLSCertificateKeyFilePassword)
		}
		cert, err := topology.LoadClientCertificate(*opts.TLSCertificateKeyFile, *opts.TLSCertificateKeyFile, password)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// syncer is implemented by log sinks (internal/logr.Sink) that buffer
// entries and need an explicit flush before shutdown.
type syncer interface {
	Sync() error
}

// Disconnect closes every connection pool the topology holds and flushes
// the logger. The Client must not be used again afterward.
func (c *Client) Disconnect(ctx context.Context) error {
	if !c.connected {
		return nil
	}
	c.deployment.Disconnect()
	c.connected = false

	var err error
	if s, ok := c.log.Sink.(syncer); ok {
		err = multierr.Append(err, s.Sync())
	}
	c.log.Close()
	return err
}

// Ping issues a "ping" command against a server matching rp (the client's
// default read preference if rp is nil), failing if none responds.
func (c *Client) Ping(ctx context.Context, rp *readpref.ReadPref) error {
	if !c.connected {
		return ErrClientDisconnected
	}
	if rp == nil {
		rp = c.readPreference
	}

	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendInt32Element(dst, "ping", 1)
	dst = bsoncore.AppendDocumentEnd(dst, idx)

	cmd := operation.NewRunCommand(dst).
		Database("admin").
		Deployment(c.deployment).
		ReadPreference(rp.ToDescription()).
		ServerSelector(&topology.ReadPrefSelector{RP: rp.ToDescription()})
	return cmd.Execute(ctx)
}

// Database returns a handle to the named database, inheriting the
// client's defaults unless opts overrides them.
func (c *Client) Database(name string, opts ...*options.DatabaseOptions) *Database {
	db := &Database{
		client:         c,
		name:           name,
		readPreference: c.readPreference,
		readConcern:    c.readConcern,
		writeConcern:   c.writeConcern,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			db.readPreference = o.ReadPreference
		}
		if o.ReadConcern != nil {
			db.readConcern = o.ReadConcern
		}
		if o.WriteConcern != nil {
			db.writeConcern = o.WriteConcern
		}
	}
	return db
}

// StartSession leases a logical session from the client's session pool.
// Callers must call EndSession when finished.
func (c *Client) StartSession() (*session.Client, error) {
	if !c.connected {
		return nil, ErrClientDisconnected
	}
	return session.NewClient(c.clock, c.sessionPool, false), nil
}

// UseSession runs fn with a freshly started session attached to ctx,
// ending the session when fn returns regardless of error.
func (c *Client) UseSession(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := c.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession()
	return fn(session.WithSession(ctx, sess))
}
