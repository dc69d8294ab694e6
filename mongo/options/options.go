// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"time"

	"github.com/brinkdb/mongowire/internal/logger"
	"github.com/brinkdb/mongowire/mongo/readconcern"
	"github.com/brinkdb/mongowire/mongo/readpref"
	"github.com/brinkdb/mongowire/mongo/writeconcern"
)

// Collation allows users to specify language-specific rules for string
// comparison, such as rules for letter case and accent marks.
type Collation struct {
	Locale          string
	CaseLevel       bool
	CaseFirst       string
	Strength        int
	NumericOrdering bool
	Alternate       string
	MaxVariable     string
	Normalization   bool
	Backwards       bool
}

// FullDocument controls what a change stream includes alongside a delta.
type FullDocument string

// These constants configure the FullDocument option for a change stream.
const (
	Off               FullDocument = "off"
	Default           FullDocument = "default"
	Required          FullDocument = "required"
	WhenAvailable     FullDocument = "whenAvailable"
)

// Credential holds the authentication mechanism and identity a Client
// authenticates each new connection with.
type Credential struct {
	AuthMechanism string
	AuthSource    string
	Username      string
	Password      string
	PasswordSet   bool
}

// ClientOptions represents arguments that can be used to configure a Client.
type ClientOptions struct {
	Hosts          []string
	AppName        *string
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern
	ConnectTimeout *time.Duration
	MaxPoolSize    *uint64
	Compressors    []string
	RetryWrites    *bool
	RetryReads     *bool
	Auth           *Credential
	LoggerOptions  *LoggerOptions

	TLSCertificateKeyFile         *string
	TLSCertificateKeyFilePassword *string
	TLSCAFile                     *string
	TLSInsecure                   *bool

	err error
}

// LoggerOptions configures the Client's structured logger: which sink
// receives rendered log lines, the level enabled per component, and the
// maximum length a stringified BSON document is truncated to.
type LoggerOptions struct {
	Sink              logger.LogSink
	ComponentLevels   map[logger.Component]logger.Level
	MaxDocumentLength *uint
}

// Logger creates a new LoggerOptions instance.
func Logger() *LoggerOptions { return &LoggerOptions{} }

// SetSink sets the LogSink log lines are written to. internal/logr.Sink
// adapts a *zap.Logger to this interface.
func (l *LoggerOptions) SetSink(sink logger.LogSink) *LoggerOptions {
	l.Sink = sink
	return l
}

// SetComponentLevel sets the level enabled for a single component.
func (l *LoggerOptions) SetComponentLevel(component logger.Component, level logger.Level) *LoggerOptions {
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[logger.Component]logger.Level)
	}
	l.ComponentLevels[component] = level
	return l
}

// SetMaxDocumentLength sets the length a stringified BSON document is
// truncated to before being logged.
func (l *LoggerOptions) SetMaxDocumentLength(n uint) *LoggerOptions {
	l.MaxDocumentLength = &n
	return l
}

// SetLoggerOptions attaches logger configuration to the client.
func (c *ClientOptions) SetLoggerOptions(opts *LoggerOptions) *ClientOptions {
	c.LoggerOptions = opts
	return c
}

// Client creates a new ClientOptions instance with defaults filled in.
func Client() *ClientOptions {
	retryWrites, retryReads := true, true
	return &ClientOptions{RetryWrites: &retryWrites, RetryReads: &retryReads}
}

// ApplyURI parses a mongodb:// or mongodb+srv:// connection string into opts,
// the way the teacher's options.ClientOptions.ApplyURI builds up a
// ClientOptions from individual query parameters. A malformed URI is
// recorded and surfaced by Validate rather than returned directly, so calls
// can still be chained.
func (c *ClientOptions) ApplyURI(uri string) *ClientOptions {
	cs, err := ParseConnString(uri)
	if err != nil {
		c.err = err
		return c
	}
	c.Hosts = cs.Hosts
	if cs.AppName != "" {
		c.AppName = &cs.AppName
	}
	if cs.RetryWritesSet {
		c.RetryWrites = &cs.RetryWrites
	}
	if cs.RetryReadsSet {
		c.RetryReads = &cs.RetryReads
	}
	if cs.ConnectTimeoutSet {
		c.ConnectTimeout = &cs.ConnectTimeout
	}
	if cs.MaxPoolSizeSet {
		c.MaxPoolSize = &cs.MaxPoolSize
	}
	if len(cs.Compressors) > 0 {
		c.Compressors = cs.Compressors
	}
	return c
}

// SetAppName sets the application name sent in the client's handshake.
func (c *ClientOptions) SetAppName(name string) *ClientOptions {
	c.AppName = &name
	return c
}

// SetHosts sets the seed list of servers to connect to.
func (c *ClientOptions) SetHosts(hosts []string) *ClientOptions {
	c.Hosts = hosts
	return c
}

// SetReadPreference sets the default read preference for the client.
func (c *ClientOptions) SetReadPreference(rp *readpref.ReadPref) *ClientOptions {
	c.ReadPreference = rp
	return c
}

// SetReadConcern sets the default read concern for the client.
func (c *ClientOptions) SetReadConcern(rc *readconcern.ReadConcern) *ClientOptions {
	c.ReadConcern = rc
	return c
}

// SetWriteConcern sets the default write concern for the client.
func (c *ClientOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *ClientOptions {
	c.WriteConcern = wc
	return c
}

// SetConnectTimeout sets the timeout for establishing new connections.
func (c *ClientOptions) SetConnectTimeout(d time.Duration) *ClientOptions {
	c.ConnectTimeout = &d
	return c
}

// SetMaxPoolSize sets the maximum number of connections per server.
func (c *ClientOptions) SetMaxPoolSize(n uint64) *ClientOptions {
	c.MaxPoolSize = &n
	return c
}

// SetCompressors sets the list of compressors to negotiate, in preference order.
func (c *ClientOptions) SetCompressors(compressors []string) *ClientOptions {
	c.Compressors = compressors
	return c
}

// SetRetryWrites sets whether supported single-statement writes are retried once.
func (c *ClientOptions) SetRetryWrites(b bool) *ClientOptions {
	c.RetryWrites = &b
	return c
}

// SetRetryReads sets whether supported reads are retried once.
func (c *ClientOptions) SetRetryReads(b bool) *ClientOptions {
	c.RetryReads = &b
	return c
}

// SetAuth sets the credential used to authenticate each new connection.
func (c *ClientOptions) SetAuth(cred Credential) *ClientOptions {
	c.Auth = &cred
	return c
}

// SetTLSCertificateKeyFile sets the path to a PEM file holding the client's
// certificate and private key for mutual TLS.
func (c *ClientOptions) SetTLSCertificateKeyFile(path string) *ClientOptions {
	c.TLSCertificateKeyFile = &path
	return c
}

// SetTLSCertificateKeyFilePassword sets the password that decrypts an
// encrypted PKCS8 private key in the TLS certificate key file.
func (c *ClientOptions) SetTLSCertificateKeyFilePassword(password string) *ClientOptions {
	c.TLSCertificateKeyFilePassword = &password
	return c
}

// SetTLSCAFile sets the path to a PEM file of CA certificates trusted to
// verify the server's certificate.
func (c *ClientOptions) SetTLSCAFile(path string) *ClientOptions {
	c.TLSCAFile = &path
	return c
}

// SetTLSInsecure disables server certificate and hostname verification.
// Only meant for testing against a self-signed deployment.
func (c *ClientOptions) SetTLSInsecure(insecure bool) *ClientOptions {
	c.TLSInsecure = &insecure
	return c
}

// Validate checks that opts is internally consistent and that ApplyURI (if
// called) parsed without error.
func (c *ClientOptions) Validate() error {
	return c.err
}

// DatabaseOptions represents arguments that can be used to configure a Database.
type DatabaseOptions struct {
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern
}

// Database creates a new DatabaseOptions instance.
func Database() *DatabaseOptions { return &DatabaseOptions{} }

// SetReadPreference overrides the inherited read preference for this database.
func (d *DatabaseOptions) SetReadPreference(rp *readpref.ReadPref) *DatabaseOptions {
	d.ReadPreference = rp
	return d
}

// SetReadConcern overrides the inherited read concern for this database.
func (d *DatabaseOptions) SetReadConcern(rc *readconcern.ReadConcern) *DatabaseOptions {
	d.ReadConcern = rc
	return d
}

// SetWriteConcern overrides the inherited write concern for this database.
func (d *DatabaseOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *DatabaseOptions {
	d.WriteConcern = wc
	return d
}

// CollectionOptions represents arguments that can be used to configure a Collection.
type CollectionOptions struct {
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern
}

// Collection creates a new CollectionOptions instance.
func Collection() *CollectionOptions { return &CollectionOptions{} }

// SetReadPreference overrides the inherited read preference for this collection.
func (c *CollectionOptions) SetReadPreference(rp *readpref.ReadPref) *CollectionOptions {
	c.ReadPreference = rp
	return c
}

// SetReadConcern overrides the inherited read concern for this collection.
func (c *CollectionOptions) SetReadConcern(rc *readconcern.ReadConcern) *CollectionOptions {
	c.ReadConcern = rc
	return c
}

// SetWriteConcern overrides the inherited write concern for this collection.
func (c *CollectionOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *CollectionOptions {
	c.WriteConcern = wc
	return c
}

// FindOptions represents arguments that can be used to configure a Find operation.
type FindOptions struct {
	Limit      *int64
	Skip       *int64
	Sort       interface{}
	Projection interface{}
	BatchSize  *int32
}

// Find creates a new FindOptions instance.
func Find() *FindOptions { return &FindOptions{} }

// SetLimit sets the maximum number of documents to return.
func (f *FindOptions) SetLimit(n int64) *FindOptions { f.Limit = &n; return f }

// SetSkip sets the number of documents to skip.
func (f *FindOptions) SetSkip(n int64) *FindOptions { f.Skip = &n; return f }

// SetSort sets the order in which matched documents are returned.
func (f *FindOptions) SetSort(sort interface{}) *FindOptions { f.Sort = sort; return f }

// SetProjection limits the fields returned for matching documents.
func (f *FindOptions) SetProjection(projection interface{}) *FindOptions { f.Projection = projection; return f }

// SetBatchSize sets the number of documents returned in each batch.
func (f *FindOptions) SetBatchSize(n int32) *FindOptions { f.BatchSize = &n; return f }

// FindOneOptions represents arguments that can be used to configure a FindOne operation.
type FindOneOptions struct {
	Skip       *int64
	Sort       interface{}
	Projection interface{}
}

// FindOne creates a new FindOneOptions instance.
func FindOne() *FindOneOptions { return &FindOneOptions{} }

// SetSkip sets the number of documents to skip before choosing a match.
func (f *FindOneOptions) SetSkip(n int64) *FindOneOptions { f.Skip = &n; return f }

// SetSort sets the order used to choose among matching documents.
func (f *FindOneOptions) SetSort(sort interface{}) *FindOneOptions { f.Sort = sort; return f }

// SetProjection limits the fields returned for the matched document.
func (f *FindOneOptions) SetProjection(projection interface{}) *FindOneOptions {
	f.Projection = projection
	return f
}

// UpdateOptions represents arguments that can be used to configure Update/Replace operations.
type UpdateOptions struct {
	Upsert                   *bool
	ArrayFilters             []interface{}
	BypassDocumentValidation *bool
}

// Update creates a new UpdateOptions instance.
func Update() *UpdateOptions { return &UpdateOptions{} }

// SetUpsert sets whether a new document is inserted if nothing matches.
func (u *UpdateOptions) SetUpsert(b bool) *UpdateOptions { u.Upsert = &b; return u }

// SetArrayFilters sets the filters determining which array elements an update applies to.
func (u *UpdateOptions) SetArrayFilters(filters []interface{}) *UpdateOptions {
	u.ArrayFilters = filters
	return u
}

// SetBypassDocumentValidation sets whether document-level validation is bypassed.
func (u *UpdateOptions) SetBypassDocumentValidation(b bool) *UpdateOptions {
	u.BypassDocumentValidation = &b
	return u
}

// DeleteOptions represents arguments that can be used to configure Delete operations.
type DeleteOptions struct {
	Collation *Collation
}

// Delete creates a new DeleteOptions instance.
func Delete() *DeleteOptions { return &DeleteOptions{} }

// SetCollation sets the collation to use for string comparisons.
func (d *DeleteOptions) SetCollation(c *Collation) *DeleteOptions { d.Collation = c; return d }

// AggregateOptions represents arguments that can be used to configure an Aggregate operation.
type AggregateOptions struct {
	AllowDiskUse *bool
	BatchSize    *int32
	MaxTime      *time.Duration
	Comment      interface{}
}

// Aggregate creates a new AggregateOptions instance.
func Aggregate() *AggregateOptions { return &AggregateOptions{} }

// SetAllowDiskUse sets whether the server may write temporary data to disk
// while executing the pipeline.
func (a *AggregateOptions) SetAllowDiskUse(b bool) *AggregateOptions { a.AllowDiskUse = &b; return a }

// SetBatchSize sets the number of documents returned in each batch.
func (a *AggregateOptions) SetBatchSize(n int32) *AggregateOptions { a.BatchSize = &n; return a }

// SetMaxTime sets the maximum amount of time the server may spend executing the pipeline.
func (a *AggregateOptions) SetMaxTime(d time.Duration) *AggregateOptions { a.MaxTime = &d; return a }

// SetComment sets a string included in server logs, profiling logs, and currentOp.
func (a *AggregateOptions) SetComment(comment interface{}) *AggregateOptions { a.Comment = comment; return a }

// RunCmdOptions represents arguments that can be used to configure a Database.RunCommand operation.
type RunCmdOptions struct {
	ReadPreference *readpref.ReadPref
}

// RunCmd creates a new RunCmdOptions instance.
func RunCmd() *RunCmdOptions { return &RunCmdOptions{} }

// SetReadPreference sets the read preference the command is routed with.
func (r *RunCmdOptions) SetReadPreference(rp *readpref.ReadPref) *RunCmdOptions {
	r.ReadPreference = rp
	return r
}
