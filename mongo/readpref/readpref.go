// Package readpref defines the read preference types used to choose which
// replica set members (or which mongos instances) are eligible to serve a
// read, mirroring the driver's internal description.ReadPreference but
// exposed as small, constructor-built values at the public API surface.
package readpref

import (
	"errors"
	"time"

	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

// ReadPref determines which servers are read from.
type ReadPref struct {
	mode         description.ReadPreferenceMode
	tagSets      []map[string]string
	maxStaleness time.Duration
}

// Primary constructs a read preference with mode Primary.
func Primary() *ReadPref {
	return &ReadPref{mode: description.PrimaryMode}
}

// PrimaryPreferred constructs a read preference with mode PrimaryPreferred.
func PrimaryPreferred(opts ...Option) *ReadPref {
	return newWithMode(description.PrimaryPreferredMode, opts...)
}

// Secondary constructs a read preference with mode Secondary.
func Secondary(opts ...Option) *ReadPref {
	return newWithMode(description.SecondaryMode, opts...)
}

// SecondaryPreferred constructs a read preference with mode SecondaryPreferred.
func SecondaryPreferred(opts ...Option) *ReadPref {
	return newWithMode(description.SecondaryPreferredMode, opts...)
}

// Nearest constructs a read preference with mode Nearest.
func Nearest(opts ...Option) *ReadPref {
	return newWithMode(description.NearestMode, opts...)
}

func newWithMode(mode description.ReadPreferenceMode, opts ...Option) *ReadPref {
	rp := &ReadPref{mode: mode}
	for _, opt := range opts {
		opt(rp)
	}
	return rp
}

// Option configures a ReadPref constructed with a non-primary mode.
type Option func(*ReadPref)

// WithTags adds a tag set a member must match to be eligible.
func WithTags(tagSet map[string]string) Option {
	return func(rp *ReadPref) { rp.tagSets = append(rp.tagSets, tagSet) }
}

// WithMaxStaleness sets the maximum replication lag a secondary may have.
func WithMaxStaleness(d time.Duration) Option {
	return func(rp *ReadPref) { rp.maxStaleness = d }
}

// Mode returns the read preference mode.
func (rp *ReadPref) Mode() description.ReadPreferenceMode { return rp.mode }

// TagSets returns the tag sets, in preference order.
func (rp *ReadPref) TagSets() []map[string]string { return rp.tagSets }

// MaxStaleness returns the configured maximum staleness, or 0 if unset.
func (rp *ReadPref) MaxStaleness() time.Duration { return rp.maxStaleness }

// ToDescription converts rp to the driver's internal selection type.
func (rp *ReadPref) ToDescription() description.ReadPreference {
	if rp == nil {
		return description.ReadPreference{Mode: description.PrimaryMode}
	}
	return description.ReadPreference{
		Mode:         rp.mode,
		TagSets:      rp.tagSets,
		MaxStaleness: rp.maxStaleness,
	}
}

// ErrInvalidTagSet is returned by Validate when a primary read preference
// carries tag sets.
var ErrInvalidTagSet = errors.New("readpref: a primary read preference cannot carry tag sets")

// Validate reports whether rp is internally consistent.
func (rp *ReadPref) Validate() error {
	if rp.mode == description.PrimaryMode && len(rp.tagSets) > 0 {
		return ErrInvalidTagSet
	}
	return nil
}
