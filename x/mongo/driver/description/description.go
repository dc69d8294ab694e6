// Package description models server and topology state as the driver's
// SDAM monitoring observes it: the kinds, tags, and staleness data that
// feed server selection.
package description

import (
	"time"

	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
)

// ServerKind classifies a single server's role within its topology.
type ServerKind uint32

const (
	Unknown ServerKind = iota
	Standalone
	RSPrimary
	RSSecondary
	RSArbiter
	RSOther
	RSGhost
	Mongos
	LoadBalancer
)

func (k ServerKind) String() string {
	switch k {
	case Standalone:
		return "Standalone"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case RSArbiter:
		return "RSArbiter"
	case RSOther:
		return "RSOther"
	case RSGhost:
		return "RSGhost"
	case Mongos:
		return "Mongos"
	case LoadBalancer:
		return "LoadBalancer"
	default:
		return "Unknown"
	}
}

// TopologyKind classifies the deployment shape the driver is talking to.
type TopologyKind uint32

const (
	TopologyUnknown TopologyKind = iota
	TopologySingle
	TopologyReplicaSet
	TopologyReplicaSetNoPrimary
	TopologyReplicaSetWithPrimary
	TopologySharded
	TopologyLoadBalanced
)

// VersionRange is an inclusive [Min, Max] wire version range, used to
// decide whether a server speaks a feature the driver needs.
type VersionRange struct {
	Min, Max int32
}

// Includes reports whether v falls within the range.
func (vr VersionRange) Includes(v int32) bool {
	return v >= vr.Min && v <= vr.Max
}

// Server is a point-in-time snapshot of one server's hello/isMaster
// response, as produced by the monitor and consumed by server selection.
type Server struct {
	Addr                  address.Address
	Kind                  ServerKind
	AverageRTT            time.Duration
	AverageRTTSet         bool
	LastWriteTime         time.Time
	LastUpdateTime        time.Time
	MaxDocumentSize       uint32
	MaxMessageSize        uint32
	MaxBatchCount         uint32
	MaxWireVersion        int32
	MinWireVersion        int32
	Tags                  map[string]string
	SetName               string
	SetVersion            uint32
	ElectionID            primitive.ObjectID
	Primary               address.Address
	Hosts                 []string
	Passives              []string
	Arbiters              []string
	Compression           []string
	SessionTimeoutMinutes uint32
	TopologyVersion       *TopologyVersion
	LogicalSessionTimeoutMinutes *int64
	LastError             error
}

// MatchesTags reports whether s carries every key/value pair in tagSet.
func (s Server) MatchesTags(tagSet map[string]string) bool {
	for k, v := range tagSet {
		if s.Tags[k] != v {
			return false
		}
	}
	return true
}

// DataBearing reports whether s can serve reads/writes (excludes arbiters,
// ghosts, and unknown servers).
func (s Server) DataBearing() bool {
	switch s.Kind {
	case Standalone, RSPrimary, RSSecondary, Mongos, LoadBalancer:
		return true
	}
	return false
}

// TopologyVersion tracks the monotonic (ProcessID, Counter) pair a server
// reports, used to detect stale streaming-isMaster responses.
type TopologyVersion struct {
	ProcessID primitive.ObjectID
	Counter   int64
}

// NewerThan reports whether tv is strictly newer than other.
func (tv *TopologyVersion) NewerThan(other *TopologyVersion) bool {
	if tv == nil || other == nil {
		return tv != nil
	}
	if tv.ProcessID != other.ProcessID {
		return true
	}
	return tv.Counter > other.Counter
}

// Topology is a point-in-time snapshot of every known server, as assembled
// by the topology state machine from individual Server updates.
type Topology struct {
	Kind                         TopologyKind
	Servers                      []Server
	SetName                      string
	CompatibilityErr             error
	SessionTimeoutMinutes        uint32
	LogicalSessionTimeoutMinutes *int64
}

// HasPrimary returns the primary server description, if one is known.
func (t Topology) HasPrimary() (Server, bool) {
	for _, s := range t.Servers {
		if s.Kind == RSPrimary {
			return s, true
		}
	}
	return Server{}, false
}

// HasReadableServer reports whether t has at least one data-bearing server.
func (t Topology) HasReadableServer() bool {
	for _, s := range t.Servers {
		if s.DataBearing() {
			return true
		}
	}
	return false
}

// SelectedServer pairs a single chosen Server with the topology kind it was
// selected from, since command construction (e.g. whether to wrap the
// command in $query for a mongos) depends on both.
type SelectedServer struct {
	Server Server
	Kind   TopologyKind
}

// ReadPreferenceMode is the read preference's core mode: which kind of
// member(s) of a replica set may serve the read.
type ReadPreferenceMode uint8

const (
	PrimaryMode ReadPreferenceMode = iota
	PrimaryPreferredMode
	SecondaryMode
	SecondaryPreferredMode
	NearestMode
)

func (m ReadPreferenceMode) String() string {
	switch m {
	case PrimaryMode:
		return "primary"
	case PrimaryPreferredMode:
		return "primaryPreferred"
	case SecondaryMode:
		return "secondary"
	case SecondaryPreferredMode:
		return "secondaryPreferred"
	case NearestMode:
		return "nearest"
	default:
		return "unknown"
	}
}

// ReadPreference selects which members of a replica set (or which mongos)
// are eligible to serve a read.
type ReadPreference struct {
	Mode         ReadPreferenceMode
	TagSets      []map[string]string
	MaxStaleness time.Duration
}

