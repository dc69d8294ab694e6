package topology

import (
	"time"

	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

// ReadPrefSelector selects the servers eligible to serve a read under the
// given read preference: mode, tag sets, and max staleness.
type ReadPrefSelector struct {
	RP description.ReadPreference
}

// SelectServer implements driver.ServerSelector.
func (s ReadPrefSelector) SelectServer(topo description.Topology, candidates []description.Server) ([]description.Server, error) {
	switch topo.Kind {
	case description.TopologySingle:
		return candidates, nil
	case description.TopologySharded:
		return selectDataBearing(candidates), nil
	}

	switch s.RP.Mode {
	case description.PrimaryMode:
		return selectByKind(candidates, description.RSPrimary), nil
	case description.PrimaryPreferredMode:
		if primaries := selectByKind(candidates, description.RSPrimary); len(primaries) > 0 {
			return primaries, nil
		}
		return s.selectSecondaries(topo, candidates), nil
	case description.SecondaryMode:
		return s.selectSecondaries(topo, candidates), nil
	case description.SecondaryPreferredMode:
		if secondaries := s.selectSecondaries(topo, candidates); len(secondaries) > 0 {
			return secondaries, nil
		}
		return selectByKind(candidates, description.RSPrimary), nil
	case description.NearestMode:
		pool := selectDataBearing(candidates)
		pool = filterByTagSets(pool, s.RP.TagSets)
		pool = filterByMaxStaleness(pool, topo, s.RP.MaxStaleness)
		return latencyWindow(pool), nil
	default:
		return selectByKind(candidates, description.RSPrimary), nil
	}
}

func (s ReadPrefSelector) selectSecondaries(topo description.Topology, candidates []description.Server) []description.Server {
	pool := selectByKind(candidates, description.RSSecondary)
	pool = filterByTagSets(pool, s.RP.TagSets)
	pool = filterByMaxStaleness(pool, topo, s.RP.MaxStaleness)
	return latencyWindow(pool)
}

func selectByKind(candidates []description.Server, kind description.ServerKind) []description.Server {
	var out []description.Server
	for _, c := range candidates {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func selectDataBearing(candidates []description.Server) []description.Server {
	var out []description.Server
	for _, c := range candidates {
		if c.DataBearing() {
			out = append(out, c)
		}
	}
	return out
}

func filterByTagSets(candidates []description.Server, tagSets []map[string]string) []description.Server {
	if len(tagSets) == 0 {
		return candidates
	}
	for _, tagSet := range tagSets {
		var matched []description.Server
		for _, c := range candidates {
			if c.MatchesTags(tagSet) {
				matched = append(matched, c)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return nil
}

// filterByMaxStaleness drops secondaries whose estimated staleness (based
// on its lag behind the primary's last write, or behind the freshest
// secondary if there is no primary) exceeds maxStaleness. Zero disables
// the filter.
func filterByMaxStaleness(candidates []description.Server, topo description.Topology, maxStaleness time.Duration) []description.Server {
	if maxStaleness == 0 {
		return candidates
	}

	primary, hasPrimary := topo.HasPrimary()

	var out []description.Server
	for _, c := range candidates {
		if c.Kind != description.RSSecondary {
			out = append(out, c)
			continue
		}
		var staleness time.Duration
		if hasPrimary {
			staleness = c.LastWriteTime.Sub(primary.LastWriteTime) + c.AverageRTT - primary.AverageRTT
			if staleness < 0 {
				staleness = primary.LastWriteTime.Sub(c.LastWriteTime)
			}
		} else {
			freshest := c.LastWriteTime
			for _, other := range topo.Servers {
				if other.Kind == description.RSSecondary && other.LastWriteTime.After(freshest) {
					freshest = other.LastWriteTime
				}
			}
			staleness = freshest.Sub(c.LastWriteTime)
		}
		if staleness <= maxStaleness {
			out = append(out, c)
		}
	}
	return out
}

// latencyWindow narrows candidates to those within 15ms of the lowest
// average RTT among them, the standard "localThreshold" window.
func latencyWindow(candidates []description.Server) []description.Server {
	const window = 15 * time.Millisecond
	if len(candidates) == 0 {
		return candidates
	}
	min := candidates[0].AverageRTT
	for _, c := range candidates[1:] {
		if c.AverageRTT < min {
			min = c.AverageRTT
		}
	}
	var out []description.Server
	for _, c := range candidates {
		if c.AverageRTT-min <= window {
			out = append(out, c)
		}
	}
	return out
}
