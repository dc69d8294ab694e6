package options

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConnString is the parsed form of a mongodb:// or mongodb+srv:// connection
// string. No pack library parses this wire-specific URI dialect (host lists,
// mongodb+srv SRV expansion, driver-specific query parameters), so this
// walks net/url plus manual splitting the way the teacher's own connstring
// package does it.
type ConnString struct {
	Hosts   []string
	AppName string

	RetryWrites    bool
	RetryWritesSet bool

	RetryReads    bool
	RetryReadsSet bool

	ConnectTimeout    time.Duration
	ConnectTimeoutSet bool

	MaxPoolSize    uint64
	MaxPoolSizeSet bool

	Compressors []string
}

// ParseConnString parses uri into a ConnString.
func ParseConnString(uri string) (ConnString, error) {
	var srv bool
	switch {
	case strings.HasPrefix(uri, "mongodb://"):
		uri = strings.TrimPrefix(uri, "mongodb://")
	case strings.HasPrefix(uri, "mongodb+srv://"):
		uri = strings.TrimPrefix(uri, "mongodb+srv://")
		srv = true
	default:
		return ConnString{}, fmt.Errorf("options: uri must begin with mongodb:// or mongodb+srv://")
	}

	// Strip a leading userinfo component; credentials are handled by the
	// auth package via explicit Credential options, not parsed here.
	if idx := strings.LastIndex(uri, "@"); idx != -1 {
		uri = uri[idx+1:]
	}

	hostsAndPath := uri
	var rawQuery string
	if idx := strings.IndexAny(uri, "/?"); idx != -1 {
		hostsAndPath = uri[:idx]
		if rest := uri[idx:]; strings.HasPrefix(rest, "/") {
			if qIdx := strings.Index(rest, "?"); qIdx != -1 {
				rawQuery = rest[qIdx+1:]
			}
		} else {
			rawQuery = strings.TrimPrefix(rest, "?")
		}
	}

	cs := ConnString{}
	for _, h := range strings.Split(hostsAndPath, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if srv && !strings.Contains(h, ":") {
			// SRV record resolution is a DNS-dependent step the driver
			// performs at dial time, not at parse time; the bare hostname
			// is kept as the single seed until then.
		}
		cs.Hosts = append(cs.Hosts, h)
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ConnString{}, fmt.Errorf("options: invalid query: %w", err)
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		val := vals[0]
		switch strings.ToLower(key) {
		case "appname":
			cs.AppName = val
		case "retrywrites":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return ConnString{}, fmt.Errorf("options: invalid retryWrites: %w", err)
			}
			cs.RetryWrites, cs.RetryWritesSet = b, true
		case "retryreads":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return ConnString{}, fmt.Errorf("options: invalid retryReads: %w", err)
			}
			cs.RetryReads, cs.RetryReadsSet = b, true
		case "connecttimeoutms":
			ms, err := strconv.Atoi(val)
			if err != nil {
				return ConnString{}, fmt.Errorf("options: invalid connectTimeoutMS: %w", err)
			}
			cs.ConnectTimeout, cs.ConnectTimeoutSet = time.Duration(ms)*time.Millisecond, true
		case "maxpoolsize":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return ConnString{}, fmt.Errorf("options: invalid maxPoolSize: %w", err)
			}
			cs.MaxPoolSize, cs.MaxPoolSizeSet = n, true
		case "compressors":
			cs.Compressors = strings.Split(val, ",")
		}
	}

	return cs, nil
}
