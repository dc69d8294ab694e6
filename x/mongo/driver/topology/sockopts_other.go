//go:build !linux

package topology

import "syscall"

// tuneKeepAlive is a no-op outside Linux: TCP_KEEPIDLE/TCP_KEEPINTVL are not
// portable socket options.
func tuneKeepAlive(rawConn syscall.RawConn) error {
	return nil
}
