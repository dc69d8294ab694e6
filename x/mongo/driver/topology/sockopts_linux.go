//go:build linux

package topology

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneKeepAlive shortens the TCP keepalive idle and interval below the OS
// default so a half-open connection to a crashed mongod is detected well
// before the driver's own socket timeout fires.
func tuneKeepAlive(rawConn syscall.RawConn) error {
	var sockErr error
	err := rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 30)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
	})
	if err != nil {
		return err
	}
	return sockErr
}
