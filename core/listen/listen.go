// Package listen binds listening sockets and runs the accept loop shared by
// both protocol backends.
package listen

import (
	"net"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/net/netutil"
	"golang.org/x/sys/unix"
)

// Listen binds a listening socket. network is "tcp" or "unix"; for "unix" the
// address is a filesystem path: a stale socket left by a previous run is
// removed before binding, and the new socket is created world-accessible so
// any local front-end can connect. When maxConns > 0 the listener is capped to
// that many simultaneous connections.
func Listen(network, addr string, maxConns int) (net.Listener, error) {
	var (
		ln  net.Listener
		err error
	)

	switch network {
	case "unix":
		if err := removeStaleSocket(addr); err != nil {
			return nil, err
		}
		old := unix.Umask(0)
		ln, err = net.Listen("unix", addr)
		unix.Umask(old)
	default:
		ln, err = net.Listen(network, addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "bind %s %s", network, addr)
	}

	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

// removeStaleSocket unlinks a leftover socket file. Anything else at the path
// is left alone and reported, so a misconfigured path never deletes data.
func removeStaleSocket(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return errors.Errorf("refusing to remove %s: not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "remove stale socket %s", path)
	}
	return nil
}
