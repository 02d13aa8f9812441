package listen

import (
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Handler owns one accepted connection for its entire lifetime. It is invoked
// on a fresh goroutine and must close the connection before returning.
type Handler func(conn net.Conn)

// Serve runs the accept loop. Each accepted connection is handed to handle on
// its own goroutine; the acceptor keeps no per-connection state. The loop
// returns nil when the listener is closed (the only supported shutdown
// mechanism) and an error only on a fatal accept failure. In-flight
// connections are never forcibly terminated.
func Serve(ln net.Listener, handle Handler, log logrus.FieldLogger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if closedListener(err) {
				log.WithField("addr", ln.Addr().String()).Info("listener closed, accept loop exiting")
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.WithError(err).Warn("transient accept failure")
				continue
			}
			return errors.Wrap(err, "accept")
		}
		go handle(conn)
	}
}

func closedListener(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
