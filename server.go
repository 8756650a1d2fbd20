package ufs

import (
	"io"
	"net"
	"time"

	"aqwari.net/retry"
)

// Serve accepts connections on l, serving one 9P session per
// connection, until Accept fails with a permanent error. Temporary
// Accept errors are retried with exponential backoff.
func (srv *Server) Serve(l net.Listener) error {
	fs, err := srv.handler()
	if err != nil {
		return err
	}
	type tempErr interface {
		Temporary() bool
	}
	backoff := retry.Exponential(time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if err, ok := err.(tempErr); ok && err.Temporary() {
				try++
				srv.logf("9p: accept error: %v; retrying in %v", err, backoff(try))
				time.Sleep(backoff(try))
				continue
			}
			return err
		}
		try = 0
		c := newConn(srv, fs, rwc)
		go c.serve()
	}
}

// ListenAndServe announces on the given TCP address and serves 9P
// sessions on it.
func (srv *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(l)
}

// ServeConn serves a single 9P session on an established
// bidirectional byte stream, such as a pipe, a character device, or
// an accepted network connection. It returns when the stream is
// closed or the session suffers a fatal protocol error; rwc is
// closed before returning.
func (srv *Server) ServeConn(rwc io.ReadWriteCloser) error {
	fs, err := srv.handler()
	if err != nil {
		rwc.Close()
		return err
	}
	c := newConn(srv, fs, rwc)
	c.serve()
	return c.Decoder.Err()
}
