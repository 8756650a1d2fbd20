package ufs

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/net/context"

	"aqwari.net/net/ufs/proto"
)

// A handler implements the semantics of the 9P transaction set over
// some namespace. The connection owns the fid table and enforces the
// per-fid state machine; a handler resolves names, moves bytes, and
// updates the open state of the fid entries handed to it. The
// production handler is hostfs, serving the exported directory.
type handler interface {
	Attach(ctx context.Context, uname, aname string) (proto.Qid, error)

	// Walk navigates names one element at a time from f, without
	// modifying f, and reports the qids walked. On failure the
	// qids gathered before the failing element are returned
	// along with the error; walkPath is valid only when every
	// element succeeded.
	Walk(ctx context.Context, f *fid, names []string) (qids []proto.Qid, walkPath string, err error)

	Open(ctx context.Context, f *fid, mode uint8) (proto.Qid, error)
	Create(ctx context.Context, f *fid, name string, perm uint32, mode uint8, ext string) (proto.Qid, error)
	Read(ctx context.Context, f *fid, offset uint64, count uint32) ([]byte, error)
	Write(ctx context.Context, f *fid, offset uint64, data []byte) (uint32, error)
	Remove(ctx context.Context, f *fid) error
	Stat(ctx context.Context, f *fid) (proto.Stat, error)
	Wstat(ctx context.Context, f *fid, s proto.Stat) error
	Clunk(ctx context.Context, f *fid) error
}

type connState int

const (
	stateNew    connState = iota // no version negotiated yet
	stateActive                  // version negotiated, serving requests
)

// A conn is the server side of one 9P connection. Requests are
// handled one at a time, in order; 9P permits out-of-order replies,
// but a sequential session needs no locking around the fid table and
// makes Tflush trivially correct, since the flushed request has
// always been answered by the time the flush is read.
type conn struct {
	*proto.Decoder
	*proto.Encoder
	srv   *Server
	fs    handler
	rwc   io.ReadWriteCloser
	state connState
	msize uint32
	fids  map[uint32]*fid

	ctx    context.Context
	cancel context.CancelFunc

	// pending tracks the cancel function of the request being
	// handled, by tag, so that a Tflush read concurrently with a
	// long request could abort it.
	pending map[uint16]context.CancelFunc
}

func newConn(srv *Server, fs handler, rwc io.ReadWriteCloser) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		Decoder: proto.NewDecoder(rwc),
		Encoder: proto.NewEncoder(rwc),
		srv:     srv,
		fs:      fs,
		rwc:     rwc,
		fids:    make(map[uint32]*fid),
		pending: make(map[uint16]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// close tears down the session: every live fid is clunked, so cached
// descriptors are released and ORCLOSE files removed, then the
// transport is closed.
func (c *conn) close() error {
	c.cancel()
	for n, f := range c.fids {
		c.fs.Clunk(context.Background(), f)
		f.close()
		delete(c.fids, n)
	}
	return c.rwc.Close()
}

func (c *conn) serve() {
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			c.srv.logf("9p: panic serving connection: %v\n%s", err, buf)
		}
		c.close()
	}()

	for c.Next() {
		c.handleMessage(c.Msg())
		if err := c.Encoder.Flush(); err != nil {
			c.srv.logf("9p: error flushing message buffer: %v", err)
			return
		}
	}
	if err := c.Decoder.Err(); err != nil {
		c.srv.logf("9p: error parsing messages: %v", err)
	}
}

// rerror sends an Rerror reply carrying err's message.
func (c *conn) rerror(tag uint16, err error) {
	c.srv.tracef("9p: <- Rerror tag=%d ename=%q", tag, ename(err))
	c.Rerror(tag, "%s", ename(err))
}

func (c *conn) handleMessage(m proto.Msg) {
	if s, ok := m.(fmt.Stringer); ok {
		c.srv.tracef("9p: -> %s", s)
	}

	if m, ok := m.(proto.Tversion); ok {
		c.handleTversion(m)
		return
	}
	if c.state == stateNew {
		c.rerror(m.Tag(), fmt.Errorf("protocol version not negotiated"))
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.pending[m.Tag()] = cancel
	defer func() {
		cancel()
		delete(c.pending, m.Tag())
	}()

	switch m := m.(type) {
	case proto.Tauth:
		c.rerror(m.Tag(), errNoAuth)
	case proto.Tattach:
		c.handleTattach(ctx, m)
	case proto.Tflush:
		// Requests are handled in order, so the old request has
		// been answered by the time its flush is decoded; cancel
		// is a no-op kept for a concurrent dispatch model.
		if cancel, ok := c.pending[m.Oldtag()]; ok {
			cancel()
		}
		c.Rflush(m.Tag())
	case proto.Twalk:
		c.handleTwalk(ctx, m)
	case proto.Topen:
		c.handleTopen(ctx, m)
	case proto.Tcreate:
		c.handleTcreate(ctx, m)
	case proto.Tread:
		c.handleTread(ctx, m)
	case proto.Twrite:
		c.handleTwrite(ctx, m)
	case proto.Tclunk:
		if f, ok := c.fid(m.Fid()); !ok {
			c.rerror(m.Tag(), errBadFid)
		} else {
			c.fs.Clunk(ctx, f)
			c.delFid(m.Fid())
			c.Rclunk(m.Tag())
		}
	case proto.Tremove:
		if f, ok := c.fid(m.Fid()); !ok {
			c.rerror(m.Tag(), errBadFid)
		} else {
			// The fid is clunked whether or not removal worked.
			err := c.fs.Remove(ctx, f)
			c.delFid(m.Fid())
			if err != nil {
				c.rerror(m.Tag(), err)
			} else {
				c.Rremove(m.Tag())
			}
		}
	case proto.Tstat:
		if f, ok := c.fid(m.Fid()); !ok {
			c.rerror(m.Tag(), errBadFid)
		} else if stat, err := c.fs.Stat(ctx, f); err != nil {
			c.rerror(m.Tag(), err)
		} else {
			c.Rstat(m.Tag(), stat)
		}
	case proto.Twstat:
		if f, ok := c.fid(m.Fid()); !ok {
			c.rerror(m.Tag(), errBadFid)
		} else if err := c.fs.Wstat(ctx, f, m.Stat()); err != nil {
			c.rerror(m.Tag(), err)
		} else {
			c.Rwstat(m.Tag())
		}
	default:
		name := fmt.Sprintf("%T", m)
		name = name[strings.IndexByte(name, '.')+1:]
		c.rerror(m.Tag(), fmt.Errorf("unexpected %s message", name))
	}
}

func (c *conn) handleTversion(m proto.Tversion) {
	if c.state != stateNew {
		c.rerror(m.Tag(), fmt.Errorf("late Tversion message"))
		return
	}
	msize := m.Msize()
	if max := c.srv.msize(); msize > max {
		msize = max
	}
	if msize < proto.MinMsize {
		c.rerror(m.Tag(), fmt.Errorf("msize %d too small", m.Msize()))
		return
	}
	if !bytes.HasPrefix(m.Version(), []byte("9P2000")) {
		// An unknown version leaves the connection unusable;
		// anything but another Tversion is refused.
		c.Rversion(msize, "unknown")
		return
	}
	c.msize = msize
	c.Decoder.MaxSize = msize
	c.state = stateActive
	c.Rversion(msize, "9P2000")
}

func (c *conn) handleTattach(ctx context.Context, m proto.Tattach) {
	if m.Afid() != proto.NoFid {
		c.rerror(m.Tag(), errNoAuth)
		return
	}
	if _, ok := c.fid(m.Fid()); ok {
		c.rerror(m.Tag(), errFidInUse)
		return
	}
	qid, err := c.fs.Attach(ctx, string(m.Uname()), string(m.Aname()))
	if err != nil {
		c.rerror(m.Tag(), err)
		return
	}
	if _, err := c.newFid(m.Fid(), "/"); err != nil {
		c.rerror(m.Tag(), err)
		return
	}
	c.Rattach(m.Tag(), qid)
}

func (c *conn) handleTwalk(ctx context.Context, m proto.Twalk) {
	f, ok := c.fid(m.Fid())
	if !ok {
		c.rerror(m.Tag(), errBadFid)
		return
	}
	clone := m.Newfid() != m.Fid()
	if clone {
		if m.Newfid() == proto.NoFid {
			c.rerror(m.Tag(), errBadFid)
			return
		}
		if _, ok := c.fid(m.Newfid()); ok {
			c.rerror(m.Tag(), errFidInUse)
			return
		}
	} else if f.opened {
		c.rerror(m.Tag(), errWalkOpenFid)
		return
	}

	names := make([]string, m.Nwname())
	for i := range names {
		names[i] = string(m.Wname(i))
	}

	qids, walkPath, err := c.fs.Walk(ctx, f, names)
	switch {
	case err != nil && len(qids) == 0:
		// Failure on the first element is an error; newfid is
		// not consumed.
		c.rerror(m.Tag(), err)
		return
	case err != nil:
		// Partial success past the first element: report the
		// qids walked so far and leave newfid untouched.
		c.Rwalk(m.Tag(), qids...)
		return
	}
	if clone {
		if _, err := c.newFid(m.Newfid(), walkPath); err != nil {
			c.rerror(m.Tag(), err)
			return
		}
	} else {
		f.path = walkPath
	}
	c.Rwalk(m.Tag(), qids...)
}

func (c *conn) handleTopen(ctx context.Context, m proto.Topen) {
	f, ok := c.fid(m.Fid())
	if !ok {
		c.rerror(m.Tag(), errBadFid)
		return
	}
	if f.opened {
		c.rerror(m.Tag(), errAlreadyOpen)
		return
	}
	qid, err := c.fs.Open(ctx, f, m.Mode())
	if err != nil {
		c.rerror(m.Tag(), err)
		return
	}
	c.Ropen(m.Tag(), qid, 0)
}

func (c *conn) handleTcreate(ctx context.Context, m proto.Tcreate) {
	f, ok := c.fid(m.Fid())
	if !ok {
		c.rerror(m.Tag(), errBadFid)
		return
	}
	if f.opened {
		c.rerror(m.Tag(), errAlreadyOpen)
		return
	}
	qid, err := c.fs.Create(ctx, f, string(m.Name()), m.Perm(), m.Mode(), string(m.Extension()))
	if err != nil {
		c.rerror(m.Tag(), err)
		return
	}
	c.Rcreate(m.Tag(), qid, 0)
}

// Rread framing overhead: size[4] type[1] tag[2] count[4].
const rreadOverhead = 11

func (c *conn) handleTread(ctx context.Context, m proto.Tread) {
	f, ok := c.fid(m.Fid())
	if !ok {
		c.rerror(m.Tag(), errBadFid)
		return
	}
	if !f.opened {
		c.rerror(m.Tag(), errNotOpen)
		return
	}
	count := m.Count()
	if max := c.msize - rreadOverhead; count > max {
		count = max
	}
	data, err := c.fs.Read(ctx, f, m.Offset(), count)
	if err != nil {
		c.rerror(m.Tag(), err)
		return
	}
	c.Rread(m.Tag(), data)
}

func (c *conn) handleTwrite(ctx context.Context, m proto.Twrite) {
	f, ok := c.fid(m.Fid())
	if !ok {
		c.rerror(m.Tag(), errBadFid)
		return
	}
	if !f.opened {
		c.rerror(m.Tag(), errNotOpen)
		return
	}
	switch f.mode & 3 {
	case proto.OWRITE, proto.ORDWR:
	default:
		c.rerror(m.Tag(), errNotWritable)
		return
	}
	n, err := c.fs.Write(ctx, f, m.Offset(), m.Data())
	if err != nil {
		c.rerror(m.Tag(), err)
		return
	}
	c.Rwrite(m.Tag(), n)
}
