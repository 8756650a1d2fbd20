// Package ufs serves a subtree of the local filesystem to 9P2000
// clients.
//
// A Server exports the directory named by its Root field. Each
// connection is a single 9P session: the client attaches to the
// exported root, walks to files by name, and reads, writes, creates
// and removes them through fids. File identity (qids) comes from
// host inode numbers, so two names for the same file carry the same
// qid. Symbolic links are served as objects: reading one returns its
// target, and stat reports its mode with the symlink bit set.
//
// The server holds no state of its own beyond per-session fid
// tables; everything else lives in the host filesystem.
package ufs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"aqwari.net/net/ufs/proto"
)

// DefaultMsize is the maximum message size offered during version
// negotiation when Server.Msize is zero.
const DefaultMsize = 8192

// Types implementing the Logger interface can receive diagnostic
// information during a Server's operation. The Logger interface is
// implemented by *log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// A Server is a 9P file server for a directory tree on the local
// filesystem. The zero value is not usable; Root must be set.
type Server struct {
	// Root is the host directory to export. It must name an
	// existing directory. It is canonicalized to an absolute
	// path when the first connection is served.
	Root string

	// User is the name reported in the uid, gid and muid fields
	// of stat records. If empty, the USER environment variable
	// is used, falling back to "none".
	User string

	// Msize is the cap on the negotiated maximum message size.
	// If zero, DefaultMsize is used.
	Msize uint32

	// ErrorLog receives abnormal events: protocol violations,
	// transport failures, panics in the serve loop. If nil, such
	// events are dropped.
	ErrorLog Logger

	// TraceLog, if non-nil, receives a line for every request
	// received and every error replied. It is meant for
	// debugging.
	TraceLog Logger

	once    sync.Once
	fs      handler
	initErr error
}

func (srv *Server) logf(format string, v ...interface{}) {
	if srv.ErrorLog != nil {
		srv.ErrorLog.Printf(format, v...)
	}
}

func (srv *Server) tracef(format string, v ...interface{}) {
	if srv.TraceLog != nil {
		srv.TraceLog.Printf(format, v...)
	}
}

func (srv *Server) msize() uint32 {
	msize := srv.Msize
	if msize == 0 {
		msize = DefaultMsize
	}
	if msize < proto.MinMsize {
		msize = proto.MinMsize
	}
	return msize
}

// handler validates the configuration and builds the host filesystem
// handler. The result is computed once and shared by all
// connections.
func (srv *Server) handler() (handler, error) {
	srv.once.Do(func() {
		if srv.Root == "" {
			srv.initErr = errors.New("no root directory configured")
			return
		}
		root, err := filepath.Abs(srv.Root)
		if err != nil {
			srv.initErr = err
			return
		}
		info, err := os.Stat(root)
		if err != nil {
			srv.initErr = err
			return
		}
		if !info.IsDir() {
			srv.initErr = errors.New(root + " is not a directory")
			return
		}
		user := srv.User
		if user == "" {
			if user = os.Getenv("USER"); user == "" {
				user = "none"
			}
		}
		srv.fs = &hostfs{root: strings.TrimSuffix(root, "/"), user: user}
	})
	return srv.fs, srv.initErr
}

// Session errors, rendered into Rerror replies. Host filesystem
// errors are passed through as-is.
var (
	errAlreadyOpen  = errors.New("fid already open")
	errBadFid       = errors.New("unknown fid")
	errBadName      = errors.New("bad file name")
	errFidInUse     = errors.New("fid already in use")
	errIsDir        = errors.New("is a directory")
	errNoAuth       = errors.New("authentication not required")
	errNotDir       = errors.New("not a directory")
	errNotOpen      = errors.New("fid not open")
	errNotWritable  = errors.New("fid not open for writing")
	errNoWrite      = errors.New("write not supported on this file")
	errPathTooLong  = errors.New("path too long")
	errSymlinkExt   = errors.New("symlink target required")
	errTooBigFile   = errors.New("file too big")
	errTraversal    = errors.New("invalid path: directory traversal attempt")
	errWalkOpenFid  = errors.New("cannot walk from an open fid")
)

// ename renders an error for the wire. Host errors are reduced to
// the bare operating system message, the way strerror reads, rather
// than Go's op/path-prefixed form.
func ename(err error) string {
	var perr *os.PathError
	if errors.As(err, &perr) {
		return perr.Err.Error()
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return lerr.Err.Error()
	}
	var serr *os.SyscallError
	if errors.As(err, &serr) {
		return serr.Err.Error()
	}
	return err.Error()
}
