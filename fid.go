package ufs

import (
	"os"

	"aqwari.net/net/ufs/proto"
)

// A fid is one client handle into the exported tree. The entry is
// owned by the connection's fid table; handlers fill in the open
// state and the connection frees the entry on clunk, remove, or
// session teardown.
type fid struct {
	// path is the file's name below the exported root, cleaned
	// and always rooted. It is set at attach, walk and create,
	// and changes only on a successful rename through wstat.
	path string

	// opened is set once the fid has been through a successful
	// open or create; a fid may be opened at most once.
	opened bool

	mode  uint8 // the 9P open mode, zero until opened
	flags int   // the host open flags translated from mode

	// rclose marks a fid whose file is removed when it is
	// clunked (ORCLOSE).
	rclose bool

	// file is the host descriptor cached at open or create time
	// for regular files. Directories and symlinks carry none.
	file *os.File
}

// close releases the cached host descriptor, if any.
func (f *fid) close() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
}

func (c *conn) fid(n uint32) (*fid, bool) {
	f, ok := c.fids[n]
	return f, ok
}

// newFid allocates a fid table entry. The fid number is chosen by
// the client and must not be in use.
func (c *conn) newFid(n uint32, path string) (*fid, error) {
	if n == proto.NoFid {
		return nil, errBadFid
	}
	if _, ok := c.fids[n]; ok {
		return nil, errFidInUse
	}
	f := &fid{path: path}
	c.fids[n] = f
	return f, nil
}

func (c *conn) delFid(n uint32) {
	if f, ok := c.fids[n]; ok {
		f.close()
		delete(c.fids, n)
	}
}
