//go:build linux || darwin

package sys

import (
	"os"

	"golang.org/x/sys/unix"

	"aqwari.net/net/ufs/proto"
)

// An Info holds the host metadata for one file, as returned by
// Lstat. Symbolic links are never followed; a link is described, not
// its target.
type Info struct {
	st unix.Stat_t
}

// Lstat stats the file named by path without following a final
// symbolic link.
func Lstat(path string) (*Info, error) {
	var info Info
	if err := unix.Lstat(path, &info.st); err != nil {
		return nil, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	return &info, nil
}

func (i *Info) mode() uint32 { return uint32(i.st.Mode) }

func (i *Info) IsDir() bool     { return i.mode()&unix.S_IFMT == unix.S_IFDIR }
func (i *Info) IsSymlink() bool { return i.mode()&unix.S_IFMT == unix.S_IFLNK }
func (i *Info) IsRegular() bool { return i.mode()&unix.S_IFMT == unix.S_IFREG }

// Ino is the file's inode number, used as the stable path field of
// its qid.
func (i *Info) Ino() uint64 { return uint64(i.st.Ino) }

// Size is the file's length in bytes; for a symbolic link, the
// length of the target path.
func (i *Info) Size() int64 { return i.st.Size }

// Perm returns the low nine permission bits.
func (i *Info) Perm() uint32 { return i.mode() & 0777 }

// Mode9P builds the 9P mode word: permission bits combined with the
// directory or symlink flag.
func (i *Info) Mode9P() uint32 {
	perm := i.Perm()
	switch {
	case i.IsDir():
		perm |= proto.DMDIR
	case i.IsSymlink():
		perm |= proto.DMSYMLINK
	}
	return perm
}

// QidType derives the qid type field from the file type.
func (i *Info) QidType() proto.QidType {
	switch {
	case i.IsDir():
		return proto.QTDIR
	case i.IsSymlink():
		return proto.QTSYMLINK
	}
	return proto.QTFILE
}

// Qid packs the file's identity: type from the file type, version
// from the modification time, path from the inode.
func (i *Info) Qid() proto.Qid {
	qid, _, err := proto.NewQid(make([]byte, proto.QidLen), i.QidType(), uint32(i.Mtime()), i.Ino())
	if err != nil {
		panic(err)
	}
	return qid
}
