// Package sys translates between 9P and host filesystem
// representations of file metadata, and owns the syscall-level stat
// boundary.
package sys

import (
	"os"

	"aqwari.net/net/ufs/proto"
)

// OpenFlags translates a 9P open mode into host open flags. OEXEC is
// served as a read; ORCLOSE has no host flag and is handled by the
// caller; OCEXEC has no host flag and is ignored.
func OpenFlags(mode uint8) int {
	var flags int
	switch mode & 3 {
	case proto.OREAD, proto.OEXEC:
		flags = os.O_RDONLY
	case proto.OWRITE:
		flags = os.O_WRONLY
	case proto.ORDWR:
		flags = os.O_RDWR
	}
	if mode&proto.OTRUNC != 0 {
		flags |= os.O_TRUNC
	}
	if mode&proto.OAPPEND != 0 {
		flags |= os.O_APPEND
	}
	return flags
}

// ModeOS converts a 9P permission mask to an os.FileMode.
func ModeOS(perm uint32) os.FileMode {
	var mode os.FileMode
	if perm&proto.DMDIR != 0 {
		mode = os.ModeDir
	}
	if perm&proto.DMSYMLINK != 0 {
		mode |= os.ModeSymlink
	}
	if perm&proto.DMAPPEND != 0 {
		mode |= os.ModeAppend
	}
	if perm&proto.DMEXCL != 0 {
		mode |= os.ModeExclusive
	}
	if perm&proto.DMTMP != 0 {
		mode |= os.ModeTemporary
	}
	return mode | os.FileMode(perm)&os.ModePerm
}

// Mode9P converts an os.FileMode to a 9P permission mask.
func Mode9P(mode os.FileMode) uint32 {
	var perm uint32
	if mode&os.ModeDir != 0 {
		perm |= proto.DMDIR
	}
	if mode&os.ModeSymlink != 0 {
		perm |= proto.DMSYMLINK
	}
	if mode&os.ModeAppend != 0 {
		perm |= proto.DMAPPEND
	}
	if mode&os.ModeExclusive != 0 {
		perm |= proto.DMEXCL
	}
	if mode&os.ModeTemporary != 0 {
		perm |= proto.DMTMP
	}
	return perm | uint32(mode&os.ModePerm)
}

// QidType selects the top byte of a 9P mode mask, suitable for a
// qid's type field.
func QidType(perm uint32) proto.QidType {
	return proto.QidType(perm >> 24)
}
