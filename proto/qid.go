package proto

import (
	"fmt"
	"io"
)

// QidLen is the size of a packed Qid in bytes.
const QidLen = 13

// A Qid is the server's unique identification for the file being
// accessed: two files on the same server hierarchy are the same if
// and only if their qids are the same.
type Qid []byte

// NewQid packs a Qid into the front of buf, returning the Qid and
// the remainder of buf.
func NewQid(buf []byte, qtype QidType, version uint32, path uint64) (Qid, []byte, error) {
	if len(buf) < QidLen {
		return nil, buf, io.ErrShortBuffer
	}
	buf[0] = uint8(qtype)
	buint32(buf[1:5], version)
	buint64(buf[5:13], path)
	return Qid(buf[:QidLen]), buf[QidLen:], nil
}

// Type returns the type of the file (directory, symlink, etc).
func (q Qid) Type() QidType { return QidType(q[0]) }

// Version is a version number for a file; it changes every time the
// file is modified.
func (q Qid) Version() uint32 { return guint32(q[1:5]) }

// Path is an integer unique among all files in the hierarchy. If a
// file is deleted and recreated with the same name in the same
// directory, the old and new path fields of the qids should differ.
func (q Qid) Path() uint64 { return guint64(q[5:13]) }

func (q Qid) String() string {
	return fmt.Sprintf("type=%#x ver=%d path=%#x", uint8(q.Type()), q.Version(), q.Path())
}

// A QidType describes the type of a file (directory, etc.). It
// corresponds to the high 8 bits of the file's mode word.
type QidType uint8

const (
	QTDIR     QidType = 0x80 // directories
	QTAPPEND  QidType = 0x40 // append only files
	QTEXCL    QidType = 0x20 // exclusive use files
	QTMOUNT   QidType = 0x10 // mounted channel
	QTAUTH    QidType = 0x08 // authentication file (afid)
	QTTMP     QidType = 0x04 // non-backed-up file
	QTSYMLINK QidType = 0x02 // symbolic link
	QTFILE    QidType = 0x00
)
