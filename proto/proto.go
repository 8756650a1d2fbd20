// Package proto implements the 9P2000 message format.
//
// Messages are not unmarshalled into structures. Instead, they are
// kept as validated byte slices, and fields are parsed on demand via
// methods. A message is laid out as
//
//	size[4] type[1] tag[2] body
//
// where size counts every byte in the message, including the four
// bytes of size itself. Integers are little-endian and unsigned.
// Strings are a two-byte length followed by that many bytes of UTF-8,
// with no terminator.
package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The msg helper type is used to access the fields common to all
// 9P messages. Calling field accessors on a message that has not
// been through the Decoder can result in a run-time panic if the
// size headers are incorrect.
type msg []byte

func (m msg) Type() uint8  { return m[4] }
func (m msg) Tag() uint16  { return guint16(m[5:7]) }
func (m msg) Len() int64   { return int64(guint32(m[:4])) }

// nthField walks n variable-length fields starting at offset and
// returns the n'th (0-indexed), without its length prefix.
func (m msg) nthField(offset, n int) []byte {
	size := int(guint16(m[offset : offset+2]))
	for i := 0; i < n; i++ {
		offset += size + 2
		size = int(guint16(m[offset : offset+2]))
	}
	return m[offset+2 : offset+2+size]
}

// A Msg is a 9P message. 9P messages are sent by clients (T-messages)
// and servers (R-messages).
type Msg interface {
	// Tag is a transaction identifier. No two pending T-messages may
	// use the same tag. All R-messages must reference the T-message
	// being answered by using the same tag.
	Tag() uint16

	// Len returns the total length of the message in bytes,
	// including the four-byte size field.
	Len() int64
}

// Message type identifiers. Terror (106) does not exist; a server
// is never sent an error.
const (
	msgTversion uint8 = 100 + iota
	msgRversion
	msgTauth
	msgRauth
	msgTattach
	msgRattach
	_ // Terror, illegal
	msgRerror
	msgTflush
	msgRflush
	msgTwalk
	msgRwalk
	msgTopen
	msgRopen
	msgTcreate
	msgRcreate
	msgTread
	msgRread
	msgTwrite
	msgRwrite
	msgTclunk
	msgRclunk
	msgTremove
	msgRremove
	msgTstat
	msgRstat
	msgTwstat
	msgRwstat
)

// NoTag is the tag used for Tversion and Rversion messages, which
// precede tag allocation.
const NoTag uint16 = 0xFFFF

// NoFid is a reserved fid number, used in the afid field of a Tattach
// message by clients that do not wish to authenticate.
const NoFid uint32 = 0xFFFFFFFF

// File open modes for Topen and Tcreate. The low two bits select
// read, write, read/write, or execute access; the remaining bits
// are modifiers.
const (
	OREAD  uint8 = 0  // read access
	OWRITE uint8 = 1  // write access
	ORDWR  uint8 = 2  // read and write access
	OEXEC  uint8 = 3  // execute access (implies read)

	OTRUNC  uint8 = 0x10 // truncate before use
	OCEXEC  uint8 = 0x20 // close on exec
	ORCLOSE uint8 = 0x40 // remove when the fid is clunked
	OAPPEND uint8 = 0x80 // writes go to end of file
)

// Permission bits for the mode field of a Stat and the perm field
// of a Tcreate message. The low nine bits are Unix-style rwx
// permissions for owner, group, and other.
const (
	DMDIR     uint32 = 0x80000000 // directory
	DMAPPEND  uint32 = 0x40000000 // append-only
	DMEXCL    uint32 = 0x20000000 // exclusive use
	DMMOUNT   uint32 = 0x10000000 // mounted channel
	DMAUTH    uint32 = 0x08000000 // authentication file
	DMTMP     uint32 = 0x04000000 // not backed up
	DMSYMLINK uint32 = 0x02000000 // symbolic link
)

// The Tversion request negotiates the protocol version and maximum
// message size to be used on the connection. It must be the first
// message sent on a 9P connection, with tag NoTag.
type Tversion []byte

func (m Tversion) Tag() uint16 { return msg(m).Tag() }
func (m Tversion) Len() int64  { return msg(m).Len() }

// Msize is the maximum length, in bytes, that the client will ever
// generate or expect to receive in a single 9P message.
func (m Tversion) Msize() uint32 { return guint32(m[7:11]) }

// Version identifies the level of the protocol that the client
// supports. The string always begins with the two characters "9P".
func (m Tversion) Version() []byte { return msg(m).nthField(11, 0) }

func (m Tversion) String() string {
	return fmt.Sprintf("Tversion msize=%d version=%q", m.Msize(), m.Version())
}

// An Rversion reply carries the protocol version and message size
// chosen by the server. The chosen msize must be less than or equal
// to the client's. A server that does not understand the requested
// version replies with the version string "unknown".
type Rversion []byte

func (m Rversion) Tag() uint16     { return msg(m).Tag() }
func (m Rversion) Len() int64      { return msg(m).Len() }
func (m Rversion) Msize() uint32   { return guint32(m[7:11]) }
func (m Rversion) Version() []byte { return msg(m).nthField(11, 0) }

func (m Rversion) String() string {
	return fmt.Sprintf("Rversion msize=%d version=%q", m.Msize(), m.Version())
}

// The Tauth message initiates an authentication handshake on afid.
// Authentication is outside the scope of the 9P protocol itself.
type Tauth []byte

func (m Tauth) Tag() uint16   { return msg(m).Tag() }
func (m Tauth) Len() int64    { return msg(m).Len() }
func (m Tauth) Afid() uint32  { return guint32(m[7:11]) }
func (m Tauth) Uname() []byte { return msg(m).nthField(11, 0) }
func (m Tauth) Aname() []byte { return msg(m).nthField(11, 1) }

func (m Tauth) String() string {
	return fmt.Sprintf("Tauth afid=%d uname=%q aname=%q", m.Afid(), m.Uname(), m.Aname())
}

// Rauth is sent by servers that require authentication. The aqid
// must be of type QTAUTH. Servers that do not require authentication
// reply to Tauth with Rerror instead.
type Rauth []byte

func (m Rauth) Tag() uint16 { return msg(m).Tag() }
func (m Rauth) Len() int64  { return msg(m).Len() }
func (m Rauth) Aqid() Qid   { return Qid(m[7:20]) }

func (m Rauth) String() string { return fmt.Sprintf("Rauth aqid=(%s)", m.Aqid()) }

// The Tattach message serves as a fresh introduction from a user on
// the client machine to the server, establishing fid as the root of
// the served file tree.
type Tattach []byte

func (m Tattach) Tag() uint16   { return msg(m).Tag() }
func (m Tattach) Len() int64    { return msg(m).Len() }
func (m Tattach) Fid() uint32   { return guint32(m[7:11]) }
func (m Tattach) Afid() uint32  { return guint32(m[11:15]) }
func (m Tattach) Uname() []byte { return msg(m).nthField(15, 0) }
func (m Tattach) Aname() []byte { return msg(m).nthField(15, 1) }

func (m Tattach) String() string {
	return fmt.Sprintf("Tattach fid=%d afid=%d uname=%q aname=%q",
		m.Fid(), m.Afid(), m.Uname(), m.Aname())
}

type Rattach []byte

func (m Rattach) Tag() uint16 { return msg(m).Tag() }
func (m Rattach) Len() int64  { return msg(m).Len() }

// Qid is the qid of the root of the file tree, associated with the
// fid of the corresponding Tattach request.
func (m Rattach) Qid() Qid { return Qid(m[7:20]) }

func (m Rattach) String() string { return fmt.Sprintf("Rattach qid=(%s)", m.Qid()) }

// An Rerror reply indicates that the request with the same tag
// failed, and describes why. There is no Terror message.
type Rerror []byte

func (m Rerror) Tag() uint16   { return msg(m).Tag() }
func (m Rerror) Len() int64    { return msg(m).Len() }
func (m Rerror) Ename() []byte { return msg(m).nthField(7, 0) }

// Error implements the error interface.
func (m Rerror) Error() string { return string(m.Ename()) }

func (m Rerror) String() string { return fmt.Sprintf("Rerror ename=%q", m.Ename()) }

// A Tflush request asks the server to abort the pending request with
// tag oldtag. The server replies to the flush only once the old
// request has been answered or abandoned.
type Tflush []byte

func (m Tflush) Tag() uint16    { return msg(m).Tag() }
func (m Tflush) Len() int64     { return msg(m).Len() }
func (m Tflush) Oldtag() uint16 { return guint16(m[7:9]) }

func (m Tflush) String() string { return fmt.Sprintf("Tflush oldtag=%d", m.Oldtag()) }

type Rflush []byte

func (m Rflush) Tag() uint16    { return msg(m).Tag() }
func (m Rflush) Len() int64     { return msg(m).Len() }
func (m Rflush) String() string { return "Rflush" }

// A Twalk request navigates zero or more path elements from the file
// identified by fid, associating the result with newfid. Walks past
// the first element are not atomic: the reply may carry fewer qids
// than names walked.
type Twalk []byte

func (m Twalk) Tag() uint16    { return msg(m).Tag() }
func (m Twalk) Len() int64     { return msg(m).Len() }
func (m Twalk) Fid() uint32    { return guint32(m[7:11]) }
func (m Twalk) Newfid() uint32 { return guint32(m[11:15]) }
func (m Twalk) Nwname() int    { return int(guint16(m[15:17])) }

// Wname returns the n'th path element of the walk.
func (m Twalk) Wname(n int) []byte { return msg(m).nthField(17, n) }

func (m Twalk) String() string {
	names := make([][]byte, m.Nwname())
	for i := range names {
		names[i] = m.Wname(i)
	}
	return fmt.Sprintf("Twalk fid=%d newfid=%d wname=%q",
		m.Fid(), m.Newfid(), bytes.Join(names, []byte("/")))
}

type Rwalk []byte

func (m Rwalk) Tag() uint16 { return msg(m).Tag() }
func (m Rwalk) Len() int64  { return msg(m).Len() }
func (m Rwalk) Nwqid() int  { return int(guint16(m[7:9])) }

// Wqid returns the qid of the n'th element walked.
func (m Rwalk) Wqid(n int) Qid { return Qid(m[9+n*QidLen : 9+(n+1)*QidLen]) }

func (m Rwalk) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Rwalk nwqid=%d", m.Nwqid())
	for i := 0; i < m.Nwqid(); i++ {
		fmt.Fprintf(&buf, " (%s)", m.Wqid(i))
	}
	return buf.String()
}

type Topen []byte

func (m Topen) Tag() uint16 { return msg(m).Tag() }
func (m Topen) Len() int64  { return msg(m).Len() }
func (m Topen) Fid() uint32 { return guint32(m[7:11]) }
func (m Topen) Mode() uint8 { return m[11] }

func (m Topen) String() string {
	return fmt.Sprintf("Topen fid=%d mode=%#x", m.Fid(), m.Mode())
}

type Ropen []byte

func (m Ropen) Tag() uint16    { return msg(m).Tag() }
func (m Ropen) Len() int64     { return msg(m).Len() }
func (m Ropen) Qid() Qid       { return Qid(m[7:20]) }
func (m Ropen) IOunit() uint32 { return guint32(m[20:24]) }

func (m Ropen) String() string {
	return fmt.Sprintf("Ropen qid=(%s) iounit=%d", m.Qid(), m.IOunit())
}

// A Tcreate request creates a file named name in the directory
// identified by fid, then opens it with mode, associating fid with
// the new file. An optional trailing extension string carries the
// target of a symbolic link when perm has the DMSYMLINK bit set.
type Tcreate []byte

func (m Tcreate) Tag() uint16  { return msg(m).Tag() }
func (m Tcreate) Len() int64   { return msg(m).Len() }
func (m Tcreate) Fid() uint32  { return guint32(m[7:11]) }
func (m Tcreate) Name() []byte { return msg(m).nthField(11, 0) }

func (m Tcreate) Perm() uint32 {
	offset := 11 + 2 + len(m.Name())
	return guint32(m[offset : offset+4])
}

func (m Tcreate) Mode() uint8 { return m[11+2+len(m.Name())+4] }

// Extension returns the extension field, or nil if the client did
// not send one.
func (m Tcreate) Extension() []byte {
	offset := 11 + 2 + len(m.Name()) + 4 + 1
	if offset >= len(m) {
		return nil
	}
	return msg(m).nthField(offset, 0)
}

func (m Tcreate) String() string {
	return fmt.Sprintf("Tcreate fid=%d name=%q perm=%#o mode=%#x",
		m.Fid(), m.Name(), m.Perm(), m.Mode())
}

type Rcreate []byte

func (m Rcreate) Tag() uint16    { return msg(m).Tag() }
func (m Rcreate) Len() int64     { return msg(m).Len() }
func (m Rcreate) Qid() Qid       { return Qid(m[7:20]) }
func (m Rcreate) IOunit() uint32 { return guint32(m[20:24]) }

func (m Rcreate) String() string {
	return fmt.Sprintf("Rcreate qid=(%s) iounit=%d", m.Qid(), m.IOunit())
}

type Tread []byte

func (m Tread) Tag() uint16    { return msg(m).Tag() }
func (m Tread) Len() int64     { return msg(m).Len() }
func (m Tread) Fid() uint32    { return guint32(m[7:11]) }
func (m Tread) Offset() uint64 { return guint64(m[11:19]) }
func (m Tread) Count() uint32  { return guint32(m[19:23]) }

func (m Tread) String() string {
	return fmt.Sprintf("Tread fid=%d offset=%d count=%d", m.Fid(), m.Offset(), m.Count())
}

type Rread []byte

func (m Rread) Tag() uint16   { return msg(m).Tag() }
func (m Rread) Len() int64    { return msg(m).Len() }
func (m Rread) Count() uint32 { return guint32(m[7:11]) }
func (m Rread) Data() []byte  { return m[11 : 11+m.Count()] }

func (m Rread) String() string { return fmt.Sprintf("Rread count=%d", m.Count()) }

type Twrite []byte

func (m Twrite) Tag() uint16    { return msg(m).Tag() }
func (m Twrite) Len() int64     { return msg(m).Len() }
func (m Twrite) Fid() uint32    { return guint32(m[7:11]) }
func (m Twrite) Offset() uint64 { return guint64(m[11:19]) }
func (m Twrite) Count() uint32  { return guint32(m[19:23]) }
func (m Twrite) Data() []byte   { return m[23 : 23+m.Count()] }

func (m Twrite) String() string {
	return fmt.Sprintf("Twrite fid=%d offset=%d count=%d", m.Fid(), m.Offset(), m.Count())
}

type Rwrite []byte

func (m Rwrite) Tag() uint16   { return msg(m).Tag() }
func (m Rwrite) Len() int64    { return msg(m).Len() }
func (m Rwrite) Count() uint32 { return guint32(m[7:11]) }

func (m Rwrite) String() string { return fmt.Sprintf("Rwrite count=%d", m.Count()) }

type Tclunk []byte

func (m Tclunk) Tag() uint16    { return msg(m).Tag() }
func (m Tclunk) Len() int64     { return msg(m).Len() }
func (m Tclunk) Fid() uint32    { return guint32(m[7:11]) }
func (m Tclunk) String() string { return fmt.Sprintf("Tclunk fid=%d", m.Fid()) }

type Rclunk []byte

func (m Rclunk) Tag() uint16    { return msg(m).Tag() }
func (m Rclunk) Len() int64     { return msg(m).Len() }
func (m Rclunk) String() string { return "Rclunk" }

type Tremove []byte

func (m Tremove) Tag() uint16    { return msg(m).Tag() }
func (m Tremove) Len() int64     { return msg(m).Len() }
func (m Tremove) Fid() uint32    { return guint32(m[7:11]) }
func (m Tremove) String() string { return fmt.Sprintf("Tremove fid=%d", m.Fid()) }

type Rremove []byte

func (m Rremove) Tag() uint16    { return msg(m).Tag() }
func (m Rremove) Len() int64     { return msg(m).Len() }
func (m Rremove) String() string { return "Rremove" }

type Tstat []byte

func (m Tstat) Tag() uint16    { return msg(m).Tag() }
func (m Tstat) Len() int64     { return msg(m).Len() }
func (m Tstat) Fid() uint32    { return guint32(m[7:11]) }
func (m Tstat) String() string { return fmt.Sprintf("Tstat fid=%d", m.Fid()) }

// An Rstat reply carries a single stat record, wrapped in the
// two-byte count required by the protocol.
type Rstat []byte

func (m Rstat) Tag() uint16    { return msg(m).Tag() }
func (m Rstat) Len() int64     { return msg(m).Len() }
func (m Rstat) Stat() Stat     { return Stat(m[9:]) }
func (m Rstat) String() string { return "Rstat " + m.Stat().String() }

// A Twstat request asks the server to change file metadata. Fields
// of the carried stat record holding their "don't touch" values
// (see Stat) are left unmodified.
type Twstat []byte

func (m Twstat) Tag() uint16 { return msg(m).Tag() }
func (m Twstat) Len() int64  { return msg(m).Len() }
func (m Twstat) Fid() uint32 { return guint32(m[7:11]) }
func (m Twstat) Stat() Stat  { return Stat(m[13:]) }

func (m Twstat) String() string {
	return fmt.Sprintf("Twstat fid=%d %s", m.Fid(), m.Stat())
}

type Rwstat []byte

func (m Rwstat) Tag() uint16    { return msg(m).Tag() }
func (m Rwstat) Len() int64     { return msg(m).Len() }
func (m Rwstat) String() string { return "Rwstat" }

// Shorthand for parsing numbers.
var (
	guint16 = binary.LittleEndian.Uint16
	guint32 = binary.LittleEndian.Uint32
	guint64 = binary.LittleEndian.Uint64

	buint16 = binary.LittleEndian.PutUint16
	buint32 = binary.LittleEndian.PutUint32
	buint64 = binary.LittleEndian.PutUint64
)
