package proto

import (
	"fmt"
	"math"
)

// A Stat describes a single directory entry. It is carried in Rstat
// and Twstat messages, and Tread requests on directories return one
// packed Stat per entry.
//
// In a Twstat message, a field holding its maximum value (for
// integers) or the empty string (for text) means "don't touch"; the
// KeepMode, KeepLength, KeepName and related methods decode those
// sentinels.
type Stat []byte

// Size returns the length in bytes of the packed record, minus the
// two-byte size field itself.
func (s Stat) Size() uint16 { return guint16(s[0:2]) }

// Type and Dev hold implementation-specific data outside the scope
// of the 9P protocol; this server leaves both zero.
func (s Stat) Type() uint16 { return guint16(s[2:4]) }
func (s Stat) Dev() uint32  { return guint32(s[4:8]) }

// Qid returns the unique identifier of the file.
func (s Stat) Qid() Qid { return Qid(s[8:21]) }

// Mode holds the file's permissions in the low nine bits, combined
// with DM flag bits describing its type.
func (s Stat) Mode() uint32 { return guint32(s[21:25]) }

// Atime and Mtime are the last access and modification times of the
// file, in seconds since the epoch.
func (s Stat) Atime() uint32 { return guint32(s[25:29]) }
func (s Stat) Mtime() uint32 { return guint32(s[29:33]) }

// Length returns the length of the file in bytes. For a symbolic
// link, it is the length of the link target.
func (s Stat) Length() uint64 { return guint64(s[33:41]) }

// Name returns the last element of the file's path, or "/" for the
// root of the served tree.
func (s Stat) Name() []byte { return msg(s).nthField(41, 0) }

// Uid, Gid and Muid name the file's owner, group, and the user who
// last modified it.
func (s Stat) Uid() []byte  { return msg(s).nthField(41, 1) }
func (s Stat) Gid() []byte  { return msg(s).nthField(41, 2) }
func (s Stat) Muid() []byte { return msg(s).nthField(41, 3) }

func (s Stat) SetType(v uint16)   { buint16(s[2:4], v) }
func (s Stat) SetDev(v uint32)    { buint32(s[4:8], v) }
func (s Stat) SetQid(q Qid)       { copy(s[8:21], q[:QidLen]) }
func (s Stat) SetMode(v uint32)   { buint32(s[21:25], v) }
func (s Stat) SetAtime(v uint32)  { buint32(s[25:29], v) }
func (s Stat) SetMtime(v uint32)  { buint32(s[29:33], v) }
func (s Stat) SetLength(v uint64) { buint64(s[33:41], v) }

// Don't-touch sentinel decoding for Twstat, per stat(5).
func (s Stat) KeepType() bool   { return s.Type() == math.MaxUint16 }
func (s Stat) KeepDev() bool    { return s.Dev() == math.MaxUint32 }
func (s Stat) KeepMode() bool   { return s.Mode() == math.MaxUint32 }
func (s Stat) KeepAtime() bool  { return s.Atime() == math.MaxUint32 }
func (s Stat) KeepMtime() bool  { return s.Mtime() == math.MaxUint32 }
func (s Stat) KeepLength() bool { return s.Length() == math.MaxUint64 }
func (s Stat) KeepName() bool   { return len(s.Name()) == 0 }

func (s Stat) String() string {
	return fmt.Sprintf("type=%#x dev=%#x qid=(%s) mode=%#o atime=%d mtime=%d "+
		"length=%d name=%q uid=%q gid=%q muid=%q", s.Type(), s.Dev(), s.Qid(),
		s.Mode(), s.Atime(), s.Mtime(), s.Length(), s.Name(), s.Uid(),
		s.Gid(), s.Muid())
}

// StatLen returns the packed size of a stat record carrying the
// given variable-length fields.
func StatLen(name, uid, gid, muid string) int {
	return minStatLen + len(name) + len(uid) + len(gid) + len(muid)
}

// NewStat packs a stat record into the front of buf. The fixed
// integer fields are zero and may be filled in with the Set
// methods. The remainder of buf is returned after the record.
func NewStat(buf []byte, name, uid, gid, muid string) (Stat, []byte, error) {
	if len(name) > MaxFilenameLen {
		return nil, buf, errLongFilename
	}
	if len(uid) > MaxUidLen || len(gid) > MaxUidLen || len(muid) > MaxUidLen {
		return nil, buf, errLongUsername
	}
	n := StatLen(name, uid, gid, muid)
	if len(buf) < n {
		return nil, buf, errShortBuffer
	}
	for i := range buf[:n] {
		buf[i] = 0
	}
	buint16(buf[0:2], uint16(n-2))
	p := buf[41:n]
	for _, f := range []string{name, uid, gid, muid} {
		buint16(p[:2], uint16(len(f)))
		copy(p[2:], f)
		p = p[2+len(f):]
	}
	return Stat(buf[:n]), buf[n:], nil
}

// verifyStat checks that data is a well-formed stat record. It must
// be called on every received Stat before its accessors are trusted.
func verifyStat(data []byte) error {
	if len(data) < minStatLen {
		return errShortStat
	}
	if len(data) > MaxStatLen {
		return errLongStat
	}
	if int(guint16(data[0:2])) != len(data)-2 {
		return errStatSize
	}
	rest := data[41:]
	for i, max := 0, MaxFilenameLen; i < 4; i++ {
		if len(rest) < 2 {
			return errOverSize
		}
		n := int(guint16(rest[:2]))
		if len(rest)-2 < n {
			return errOverSize
		}
		field := rest[2 : 2+n]
		if len(field) > max {
			if i == 0 {
				return errLongFilename
			}
			return errLongUsername
		}
		if err := verifyString(field); err != nil {
			return err
		}
		rest = rest[2+n:]
		max = MaxUidLen
	}
	if len(rest) != 0 {
		return errUnderSize
	}
	return nil
}
