package proto

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// An Encoder writes 9P messages to an underlying io.Writer. Methods
// may be called from multiple goroutines: each message is written
// atomically with respect to the others.
//
// Write errors are sticky; once a write fails, subsequent messages
// are dropped and Err returns the failure. This allows a run of
// messages to be encoded with a single error check.
type Encoder struct {
	mu  sync.Mutex
	w   *bufio.Writer
	err error
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Err returns the first error encountered writing to the underlying
// io.Writer.
func (enc *Encoder) Err() error {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	return enc.err
}

// Flush writes any buffered messages to the underlying io.Writer.
func (enc *Encoder) Flush() error {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.err == nil {
		enc.err = enc.w.Flush()
	}
	return enc.err
}

// The packing helpers below assume enc.mu is held and stop writing
// after the first error.

func (enc *Encoder) puint8(v uint8) {
	if enc.err == nil {
		enc.err = enc.w.WriteByte(v)
	}
}

func (enc *Encoder) puint16(v uint16) {
	var b [2]byte
	buint16(b[:], v)
	enc.write(b[:])
}

func (enc *Encoder) puint32(v ...uint32) {
	var b [4]byte
	for _, vv := range v {
		buint32(b[:], vv)
		enc.write(b[:])
	}
}

func (enc *Encoder) puint64(v uint64) {
	var b [8]byte
	buint64(b[:], v)
	enc.write(b[:])
}

func (enc *Encoder) pstring(s ...string) {
	for _, ss := range s {
		enc.puint16(uint16(len(ss)))
		if enc.err == nil {
			_, enc.err = io.WriteString(enc.w, ss)
		}
	}
}

func (enc *Encoder) pqid(qids ...Qid) {
	for _, q := range qids {
		enc.write(q[:QidLen])
	}
}

func (enc *Encoder) write(p []byte) {
	if enc.err == nil {
		_, enc.err = enc.w.Write(p)
	}
}

func (enc *Encoder) pheader(size uint32, mtype uint8, tag uint16, extra ...uint32) {
	enc.puint32(size)
	enc.puint8(mtype)
	enc.puint16(tag)
	enc.puint32(extra...)
}

// Tversion writes a Tversion message. The tag of the written message
// is NoTag.
func (enc *Encoder) Tversion(msize uint32, version string) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTversion]+uint32(len(version)), msgTversion, NoTag, msize)
	enc.pstring(version)
}

// Rversion writes an Rversion message.
func (enc *Encoder) Rversion(msize uint32, version string) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRversion]+uint32(len(version)), msgRversion, NoTag, msize)
	enc.pstring(version)
}

// Tauth writes a Tauth message.
func (enc *Encoder) Tauth(tag uint16, afid uint32, uname, aname string) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTauth]+uint32(len(uname)+len(aname)), msgTauth, tag, afid)
	enc.pstring(uname, aname)
}

// Rauth writes an Rauth message.
func (enc *Encoder) Rauth(tag uint16, aqid Qid) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRauth], msgRauth, tag)
	enc.pqid(aqid)
}

// Tattach writes a Tattach message. Clients that do not authenticate
// pass NoFid for afid.
func (enc *Encoder) Tattach(tag uint16, fid, afid uint32, uname, aname string) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTattach]+uint32(len(uname)+len(aname)), msgTattach, tag, fid, afid)
	enc.pstring(uname, aname)
}

// Rattach writes an Rattach message.
func (enc *Encoder) Rattach(tag uint16, qid Qid) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRattach], msgRattach, tag)
	enc.pqid(qid)
}

// Rerror writes an Rerror message. Format may be a printf-style
// format string, filled in from the argument list v. An error string
// longer than MaxErrorLen is truncated.
func (enc *Encoder) Rerror(tag uint16, format string, v ...interface{}) {
	ename := format
	if len(v) > 0 {
		ename = fmt.Sprintf(format, v...)
	}
	if len(ename) > MaxErrorLen {
		ename = ename[:MaxErrorLen]
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRerror]+uint32(len(ename)), msgRerror, tag)
	enc.pstring(ename)
}

// Tflush writes a Tflush message.
func (enc *Encoder) Tflush(tag, oldtag uint16) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTflush], msgTflush, tag)
	enc.puint16(oldtag)
}

// Rflush writes an Rflush message.
func (enc *Encoder) Rflush(tag uint16) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRflush], msgRflush, tag)
}

// Twalk writes a Twalk message. An error is returned if wname has
// more than MaxWElem elements or an element is too long.
func (enc *Encoder) Twalk(tag uint16, fid, newfid uint32, wname ...string) error {
	if len(wname) > MaxWElem {
		return errMaxWElem
	}
	size := minSizeLUT[msgTwalk]
	for _, v := range wname {
		if len(v) > MaxFilenameLen {
			return errLongFilename
		}
		size += 2 + uint32(len(v))
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(size, msgTwalk, tag, fid, newfid)
	enc.puint16(uint16(len(wname)))
	enc.pstring(wname...)
	return nil
}

// Rwalk writes an Rwalk message. An error is returned if wqid has
// more than MaxWElem elements.
func (enc *Encoder) Rwalk(tag uint16, wqid ...Qid) error {
	if len(wqid) > MaxWElem {
		return errMaxWElem
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRwalk]+uint32(QidLen*len(wqid)), msgRwalk, tag)
	enc.puint16(uint16(len(wqid)))
	enc.pqid(wqid...)
	return nil
}

// Topen writes a Topen message.
func (enc *Encoder) Topen(tag uint16, fid uint32, mode uint8) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTopen], msgTopen, tag, fid)
	enc.puint8(mode)
}

// Ropen writes an Ropen message.
func (enc *Encoder) Ropen(tag uint16, qid Qid, iounit uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRopen], msgRopen, tag)
	enc.pqid(qid)
	enc.puint32(iounit)
}

// Tcreate writes a Tcreate message. A non-empty extension carries
// the target of a symbolic link.
func (enc *Encoder) Tcreate(tag uint16, fid uint32, name string, perm uint32, mode uint8, extension string) {
	size := minSizeLUT[msgTcreate] + uint32(len(name))
	if extension != "" {
		size += 2 + uint32(len(extension))
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(size, msgTcreate, tag, fid)
	enc.pstring(name)
	enc.puint32(perm)
	enc.puint8(mode)
	if extension != "" {
		enc.pstring(extension)
	}
}

// Rcreate writes an Rcreate message.
func (enc *Encoder) Rcreate(tag uint16, qid Qid, iounit uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRcreate], msgRcreate, tag)
	enc.pqid(qid)
	enc.puint32(iounit)
}

// Tread writes a Tread message.
func (enc *Encoder) Tread(tag uint16, fid uint32, offset uint64, count uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTread], msgTread, tag, fid)
	enc.puint64(offset)
	enc.puint32(count)
}

// Rread writes an Rread message. The caller is responsible for
// keeping the message within the negotiated msize.
func (enc *Encoder) Rread(tag uint16, data []byte) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRread]+uint32(len(data)), msgRread, tag, uint32(len(data)))
	enc.write(data)
}

// Twrite writes a Twrite message.
func (enc *Encoder) Twrite(tag uint16, fid uint32, offset uint64, data []byte) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTwrite]+uint32(len(data)), msgTwrite, tag, fid)
	enc.puint64(offset)
	enc.puint32(uint32(len(data)))
	enc.write(data)
}

// Rwrite writes an Rwrite message.
func (enc *Encoder) Rwrite(tag uint16, count uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRwrite], msgRwrite, tag, count)
}

// Tclunk writes a Tclunk message.
func (enc *Encoder) Tclunk(tag uint16, fid uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTclunk], msgTclunk, tag, fid)
}

// Rclunk writes an Rclunk message.
func (enc *Encoder) Rclunk(tag uint16) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRclunk], msgRclunk, tag)
}

// Tremove writes a Tremove message.
func (enc *Encoder) Tremove(tag uint16, fid uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTremove], msgTremove, tag, fid)
}

// Rremove writes an Rremove message.
func (enc *Encoder) Rremove(tag uint16) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRremove], msgRremove, tag)
}

// Tstat writes a Tstat message.
func (enc *Encoder) Tstat(tag uint16, fid uint32) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgTstat], msgTstat, tag, fid)
}

// Rstat writes an Rstat message. A run-time panic occurs if stat is
// not a plausible packed record; received stats are validated by the
// Decoder, and locally built ones by NewStat.
func (enc *Encoder) Rstat(tag uint16, stat Stat) {
	if len(stat) < minStatLen || len(stat) > MaxStatLen {
		panic(errLongStat)
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(uint32(9+len(stat)), msgRstat, tag)
	enc.puint16(uint16(len(stat)))
	enc.write(stat)
}

// Twstat writes a Twstat message. The same stat requirements as
// Rstat apply.
func (enc *Encoder) Twstat(tag uint16, fid uint32, stat Stat) {
	if len(stat) < minStatLen || len(stat) > MaxStatLen {
		panic(errLongStat)
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(uint32(13+len(stat)), msgTwstat, tag, fid)
	enc.puint16(uint16(len(stat)))
	enc.write(stat)
}

// Rwstat writes an Rwstat message.
func (enc *Encoder) Rwstat(tag uint16) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	enc.pheader(minSizeLUT[msgRwstat], msgRwstat, tag)
}
