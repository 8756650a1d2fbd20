package proto

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

// NewDecoder returns a Decoder reading 9P messages from r. Until
// version negotiation lowers it, the Decoder accepts messages up to
// DefaultMsize bytes.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		MaxSize: DefaultMsize,
		br:      bufio.NewReader(r),
	}
}

// A Decoder reads and validates a stream of 9P messages from an
// io.Reader. Successive calls to Next fetch one message at a time.
// A message is read whole into an internal buffer: servers bound
// message size with msize before buffering, so there is no need to
// stream message bodies.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// MaxSize is the maximum size message that the Decoder will
	// accept. It is lowered after version negotiation.
	MaxSize uint32

	br  *bufio.Reader
	buf []byte
	msg Msg
	err error
}

// Reset discards any decoder state and begins reading from r.
func (d *Decoder) Reset(r io.Reader) {
	d.MaxSize = DefaultMsize
	if d.br == nil {
		d.br = bufio.NewReader(r)
	} else {
		d.br.Reset(r)
	}
	d.msg = nil
	d.err = nil
}

// Err returns the first error encountered during decoding. A clean
// end of stream is not an error, and is not relayed by Err.
func (d *Decoder) Err() error {
	if d.err == io.EOF {
		return nil
	}
	return d.err
}

// Msg returns the last message decoded. It is non-nil if and only if
// the last call to Next returned true, and is only valid until the
// following call to Next.
func (d *Decoder) Msg() Msg { return d.msg }

// Next fetches the next 9P message from the underlying stream. It
// returns false at end of stream, or when a read error or an invalid
// message is encountered; Err tells those cases apart. An invalid
// message is fatal to the stream, because framing cannot be trusted
// afterwards.
func (d *Decoder) Next() bool {
	d.msg = nil
	if d.err != nil {
		return false
	}
	d.msg, d.err = d.fetch()
	return d.msg != nil
}

func (d *Decoder) fetch() (Msg, error) {
	if cap(d.buf) < minMsgSize {
		d.buf = make([]byte, minMsgSize, 8192)
	}
	if _, err := io.ReadFull(d.br, d.buf[:4]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	size := guint32(d.buf[:4])
	if size < minMsgSize {
		return nil, errTooSmall
	}
	if size > d.MaxSize {
		return nil, ErrMaxSize
	}
	if uint32(cap(d.buf)) < size {
		buf := make([]byte, size)
		copy(buf, d.buf[:4])
		d.buf = buf
	}
	d.buf = d.buf[:size]
	if _, err := io.ReadFull(d.br, d.buf[4:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return parseMsg(d.buf)
}

// parseMsg validates a raw frame and wraps it in its message type.
// The frame must already be exactly size bytes long.
func parseMsg(b []byte) (Msg, error) {
	m := msg(b)
	t := m.Type()
	if !validMsgType(t) {
		return nil, errInvalidMsgType
	}
	if min := minSizeLUT[t]; uint32(len(b)) < min {
		return nil, errTooSmall
	} else if fixedSize(t) && uint32(len(b)) > min {
		return nil, errTooBig
	}
	if verify := verifyLUT[t]; verify != nil {
		if err := verify(m); err != nil {
			return nil, err
		}
	}
	switch t {
	case msgTversion:
		return Tversion(b), nil
	case msgRversion:
		return Rversion(b), nil
	case msgTauth:
		return Tauth(b), nil
	case msgRauth:
		return Rauth(b), nil
	case msgTattach:
		return Tattach(b), nil
	case msgRattach:
		return Rattach(b), nil
	case msgRerror:
		return Rerror(b), nil
	case msgTflush:
		return Tflush(b), nil
	case msgRflush:
		return Rflush(b), nil
	case msgTwalk:
		return Twalk(b), nil
	case msgRwalk:
		return Rwalk(b), nil
	case msgTopen:
		return Topen(b), nil
	case msgRopen:
		return Ropen(b), nil
	case msgTcreate:
		return Tcreate(b), nil
	case msgRcreate:
		return Rcreate(b), nil
	case msgTread:
		return Tread(b), nil
	case msgRread:
		return Rread(b), nil
	case msgTwrite:
		return Twrite(b), nil
	case msgRwrite:
		return Rwrite(b), nil
	case msgTclunk:
		return Tclunk(b), nil
	case msgRclunk:
		return Rclunk(b), nil
	case msgTremove:
		return Tremove(b), nil
	case msgRremove:
		return Rremove(b), nil
	case msgTstat:
		return Tstat(b), nil
	case msgRstat:
		return Rstat(b), nil
	case msgTwstat:
		return Twstat(b), nil
	case msgRwstat:
		return Rwstat(b), nil
	}
	panic("unreachable")
}

var verifyLUT = [256]func(msg) error{
	msgTversion: verifyVersion,
	msgRversion: verifyVersion,
	msgTauth:    verifyTauth,
	msgRauth:    func(m msg) error { return verifyQid(m[7:20]) },
	msgTattach:  verifyTattach,
	msgRattach:  func(m msg) error { return verifyQid(m[7:20]) },
	msgRerror:   verifyRerror,
	msgTwalk:    verifyTwalk,
	msgRwalk:    verifyRwalk,
	msgTcreate:  verifyTcreate,
	msgRread:    verifyRread,
	msgTwrite:   verifyTwrite,
	msgRstat:    verifyRstat,
	msgTwstat:   verifyTwstat,
}

// Strings on the wire must be valid UTF-8 with no embedded NUL.
func verifyString(data []byte) error {
	if !utf8.Valid(data) {
		return errInvalidUTF8
	}
	if bytes.IndexByte(data, 0) != -1 {
		return errNullString
	}
	return nil
}

func verifyQid(qid []byte) error {
	switch QidType(qid[0]) {
	case QTDIR, QTAPPEND, QTEXCL, QTMOUNT, QTAUTH, QTTMP, QTSYMLINK, QTFILE:
		return nil
	}
	return errInvalidQidType
}

// verifyField reads the variable-length field at the front of data,
// returning it and the rest of data.
func verifyField(data []byte) (field, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, errOverSize
	}
	size := int(guint16(data[:2]))
	if len(data)-2 < size {
		return nil, nil, errOverSize
	}
	return data[2 : 2+size], data[2+size:], nil
}

// verifyStrings checks that data is exactly a sequence of strings
// with the given length limits.
func verifyStrings(data []byte, limits ...int) error {
	for _, limit := range limits {
		field, rest, err := verifyField(data)
		if err != nil {
			return err
		}
		if len(field) > limit {
			return errTooBig
		}
		if err := verifyString(field); err != nil {
			return err
		}
		data = rest
	}
	if len(data) != 0 {
		return errUnderSize
	}
	return nil
}

func verifyVersion(m msg) error {
	if err := verifyStrings(m[11:], MaxVersionLen); err != nil {
		if err == errTooBig {
			return errLongVersion
		}
		return err
	}
	return nil
}

func verifyTauth(m msg) error {
	field, rest, err := verifyField(m[11:])
	if err != nil {
		return err
	}
	if len(field) > MaxUidLen {
		return errLongUsername
	}
	if err := verifyString(field); err != nil {
		return err
	}
	if err := verifyStrings(rest, MaxAttachLen); err != nil {
		if err == errTooBig {
			return errLongAname
		}
		return err
	}
	return nil
}

func verifyTattach(m msg) error {
	field, rest, err := verifyField(m[15:])
	if err != nil {
		return err
	}
	if len(field) > MaxUidLen {
		return errLongUsername
	}
	if err := verifyString(field); err != nil {
		return err
	}
	if err := verifyStrings(rest, MaxAttachLen); err != nil {
		if err == errTooBig {
			return errLongAname
		}
		return err
	}
	return nil
}

func verifyRerror(m msg) error {
	if err := verifyStrings(m[7:], MaxErrorLen); err != nil {
		if err == errTooBig {
			return errLongError
		}
		return err
	}
	return nil
}

// A walk element may be "..", but never contains a slash; path
// resolution happens one element at a time.
func verifyWname(field []byte) error {
	if len(field) > MaxFilenameLen {
		return errLongFilename
	}
	if bytes.IndexByte(field, '/') != -1 {
		return errContainsSlash
	}
	return verifyString(field)
}

func verifyTwalk(m msg) error {
	nwname := int(guint16(m[15:17]))
	if nwname > MaxWElem {
		return errMaxWElem
	}
	data := m[17:]
	for i := 0; i < nwname; i++ {
		field, rest, err := verifyField(data)
		if err != nil {
			return err
		}
		if err := verifyWname(field); err != nil {
			return err
		}
		data = rest
	}
	if len(data) != 0 {
		return errUnderSize
	}
	return nil
}

func verifyRwalk(m msg) error {
	nwqid := int(guint16(m[7:9]))
	if nwqid > MaxWElem {
		return errMaxWElem
	}
	if len(m) != 9+nwqid*QidLen {
		return errOverSize
	}
	for i := 0; i < nwqid; i++ {
		if err := verifyQid(m[9+i*QidLen:]); err != nil {
			return err
		}
	}
	return nil
}

func verifyTcreate(m msg) error {
	name, rest, err := verifyField(m[11:])
	if err != nil {
		return err
	}
	if err := verifyWname(name); err != nil {
		return err
	}
	if len(rest) < 5 {
		return errTooSmall
	}
	rest = rest[5:] // perm[4] mode[1]
	if len(rest) == 0 {
		return nil
	}
	// Optional extension[s], as sent for symlink creation.
	return verifyStrings(rest, MaxFilenameLen*2)
}

func verifyRread(m msg) error {
	if uint64(guint32(m[7:11])) != uint64(len(m)-11) {
		return errOverSize
	}
	return nil
}

func verifyTwrite(m msg) error {
	if uint64(guint32(m[19:23])) != uint64(len(m)-23) {
		return errOverSize
	}
	return nil
}

func verifyRstat(m msg) error {
	if int(guint16(m[7:9])) != len(m)-9 {
		return errOverSize
	}
	return verifyStat(m[9:])
}

func verifyTwstat(m msg) error {
	if int(guint16(m[11:13])) != len(m)-13 {
		return errOverSize
	}
	return verifyStat(m[13:])
}
