package proto

// Validating messages becomes much simpler if the variable-length
// fields in a message cannot be arbitrarily long. The limits below
// bound them.

// MaxVersionLen is the maximum length of the protocol version string
// in bytes.
const MaxVersionLen = 20

// MaxFilenameLen is the maximum length of a single path element in
// bytes.
const MaxFilenameLen = 255

// MaxWElem is the maximum number of path elements in a Twalk
// request.
const MaxWElem = 16

// MaxUidLen is the maximum length in bytes of a user or group name.
const MaxUidLen = 45

// MaxErrorLen is the maximum length in bytes of the ename field in
// an Rerror message.
const MaxErrorLen = 512

// MaxAttachLen is the maximum length in bytes of the aname field of
// Tattach and Tauth requests.
const MaxAttachLen = 255

// See stat(5) for the layout of a stat record. minStatLen counts
// the two-byte record size, the fixed fields, and the length
// prefixes of four empty strings.
const minStatLen = 2 + 2 + 4 + QidLen + 4 + 4 + 4 + 8 + 4*2

// MaxStatLen is the longest stat record this package will produce
// or accept.
const MaxStatLen = minStatLen + MaxFilenameLen + 3*MaxUidLen

// Smallest possible message (Rflush, Rclunk, ...).
const minMsgSize = 4 + 1 + 2

// MinMsize is the smallest message size a server can negotiate and
// still fit a maximal Twalk request.
const MinMsize = 4 + 1 + 2 + 4 + 4 + 2 + MaxWElem*(2+MaxFilenameLen)

// DefaultMsize is the maximum message size offered by this package's
// Decoder before version negotiation lowers it.
const DefaultMsize = 1 << 16

// Minimum size of each message type, including the size field. A
// zero entry marks an invalid (or illegal, in Terror's case) type.
var minSizeLUT = [256]uint32{
	msgTversion: 13,             // size[4] Tversion tag[2] msize[4] version[s]
	msgRversion: 13,             // size[4] Rversion tag[2] msize[4] version[s]
	msgTauth:    15,             // size[4] Tauth tag[2] afid[4] uname[s] aname[s]
	msgRauth:    20,             // size[4] Rauth tag[2] aqid[13]
	msgTattach:  19,             // size[4] Tattach tag[2] fid[4] afid[4] uname[s] aname[s]
	msgRattach:  20,             // size[4] Rattach tag[2] qid[13]
	msgRerror:   9,              // size[4] Rerror tag[2] ename[s]
	msgTflush:   9,              // size[4] Tflush tag[2] oldtag[2]
	msgRflush:   7,              // size[4] Rflush tag[2]
	msgTwalk:    17,             // size[4] Twalk tag[2] fid[4] newfid[4] nwname[2] nwname*wname[s]
	msgRwalk:    9,              // size[4] Rwalk tag[2] nwqid[2] nwqid*wqid[13]
	msgTopen:    12,             // size[4] Topen tag[2] fid[4] mode[1]
	msgRopen:    24,             // size[4] Ropen tag[2] qid[13] iounit[4]
	msgTcreate:  18,             // size[4] Tcreate tag[2] fid[4] name[s] perm[4] mode[1]
	msgRcreate:  24,             // size[4] Rcreate tag[2] qid[13] iounit[4]
	msgTread:    23,             // size[4] Tread tag[2] fid[4] offset[8] count[4]
	msgRread:    11,             // size[4] Rread tag[2] count[4] data[count]
	msgTwrite:   23,             // size[4] Twrite tag[2] fid[4] offset[8] count[4] data[count]
	msgRwrite:   11,             // size[4] Rwrite tag[2] count[4]
	msgTclunk:   11,             // size[4] Tclunk tag[2] fid[4]
	msgRclunk:   7,              // size[4] Rclunk tag[2]
	msgTremove:  11,             // size[4] Tremove tag[2] fid[4]
	msgRremove:  7,              // size[4] Rremove tag[2]
	msgTstat:    11,             // size[4] Tstat tag[2] fid[4]
	msgRstat:    9 + minStatLen, // size[4] Rstat tag[2] nstat[2] stat[nstat]
	msgTwstat:   13 + minStatLen,
	msgRwstat:   7,
}

// Message types whose minimum size is also their only size.
func fixedSize(t uint8) bool {
	switch t {
	case msgTversion, msgRversion, msgTauth, msgTattach, msgRerror,
		msgTwalk, msgRwalk, msgTcreate, msgRread, msgTwrite,
		msgRstat, msgTwstat:
		return false
	}
	return true
}

func validMsgType(t uint8) bool { return minSizeLUT[t] != 0 }
