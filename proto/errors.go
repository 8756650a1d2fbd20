package proto

import "errors"

type parseError string

func (p parseError) Error() string { return string(p) }

var (
	errContainsSlash  = parseError("slash in path element")
	errInvalidMsgType = parseError("invalid message type")
	errInvalidQidType = parseError("invalid type field in qid")
	errInvalidUTF8    = parseError("string is not valid utf8")
	errLongAname      = parseError("aname field too long")
	errLongError      = parseError("error message too long")
	errLongFilename   = parseError("file name too long")
	errLongStat       = parseError("stat structure too long")
	errLongUsername   = parseError("uid or gid name is too long")
	errLongVersion    = parseError("protocol version string too long")
	errMaxWElem       = parseError("maximum walk elements exceeded")
	errNullString     = parseError("NUL in string field")
	errOverSize       = parseError("size of field exceeds size of message")
	errShortBuffer    = parseError("buffer too small for message")
	errShortStat      = parseError("stat structure too short")
	errStatSize       = parseError("wrong size field in stat structure")
	errTooBig         = parseError("message is too long")
	errTooSmall       = parseError("message is too small")
	errUnderSize      = parseError("empty space in message")
)

// ErrMaxSize is returned by a Decoder when an incoming message
// claims a size beyond the limit negotiated in the
// Tversion/Rversion transaction.
var ErrMaxSize = errors.New("message exceeds msize")
