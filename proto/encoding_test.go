package proto

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

func bytesFrom(v interface{}) []byte {
	return reflect.ValueOf(v).Bytes()
}

func mkQid(t *testing.T, qtype QidType, version uint32, path uint64) Qid {
	t.Helper()
	qid, _, err := NewQid(make([]byte, QidLen), qtype, version, path)
	if err != nil {
		t.Fatal(err)
	}
	return qid
}

func mkStat(t *testing.T, name string) Stat {
	t.Helper()
	stat, _, err := NewStat(make([]byte, MaxStatLen), name, "gopher", "gopher", "gopher")
	if err != nil {
		t.Fatal(err)
	}
	return stat
}

// Encode a sample of every message type, decode the stream, and
// check that the decoded messages are bit-for-bit the encoded ones.
func TestEncodeDecode(t *testing.T) {
	var wire bytes.Buffer

	qid := mkQid(t, QTFILE, 203, 0x83208)
	aqid := mkQid(t, QTAUTH, 0, 1)
	stat := mkStat(t, "georgia")
	stat.SetLength(492)
	stat.SetMode(0644)
	stat.SetQid(qid)
	stat.SetAtime(1234)
	stat.SetMtime(5678)

	enc := NewEncoder(&wire)
	enc.Tversion(8192, "9P2000")
	enc.Rversion(8192, "9P2000")
	enc.Tauth(1, 1, "gopher", "")
	enc.Rauth(1, aqid)
	enc.Tattach(2, 0, NoFid, "gopher", "")
	enc.Rattach(2, qid)
	enc.Rerror(3, "some error")
	enc.Tflush(4, 3)
	enc.Rflush(4)
	if err := enc.Twalk(5, 0, 1, "var", "log", "messages"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Rwalk(5, qid, qid, qid); err != nil {
		t.Fatal(err)
	}
	enc.Topen(6, 1, OREAD)
	enc.Ropen(6, qid, 0)
	enc.Tcreate(7, 1, "frogs.txt", 0644, OWRITE, "")
	enc.Tcreate(8, 1, "frogs.link", DMSYMLINK|0777, OREAD, "frogs.txt")
	enc.Rcreate(7, qid, 0)
	enc.Tread(9, 1, 32, 8192)
	enc.Rread(9, []byte("hello, world!"))
	enc.Twrite(10, 1, 0, []byte("goodbye, world!"))
	enc.Rwrite(10, 15)
	enc.Tclunk(11, 1)
	enc.Rclunk(11)
	enc.Tremove(12, 1)
	enc.Rremove(12)
	enc.Tstat(13, 1)
	enc.Rstat(13, stat)
	enc.Twstat(14, 1, stat)
	enc.Rwstat(14)
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	rest := wire.Bytes()
	dec := NewDecoder(bytes.NewReader(wire.Bytes()))
	n := 0
	for dec.Next() {
		m := dec.Msg()
		n++
		raw := bytesFrom(m)
		if int64(len(raw)) != m.Len() {
			t.Errorf("%T: Len() = %d, have %d bytes", m, m.Len(), len(raw))
		}
		if want := rest[:len(raw)]; !bytes.Equal(raw, want) {
			t.Errorf("%T did not round-trip:\nsent %x\ngot  %x", m, want, raw)
		}
		rest = rest[len(raw):]
		t.Logf("%d %s", m.Tag(), m)
	}
	if err := dec.Err(); err != nil {
		t.Fatal(err)
	}
	if n != 28 {
		t.Errorf("decoded %d messages, want 28", n)
	}
	if len(rest) != 0 {
		t.Errorf("%d undecoded bytes left over", len(rest))
	}
}

func TestDecodeFields(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	enc.Tattach(42, 7, NoFid, "gopher", "tree")
	if err := enc.Twalk(43, 7, 8, "usr", "..", "lib"); err != nil {
		t.Fatal(err)
	}
	enc.Twrite(44, 8, 1024, []byte("data"))
	enc.Tcreate(45, 8, "ln", DMSYMLINK|0777, OREAD, "../target")
	enc.Flush()

	dec := NewDecoder(bytes.NewReader(wire.Bytes()))

	if !dec.Next() {
		t.Fatal(dec.Err())
	}
	attach := dec.Msg().(Tattach)
	if attach.Tag() != 42 || attach.Fid() != 7 || attach.Afid() != NoFid {
		t.Errorf("bad Tattach fields: %s", attach)
	}
	if string(attach.Uname()) != "gopher" || string(attach.Aname()) != "tree" {
		t.Errorf("bad Tattach strings: %s", attach)
	}

	if !dec.Next() {
		t.Fatal(dec.Err())
	}
	walk := dec.Msg().(Twalk)
	if walk.Fid() != 7 || walk.Newfid() != 8 || walk.Nwname() != 3 {
		t.Errorf("bad Twalk fields: %s", walk)
	}
	for i, want := range []string{"usr", "..", "lib"} {
		if got := string(walk.Wname(i)); got != want {
			t.Errorf("Wname(%d) = %q, want %q", i, got, want)
		}
	}

	if !dec.Next() {
		t.Fatal(dec.Err())
	}
	write := dec.Msg().(Twrite)
	if write.Fid() != 8 || write.Offset() != 1024 || write.Count() != 4 {
		t.Errorf("bad Twrite fields: %s", write)
	}
	if string(write.Data()) != "data" {
		t.Errorf("Twrite data = %q", write.Data())
	}

	if !dec.Next() {
		t.Fatal(dec.Err())
	}
	create := dec.Msg().(Tcreate)
	if string(create.Name()) != "ln" || create.Perm() != DMSYMLINK|0777 || create.Mode() != OREAD {
		t.Errorf("bad Tcreate fields: %s", create)
	}
	if string(create.Extension()) != "../target" {
		t.Errorf("Tcreate extension = %q", create.Extension())
	}
}

// A Tcreate without the extension field is the common 9P2000 case.
func TestCreateNoExtension(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	enc.Tcreate(1, 1, "file", 0644, ORDWR|OTRUNC, "")
	enc.Flush()

	dec := NewDecoder(bytes.NewReader(wire.Bytes()))
	if !dec.Next() {
		t.Fatal(dec.Err())
	}
	create := dec.Msg().(Tcreate)
	if create.Extension() != nil {
		t.Errorf("extension = %q, want nil", create.Extension())
	}
	if create.Mode() != ORDWR|OTRUNC {
		t.Errorf("mode = %#x", create.Mode())
	}
}

func TestStatRoundTrip(t *testing.T) {
	stat := mkStat(t, "frogs")
	stat.SetMode(DMDIR | 0755)
	stat.SetLength(0)
	stat.SetAtime(math.MaxUint32)
	stat.SetQid(mkQid(t, QTDIR, 9, 42))

	if err := verifyStat([]byte(stat)); err != nil {
		t.Fatalf("verifyStat: %v", err)
	}
	if got := StatLen("frogs", "gopher", "gopher", "gopher"); got != len(stat) {
		t.Errorf("StatLen = %d, len(stat) = %d", got, len(stat))
	}
	if string(stat.Name()) != "frogs" {
		t.Errorf("name = %q", stat.Name())
	}
	if string(stat.Uid()) != "gopher" || string(stat.Gid()) != "gopher" || string(stat.Muid()) != "gopher" {
		t.Errorf("owners = %q %q %q", stat.Uid(), stat.Gid(), stat.Muid())
	}
	if stat.Mode() != DMDIR|0755 {
		t.Errorf("mode = %#x", stat.Mode())
	}
	if !stat.KeepAtime() {
		t.Error("atime sentinel not detected")
	}
	if stat.KeepMode() || stat.KeepLength() || stat.KeepName() {
		t.Error("spurious don't-touch fields")
	}
	if q := stat.Qid(); q.Type() != QTDIR || q.Version() != 9 || q.Path() != 42 {
		t.Errorf("qid = %s", q)
	}
}
