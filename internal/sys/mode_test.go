package sys

import (
	"os"
	"path/filepath"
	"testing"

	"aqwari.net/net/ufs/proto"
)

func TestOpenFlags(t *testing.T) {
	tests := []struct {
		mode  uint8
		flags int
	}{
		{proto.OREAD, os.O_RDONLY},
		{proto.OWRITE, os.O_WRONLY},
		{proto.ORDWR, os.O_RDWR},
		{proto.OEXEC, os.O_RDONLY},
		{proto.OWRITE | proto.OTRUNC, os.O_WRONLY | os.O_TRUNC},
		{proto.OWRITE | proto.OAPPEND, os.O_WRONLY | os.O_APPEND},
		{proto.ORDWR | proto.OTRUNC | proto.OAPPEND, os.O_RDWR | os.O_TRUNC | os.O_APPEND},
		// ORCLOSE has no host flag.
		{proto.OREAD | proto.ORCLOSE, os.O_RDONLY},
	}
	for _, tt := range tests {
		if got := OpenFlags(tt.mode); got != tt.flags {
			t.Errorf("OpenFlags(%#x) = %#x, want %#x", tt.mode, got, tt.flags)
		}
	}
}

func TestModeRoundTrip(t *testing.T) {
	tests := []uint32{
		0644,
		0755 | proto.DMDIR,
		0777 | proto.DMSYMLINK,
		0600 | proto.DMAPPEND,
		0400 | proto.DMEXCL,
		0640 | proto.DMTMP,
	}
	for _, perm := range tests {
		if got := Mode9P(ModeOS(perm)); got != perm {
			t.Errorf("Mode9P(ModeOS(%#x)) = %#x", perm, got)
		}
	}
}

func TestQidTypeFromMode(t *testing.T) {
	if got := QidType(proto.DMDIR | 0755); got != proto.QTDIR {
		t.Errorf("QidType(DMDIR) = %#x", got)
	}
	if got := QidType(proto.DMSYMLINK | 0777); got != proto.QTSYMLINK {
		t.Errorf("QidType(DMSYMLINK) = %#x", got)
	}
	if got := QidType(0644); got != proto.QTFILE {
		t.Errorf("QidType(file) = %#x", got)
	}
}

func TestLstat(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("hello"), 0640); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "ln")
	if err := os.Symlink("f", link); err != nil {
		t.Fatal(err)
	}

	info, err := Lstat(file)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsRegular() || info.IsDir() || info.IsSymlink() {
		t.Errorf("bad type bits for regular file")
	}
	if info.Size() != 5 {
		t.Errorf("Size = %d, want 5", info.Size())
	}
	if info.Perm() != 0640 {
		t.Errorf("Perm = %#o, want 0640", info.Perm())
	}
	if info.Ino() == 0 {
		t.Error("zero inode")
	}
	if q := info.Qid(); q.Type() != proto.QTFILE || q.Path() != info.Ino() {
		t.Errorf("Qid = %s", q)
	}
	if info.Mtime() == 0 {
		t.Error("zero mtime")
	}

	// A symlink is described, not followed.
	info, err = Lstat(link)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsSymlink() {
		t.Error("symlink not detected")
	}
	if info.Mode9P()&proto.DMSYMLINK == 0 {
		t.Error("DMSYMLINK not set")
	}
	if info.QidType() != proto.QTSYMLINK {
		t.Errorf("QidType = %#x", info.QidType())
	}

	info, err = Lstat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() || info.QidType() != proto.QTDIR {
		t.Error("directory not detected")
	}

	if _, err := Lstat(filepath.Join(dir, "missing")); err == nil {
		t.Error("Lstat of missing file succeeded")
	}
}
