package ufs

import "testing"

func TestCleanname(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{".", "."},
		{"..", ".."},
		{"/", "/"},
		{"//", "/"},
		{"/.", "/"},
		{"/..", "/"},
		{"/../", "/"},
		{"a", "a"},
		{"a/", "a"},
		{"a//b///c", "a/b/c"},
		{"a/.", "a"},
		{"a/..", "."},
		{"a/b/..", "a"},
		{"a/../../b", "../b"},
		{"./../", ".."},
		{"../a", "../a"},
		{"../../a/b", "../../a/b"},
		{"/a/b/../..", "/"},
		{"/a/b/../../..", "/"},
		{"/usr/share/../include/linux/../../bin", "/usr/bin"},
		{"/hello/world", "/hello/world"},
		{"hello/./world", "hello/world"},
	}
	for _, tt := range tests {
		if got := cleanname(tt.in); got != tt.want {
			t.Errorf("cleanname(%q) = %q, want %q", tt.in, got, tt.want)
		}
		// A cleaned path is a fixed point.
		if got := cleanname(cleanname(tt.in)); got != tt.want {
			t.Errorf("cleanname not idempotent on %q: %q", tt.in, got)
		}
	}
}

func TestJoin(t *testing.T) {
	fs := &hostfs{root: "/export", user: "none"}

	tests := []struct {
		in   string
		want string
		err  error
	}{
		{"/", "/export/", nil},
		{"/hello", "/export/hello", nil},
		{"/a/./b", "/export/a/b", nil},
		{"/a/../b", "/export/b", nil},
		{"/..", "/export/", nil},
		{"hello", "/export/hello", nil},
		{"", "", errBadName},
		{"../etc/passwd", "", errTraversal},
		{"..", "", errTraversal},
		{"../..", "", errTraversal},
		{"a/../../b", "", errTraversal},
	}
	for _, tt := range tests {
		got, err := fs.join(tt.in)
		if err != tt.err {
			t.Errorf("join(%q) error = %v, want %v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("join(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinTooLong(t *testing.T) {
	fs := &hostfs{root: "/export", user: "none"}
	long := "/"
	for len(long) < 8192 {
		long += "aaaaaaaaaa/"
	}
	if _, err := fs.join(long); err != errPathTooLong {
		t.Errorf("join(long path) error = %v, want %v", err, errPathTooLong)
	}
}
