package ufs

import (
	"strings"

	"golang.org/x/sys/unix"
)

// cleanname reduces a 9P path to canonical form in one left-to-right
// pass: runs of slashes collapse, "." elements drop, and ".."
// elements pop the previous element where one is available. A ".."
// at the front of an unrooted path is kept and becomes a floor that
// later ".." elements cannot pop past; a ".." at the root of a
// rooted path drops, so "/.." is "/". A leading slash is preserved.
// This matches cleanname(3) from Plan 9 rather than path.Clean,
// which has no ".." floor.
func cleanname(name string) string {
	if name == "" {
		return name
	}
	rooted := name[0] == '/'
	elems := make([]string, 0, strings.Count(name, "/")+1)
	dotdot := 0
	for _, el := range strings.Split(name, "/") {
		switch el {
		case "", ".":
			// skip
		case "..":
			if len(elems) > dotdot {
				elems = elems[:len(elems)-1]
			} else if !rooted {
				elems = append(elems, "..")
				dotdot = len(elems)
			}
		default:
			elems = append(elems, el)
		}
	}
	cleaned := strings.Join(elems, "/")
	switch {
	case rooted:
		return "/" + cleaned
	case cleaned == "":
		return "."
	}
	return cleaned
}

// join maps a client path onto the host filesystem under the
// exported root. The path is cleaned first; if any ".." survives
// cleaning the path escapes the root and is refused. The result is
// also refused if it exceeds the host's path limit.
func (fs *hostfs) join(name string) (string, error) {
	if name == "" {
		return "", errBadName
	}
	cleaned := cleanname(name)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	for _, el := range strings.Split(cleaned[1:], "/") {
		if el == ".." {
			return "", errTraversal
		}
	}
	full := fs.root + cleaned
	if len(full) >= unix.PathMax {
		return "", errPathTooLong
	}
	return full, nil
}
