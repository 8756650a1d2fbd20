package ufs

import (
	"math"
	"os"
	"path"
	"strings"

	"golang.org/x/net/context"

	"aqwari.net/net/ufs/internal/sys"
	"aqwari.net/net/ufs/proto"
)

// hostfs serves the exported directory tree. Every operation maps a
// fid's path under root with join, then works through lstat and the
// usual file syscalls; symbolic links are objects in their own
// right, never followed by the server.
type hostfs struct {
	root string // canonicalized exported root, no trailing slash
	user string // reported as uid, gid and muid in stat records
}

func (fs *hostfs) lstat(name string) (*sys.Info, error) {
	full, err := fs.join(name)
	if err != nil {
		return nil, err
	}
	return sys.Lstat(full)
}

func (fs *hostfs) Attach(ctx context.Context, uname, aname string) (proto.Qid, error) {
	// uname is ignored: stat records carry the configured user.
	// aname is ignored as well; there is only one tree to serve.
	info, err := fs.lstat("/")
	if err != nil {
		return nil, err
	}
	return info.Qid(), nil
}

func (fs *hostfs) Walk(ctx context.Context, f *fid, names []string) ([]proto.Qid, string, error) {
	wpath := f.path
	qids := make([]proto.Qid, 0, len(names))
	for _, name := range names {
		if name == ".." && wpath == "/" {
			// Walking up from the exported root would escape it.
			return qids, "", errTraversal
		}
		next := cleanname(wpath + "/" + name)
		info, err := fs.lstat(next)
		if err != nil {
			return qids, "", err
		}
		qids = append(qids, info.Qid())
		wpath = next
	}
	return qids, wpath, nil
}

func (fs *hostfs) Open(ctx context.Context, f *fid, mode uint8) (proto.Qid, error) {
	full, err := fs.join(f.path)
	if err != nil {
		return nil, err
	}
	info, err := sys.Lstat(full)
	if err != nil {
		return nil, err
	}
	flags := sys.OpenFlags(mode)
	switch {
	case info.IsDir():
		if mode&3 != proto.OREAD && mode&3 != proto.OEXEC || mode&proto.OTRUNC != 0 {
			return nil, errIsDir
		}
	case info.IsRegular():
		// Opening now both surfaces permission errors at the
		// right time and pins the file for the lifetime of the
		// fid: reads and writes go to the descriptor opened
		// here even if the path is renamed or removed later.
		file, err := os.OpenFile(full, flags, 0)
		if err != nil {
			return nil, err
		}
		f.file = file
		if mode&proto.OTRUNC != 0 {
			// Refresh: O_TRUNC just changed length and mtime.
			if info2, err := sys.Lstat(full); err == nil {
				info = info2
			}
		}
	}
	// Symlinks carry no descriptor; reads use readlink.
	f.mode = mode
	f.flags = flags
	f.opened = true
	f.rclose = mode&proto.ORCLOSE != 0
	return info.Qid(), nil
}

func (fs *hostfs) Create(ctx context.Context, f *fid, name string, perm uint32, mode uint8, ext string) (proto.Qid, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return nil, errBadName
	}
	parent, err := fs.lstat(f.path)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, errNotDir
	}
	childPath := cleanname(f.path + "/" + name)
	full, err := fs.join(childPath)
	if err != nil {
		return nil, err
	}
	flags := sys.OpenFlags(mode)
	switch {
	case perm&proto.DMDIR != 0:
		if err := os.Mkdir(full, os.FileMode(perm&0777)); err != nil {
			return nil, err
		}
	case perm&proto.DMSYMLINK != 0:
		if ext == "" {
			return nil, errSymlinkExt
		}
		if err := os.Symlink(ext, full); err != nil {
			return nil, err
		}
	default:
		file, err := os.OpenFile(full, flags|os.O_CREATE|os.O_EXCL, os.FileMode(perm&0777))
		if err != nil {
			return nil, err
		}
		f.file = file
	}
	info, err := sys.Lstat(full)
	if err != nil {
		f.close()
		return nil, err
	}
	f.path = childPath
	f.mode = mode
	f.flags = flags
	f.opened = true
	f.rclose = mode&proto.ORCLOSE != 0
	return info.Qid(), nil
}

func (fs *hostfs) Remove(ctx context.Context, f *fid) error {
	f.close()
	full, err := fs.join(f.path)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (fs *hostfs) Clunk(ctx context.Context, f *fid) error {
	f.close()
	if f.rclose {
		if full, err := fs.join(f.path); err == nil {
			os.Remove(full)
		}
	}
	return nil
}

func (fs *hostfs) Stat(ctx context.Context, f *fid) (proto.Stat, error) {
	full, err := fs.join(f.path)
	if err != nil {
		return nil, err
	}
	info, err := sys.Lstat(full)
	if err != nil {
		return nil, err
	}
	name := f.path[strings.LastIndexByte(f.path, '/')+1:]
	if name == "" {
		name = "/"
	}
	return fs.buildStat(name, full, info)
}

// buildStat packs a stat record for one file. The name is the last
// element of the client path, not of the host path.
func (fs *hostfs) buildStat(name, full string, info *sys.Info) (proto.Stat, error) {
	buf := make([]byte, proto.StatLen(name, fs.user, fs.user, fs.user))
	stat, _, err := proto.NewStat(buf, name, fs.user, fs.user, fs.user)
	if err != nil {
		return nil, err
	}
	stat.SetQid(info.Qid())
	stat.SetMode(info.Mode9P())
	stat.SetAtime(uint32(info.Atime()))
	stat.SetMtime(uint32(info.Mtime()))
	switch {
	case info.IsDir():
		// Directory length is undefined on the wire.
		stat.SetLength(0)
	case info.IsSymlink():
		if target, err := os.Readlink(full); err == nil {
			stat.SetLength(uint64(len(target)))
		}
	default:
		stat.SetLength(uint64(info.Size()))
	}
	return stat, nil
}

// Wstat applies the changes the client did not mark "don't touch",
// in the order length, mode, name. The first failure stops the walk
// through the fields; earlier changes are not rolled back, as 9P
// does not require atomicity here.
func (fs *hostfs) Wstat(ctx context.Context, f *fid, s proto.Stat) error {
	full, err := fs.join(f.path)
	if err != nil {
		return err
	}
	info, err := sys.Lstat(full)
	if err != nil {
		return err
	}
	if !s.KeepLength() {
		if info.IsDir() {
			return errIsDir
		}
		length := s.Length()
		if length > math.MaxInt64 {
			return errTooBigFile
		}
		if int64(length) != info.Size() {
			if err := os.Truncate(full, int64(length)); err != nil {
				return err
			}
		}
	}
	if !s.KeepMode() {
		if err := os.Chmod(full, os.FileMode(s.Mode()&0777)); err != nil {
			return err
		}
	}
	if !s.KeepName() {
		name := string(s.Name())
		if name == "." || name == ".." || strings.ContainsRune(name, '/') {
			return errBadName
		}
		base := f.path[strings.LastIndexByte(f.path, '/')+1:]
		if name != base {
			newPath := cleanname(path.Dir(f.path) + "/" + name)
			newFull, err := fs.join(newPath)
			if err != nil {
				return err
			}
			if err := os.Rename(full, newFull); err != nil {
				return err
			}
			f.path = newPath
		}
	}
	// mtime, uid and gid changes are not implemented and are
	// ignored when present.
	return nil
}
