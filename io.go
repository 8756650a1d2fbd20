package ufs

import (
	"io"
	"os"

	"golang.org/x/net/context"

	"aqwari.net/net/ufs/internal/sys"
)

// Read serves a Tread. The behavior depends on what the fid names:
// regular files read through the cached descriptor, directories
// return packed stat records, and symbolic links return a window of
// the link target.
func (fs *hostfs) Read(ctx context.Context, f *fid, offset uint64, count uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := fs.join(f.path)
	if err != nil {
		return nil, err
	}
	info, err := sys.Lstat(full)
	if err != nil {
		return nil, err
	}
	switch {
	case info.IsDir():
		return fs.readDir(f, full, offset, count)
	case info.IsSymlink():
		return readLink(full, offset, count)
	}
	return readFile(f, full, offset, count)
}

func readFile(f *fid, full string, offset uint64, count uint32) ([]byte, error) {
	file := f.file
	if file == nil {
		// No descriptor was cached at open: the fid names a
		// device or other special file, or the path was replaced
		// by a regular file after open. Fall back to a one-shot
		// descriptor.
		var err error
		if file, err = os.Open(full); err != nil {
			return nil, err
		}
		defer file.Close()
	}
	buf := make([]byte, count)
	n, err := file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// readLink returns bytes [offset, offset+count) of the link target.
// Offsets at or past the end of the target return zero bytes.
func readLink(full string, offset uint64, count uint32) ([]byte, error) {
	target, err := os.Readlink(full)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(target)) {
		return nil, nil
	}
	end := offset + uint64(count)
	if end > uint64(len(target)) {
		end = uint64(len(target))
	}
	return []byte(target[offset:end]), nil
}

// readDir returns a whole number of packed stat records from the
// directory listing, resuming at the byte offset the previous read
// ended on. The "." entry is left for the client to synthesize;
// ".." is served. The listing is enumerated afresh on every call, so
// the usual 9P contract applies: offsets are only meaningful against
// an unchanged directory.
func (fs *hostfs) readDir(f *fid, full string, offset uint64, count uint32) ([]byte, error) {
	dir, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	names, err := dir.Readdirnames(-1)
	dir.Close()
	if err != nil {
		return nil, err
	}
	names = append([]string{".."}, names...)

	var (
		pos uint64
		buf = make([]byte, 0, count)
	)
	for _, name := range names {
		childPath := cleanname(f.path + "/" + name)
		childFull, err := fs.join(childPath)
		if err != nil {
			continue
		}
		info, err := sys.Lstat(childFull)
		if err != nil {
			// Raced with a concurrent remove; skip the entry.
			continue
		}
		stat, err := fs.buildStat(name, childFull, info)
		if err != nil {
			continue
		}
		slen := uint64(len(stat))
		if pos+slen <= offset {
			pos += slen
			continue
		}
		if len(buf)+len(stat) > int(count) {
			// Never truncate a record.
			break
		}
		buf = append(buf, stat...)
		pos += slen
	}
	return buf, nil
}

// Write serves a Twrite on an open fid. Only regular files opened
// through the cached descriptor are writable; append-mode
// descriptors write at end of file and the supplied offset is
// ignored, as the host kernel positions the write.
func (fs *hostfs) Write(ctx context.Context, f *fid, offset uint64, data []byte) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.file == nil {
		return 0, errNoWrite
	}
	var (
		n   int
		err error
	)
	if f.flags&os.O_APPEND != 0 {
		n, err = f.file.Write(data)
	} else {
		n, err = f.file.WriteAt(data, int64(offset))
	}
	return uint32(n), err
}
