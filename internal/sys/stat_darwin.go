package sys

// Atime and Mtime are the access and modification times in seconds
// since the epoch.
func (i *Info) Atime() int64 { return i.st.Atimespec.Sec }
func (i *Info) Mtime() int64 { return i.st.Mtimespec.Sec }
