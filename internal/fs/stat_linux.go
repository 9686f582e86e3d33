package fs

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// statTimes returns birth and access times. Birth time comes from statx and
// is zero when the filesystem does not record it.
func statTimes(path string, info fs.FileInfo) (created, accessed time.Time) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME|unix.STATX_ATIME, &stx)
	if err != nil {
		return time.Time{}, info.ModTime()
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		created = time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	}
	accessed = info.ModTime()
	if stx.Mask&unix.STATX_ATIME != 0 {
		accessed = time.Unix(stx.Atime.Sec, int64(stx.Atime.Nsec))
	}
	return created, accessed
}
