package multipart

// Size constants governing part alignment and bounds. These mirror the
// remote store's canonical S3 multipart limits.
const (
	// MinPartSize is the minimum size of a non-final part.
	MinPartSize int64 = 5 * 1024 * 1024 // 5 MiB

	// MaxPartSize is the maximum size of any single part.
	MaxPartSize int64 = 5 * 1024 * 1024 * 1024 // 5 GiB

	// DefaultMultipartSize is the default configured part granularity M.
	DefaultMultipartSize int64 = 10 * 1024 * 1024 // 10 MiB

	// MaxPartCount is the highest part number the remote store accepts.
	MaxPartCount = 10000
)

// PartNumberFor returns the 1-based part number for a byte offset aligned
// to multipart size m: part_num = start/m + 1.
func PartNumberFor(start, m int64) int {
	return int(start/m) + 1
}
