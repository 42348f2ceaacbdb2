package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a byte range request, following RFC 7233's three forms:
// "bytes=start-end", "bytes=start-" (open-ended), and "bytes=-suffix"
// (last N bytes). Suffix true means the caller asked for the last End
// bytes of the object; Start is then 0 and ignored.
type Range struct {
	Start  int64
	End    int64 // -1 means "to EOF"
	Suffix bool  // true for the "bytes=-N" form; End holds N
}

// ParseRange parses a Range header value such as "bytes=0-1023",
// "bytes=1024-", or "bytes=-512". An out-of-range start is reset to 0
// rather than rejected.
func ParseRange(header string) (Range, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return Range{}, fmt.Errorf("storage: unsupported range unit in %q", header)
	}
	spec := strings.TrimPrefix(header, prefix)
	spec = strings.Split(spec, ",")[0] // only the first range of a multi-range request

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("storage: malformed range %q", header)
	}

	if parts[0] == "" {
		// "-N": last N bytes
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return Range{}, fmt.Errorf("storage: malformed suffix range %q", header)
		}
		return Range{End: n, Suffix: true}, nil
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		start = 0
	}

	if parts[1] == "" {
		return Range{Start: start, End: -1}, nil
	}

	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return Range{}, fmt.Errorf("storage: malformed range %q", header)
	}
	return Range{Start: start, End: end}, nil
}

// Resolve computes the concrete [start, end] byte offsets (inclusive) of
// r against an object of the given size, clamping to valid bounds.
func (r Range) Resolve(size int64) (start, end int64) {
	if r.Suffix {
		start = size - r.End
		if start < 0 {
			start = 0
		}
		return start, size - 1
	}
	start = r.Start
	if start < 0 || start >= size {
		start = 0
	}
	end = r.End
	if end < 0 || end >= size {
		end = size - 1
	}
	return start, end
}
