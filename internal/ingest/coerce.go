package ingest

import (
	"math"
	"strconv"
	"strings"
)

// SafeInt parses s as a float and truncates it. Anything unusable (empty,
// "N/A", NaN, infinities, negatives) is 0.
func SafeInt(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// CapacityGB converts a disk size in MB to whole GB.
func CapacityGB(diskSizeMB string) int64 {
	return SafeInt(diskSizeMB) / 1024
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// firstPresent returns the first non-empty child text among names.
func firstPresent(e *element, names ...string) *string {
	for _, name := range names {
		if s := e.value(name); s != "" {
			return &s
		}
	}
	return nil
}
