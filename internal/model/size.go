package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a size string as shown by the remote listing, e.g.
// "512", "12.5 KB", "3 MB". Units are binary (1 KB = 1024 bytes).
// Empty strings and "&nbsp;" yield 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "&nbsp;" {
		return 0, nil
	}

	fields := strings.Fields(s)
	if len(fields) == 1 {
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}
		return n, nil
	}

	val, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	multiplier := 1.0
	switch strings.ToUpper(fields[1]) {
	case "B":
	case "KB":
		multiplier = 1024
	case "MB":
		multiplier = 1024 * 1024
	case "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size unit in %q", s)
	}

	return int64(val * multiplier), nil
}
