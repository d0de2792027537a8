package config

import (
	"fmt"
	"strconv"
)

// unitSeconds maps the single-rune duration suffix to its second multiplier.
// Months are treated as a flat 30 days and years as a flat 365 days, matching
// the grammar in spec.md §6 and §8.
var unitSeconds = map[byte]int{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'M': 2592000,  // 30 days
	'y': 31536000, // 365 days
}

// ParseDuration converts a string like "5m", "2h", or "1y" into a number of
// seconds. The grammar is an integer prefix followed by exactly one of
// s m h d w M y. Anything else — a non-integer prefix, an empty string, a
// missing or unknown unit — is a configuration error.
func ParseDuration(s string) (int, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("config: %q is not a valid duration (want <int><unit>)", s)
	}
	unit := s[len(s)-1]
	mult, ok := unitSeconds[unit]
	if !ok {
		return 0, fmt.Errorf("config: %q is not a valid duration unit", string(unit))
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("config: %q has a non-integer duration prefix: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("config: %q is a negative duration", s)
	}
	return n * mult, nil
}
