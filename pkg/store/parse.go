package store

import (
	"strconv"
	"strings"
)

// ParseFloat reads the leading decimal number of a stored value the way the
// firmware reads tunables: "37.5c" is 37.5, and text without a leading
// number is 0.
func ParseFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t")
	v, err := strconv.ParseFloat(s[:numericPrefix(s, true)], 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseInt reads the leading integer of a stored value; "12.7" is 12 and
// text without a leading number is 0.
func ParseInt(s string) int64 {
	s = strings.TrimLeft(s, " \t")
	v, err := strconv.ParseInt(s[:numericPrefix(s, false)], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func numericPrefix(s string, fraction bool) int {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	dot := false
	for ; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if fraction && c == '.' && !dot {
			dot = true
			continue
		}
		break
	}
	return i
}
