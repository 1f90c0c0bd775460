package protocol

import "strconv"

// Chips is a non-negative chip amount. It fits comfortably in 32 bits but is
// carried as a uint64 internally so that pot accumulation never overflows.
type Chips uint64

// String formats c per the wire/log convention: values at or above 10,000,000
// collapse to one decimal place with a trailing "M"; values from 1,000 to
// 9,999,999 get comma thousands separators; anything smaller prints bare.
func (c Chips) String() string {
	switch {
	case c >= 10_000_000:
		tenths := (uint64(c) + 50_000) / 100_000
		whole, frac := tenths/10, tenths%10
		return strconv.FormatUint(whole, 10) + "." + strconv.FormatUint(frac, 10) + "M"
	case c >= 1_000:
		return groupThousands(uint64(c))
	default:
		return strconv.FormatUint(uint64(c), 10)
	}
}

func groupThousands(v uint64) string {
	s := strconv.FormatUint(v, 10)
	n := len(s)
	if n <= 3 {
		return s
	}
	lead := n % 3
	if lead == 0 {
		lead = 3
	}
	out := make([]byte, 0, n+n/3)
	out = append(out, s[:lead]...)
	for i := lead; i < n; i += 3 {
		out = append(out, ',')
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
