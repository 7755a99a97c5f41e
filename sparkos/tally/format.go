package tally

import "strconv"

// CountWidth is the minimum digit count of a displayed count.
const CountWidth = 3

// FormatCount renders n zero-padded to CountWidth digits. Longer values are kept whole.
func FormatCount(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) >= CountWidth {
		return s
	}
	var buf [CountWidth]byte
	pad := CountWidth - len(s)
	for i := 0; i < pad; i++ {
		buf[i] = '0'
	}
	copy(buf[pad:], s)
	return string(buf[:])
}

// PercentTenths returns count/total*100 in tenths of a percent, rounded half up.
//
// The result is exact: the rounding is done on the rational value, not a float.
// It is 0 when total is 0.
func PercentTenths(count, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	if count >= total {
		return 1000
	}
	// Counts are uint32 per cell, so neither product can overflow.
	return (count*2000 + total) / (2 * total)
}

// FormatPercent renders count/total as a percentage with exactly one decimal, e.g. "12.5".
func FormatPercent(count, total uint64) string {
	t := PercentTenths(count, total)
	return strconv.FormatUint(t/10, 10) + "." + strconv.FormatUint(t%10, 10)
}

// TotalPercentText is the percent shown on the TOTAL row.
func TotalPercentText(total uint64) string {
	if total == 0 {
		return "0%"
	}
	return "100%"
}
