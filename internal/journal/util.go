package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// mustDecimal parses a decimal string written by this package itself; a
// parse failure here means the column was corrupted, which is treated as
// a zero value rather than a panic since journal reads must never crash
// the process that is trying to recover from them.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func unixNanoToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func nowNano() int64 {
	return time.Now().UnixNano()
}
