package utils

import (
	"math"
	"time"
)

// InfDuration is a duration of infinite length
const InfDuration = time.Duration(math.MaxInt64)

// AbsDuration returns the absolute value of a time duration
func AbsDuration(d time.Duration) time.Duration {
	if d >= 0 {
		return d
	}
	return -d
}
