// Package monotime provides a monotonic time representation that is cheaper
// to obtain, store and compare than time.Time.
package monotime

import "time"

// Time is the number of nanoseconds elapsed since an arbitrary epoch chosen
// at process start. The zero value means "unset"; Now never returns it.
type Time int64

var epoch = time.Now()

// Now returns the current monotonic time.
func Now() Time {
	// offset by 1ns, so that Now never returns the zero value
	return Time(time.Since(epoch)) + 1
}

// Since returns the time elapsed since t.
func Since(t Time) time.Duration { return Now().Sub(t) }

// Until returns the duration until t.
func Until(t Time) time.Duration { return t.Sub(Now()) }

// FromTime converts a time.Time to a Time.
// The zero time.Time converts to the zero Time.
func FromTime(t time.Time) Time {
	if t.IsZero() {
		return 0
	}
	return Time(t.Sub(epoch)) + 1
}

// Add returns the time t+d.
func (t Time) Add(d time.Duration) Time { return t + Time(d) }

// Sub returns the duration t-u.
func (t Time) Sub(u Time) time.Duration { return time.Duration(t - u) }

// After reports whether t is after u.
func (t Time) After(u Time) bool { return t > u }

// Before reports whether t is before u.
func (t Time) Before(u Time) bool { return t < u }

// Equal reports whether t and u represent the same instant.
func (t Time) Equal(u Time) bool { return t == u }

// IsZero reports whether t is the zero value.
func (t Time) IsZero() bool { return t == 0 }

// ToTime converts t to a time.Time.
// The zero Time converts to the zero time.Time.
func (t Time) ToTime() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return epoch.Add(time.Duration(t - 1))
}
