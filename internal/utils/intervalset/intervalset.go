// Package intervalset provides an ordered set of uint64 values, stored as
// disjoint intervals. It is used to track packet number ranges.
//
// Small sets live in an inline array, so tracking a handful of ranges never
// allocates. Storage grows by doubling and shrinks again when mostly unused.
// An optional allocation budget bounds the total size; once it is reached,
// the interval with the lowest values is dropped to make room. Packet number
// sets only ever care about recent (high) values, so dropping from the bottom
// loses the least relevant information.
package intervalset

import "sort"

const (
	// number of intervals stored inline, before any heap allocation
	initialCapacity = 8
	// in-memory size of an Interval, used for the allocation budget
	intervalSize = 16
)

// An Interval is a contiguous run of values [Low, Low+Count-1].
type Interval struct {
	Low   uint64
	Count uint64
}

// High returns the largest value contained in the interval.
// It must not be called on an empty interval.
func (i Interval) High() uint64 { return i.Low + i.Count - 1 }

// An IntervalSet is an ordered set of disjoint, non-adjacent intervals.
// It is not safe for concurrent use.
type IntervalSet struct {
	intervals []Interval
	inline    [initialCapacity]Interval

	// maxAllocSize caps the bytes used for interval storage.
	// 0 means unlimited.
	maxAllocSize int
}

// New creates an IntervalSet.
// maxAllocSize limits the bytes allocated for interval storage, 0 means no
// limit. When the limit is hit, the lowest interval is evicted to make room.
func New(maxAllocSize int) *IntervalSet {
	s := &IntervalSet{maxAllocSize: maxAllocSize}
	s.intervals = s.inline[:0]
	return s
}

// Len returns the number of disjoint intervals in the set.
func (s *IntervalSet) Len() int { return len(s.intervals) }

// At returns the i-th interval, ordered by value.
func (s *IntervalSet) At(i int) Interval { return s.intervals[i] }

// AppendRanges appends all intervals to dst and returns the result.
func (s *IntervalSet) AppendRanges(dst []Interval) []Interval {
	return append(dst, s.intervals...)
}

// Min returns the smallest value in the set.
// It must not be called on an empty set.
func (s *IntervalSet) Min() uint64 { return s.intervals[0].Low }

// Max returns the largest value in the set.
// It must not be called on an empty set.
func (s *IntervalSet) Max() uint64 { return s.intervals[len(s.intervals)-1].High() }

// TryMin returns the smallest value in the set, if any.
func (s *IntervalSet) TryMin() (uint64, bool) {
	if len(s.intervals) == 0 {
		return 0, false
	}
	return s.Min(), true
}

// TryMax returns the largest value in the set, if any.
func (s *IntervalSet) TryMax() (uint64, bool) {
	if len(s.intervals) == 0 {
		return 0, false
	}
	return s.Max(), true
}

// Contains says if the set contains v.
func (s *IntervalSet) Contains(v uint64) bool {
	_, ok := s.Search(v)
	return ok
}

// Search finds the interval containing v.
// If no interval contains v, it returns the index at which an interval for v
// would be inserted.
func (s *IntervalSet) Search(v uint64) (int, bool) {
	i := sort.Search(len(s.intervals), func(i int) bool { return s.intervals[i].High() >= v })
	if i < len(s.intervals) && s.intervals[i].Low <= v {
		return i, true
	}
	return i, false
}

// SearchRange finds the first interval overlapping [low, low+count-1].
// If no interval overlaps, it returns the index at which an interval for the
// queried values would be inserted.
func (s *IntervalSet) SearchRange(low, count uint64) (int, bool) {
	if count == 0 {
		i, _ := s.Search(low)
		return i, false
	}
	high := low + count - 1
	i := sort.Search(len(s.intervals), func(i int) bool { return s.intervals[i].High() >= low })
	if i < len(s.intervals) && s.intervals[i].Low <= high {
		return i, true
	}
	return i, false
}

// Add adds a single value.
// It returns whether the set was modified.
func (s *IntervalSet) Add(v uint64) bool { return s.AddRange(v, 1) }

// AddRange adds the values [low, low+count-1].
// It returns whether the set was modified. Overlapping and adjacent
// intervals are merged.
func (s *IntervalSet) AddRange(low, count uint64) bool {
	if count == 0 {
		return false
	}
	high := low + count - 1

	// find all intervals overlapping or adjacent to [low, high]:
	// start is the first interval with High >= low-1,
	// end is the first interval with Low > high+1
	start := sort.Search(len(s.intervals), func(i int) bool {
		return low == 0 || s.intervals[i].High() >= low-1
	})
	end := sort.Search(len(s.intervals), func(i int) bool {
		return high != maxUint64 && s.intervals[i].Low > high+1
	})

	if start == end { // nothing to merge with
		s.insert(start, Interval{Low: low, Count: count}, true)
		return true
	}

	newLow := min(low, s.intervals[start].Low)
	newHigh := max(high, s.intervals[end-1].High())
	if start == end-1 && s.intervals[start].Low == newLow && s.intervals[start].High() == newHigh {
		return false // already contained
	}
	s.intervals[start] = Interval{Low: newLow, Count: newHigh - newLow + 1}
	if end > start+1 {
		n := start + 1 + copy(s.intervals[start+1:], s.intervals[end:])
		s.intervals = s.intervals[:n]
		s.maybeShrink()
	}
	return true
}

// RemoveRange removes the values [low, low+count-1].
// Removing values from the middle of an interval splits it.
func (s *IntervalSet) RemoveRange(low, count uint64) {
	if count == 0 || len(s.intervals) == 0 {
		return
	}
	high := low + count - 1

	start := sort.Search(len(s.intervals), func(i int) bool { return s.intervals[i].High() >= low })
	end := sort.Search(len(s.intervals), func(i int) bool { return s.intervals[i].Low > high })
	if start >= end { // no overlap
		return
	}

	first := s.intervals[start]
	last := s.intervals[end-1]

	if start == end-1 && first.Low < low && last.High() > high {
		// the removed values are in the middle of a single interval: split it
		s.intervals[start].Count = low - first.Low
		// the split is allowed to exceed the allocation budget by one slot,
		// evicting here would lose values that were never removed
		s.insert(start+1, Interval{Low: high + 1, Count: last.High() - high}, false)
		return
	}

	if first.Low < low { // trim the end of the first interval
		s.intervals[start].Count = low - first.Low
		start++
	}
	if last.High() > high { // trim the beginning of the last interval
		s.intervals[end-1] = Interval{Low: high + 1, Count: last.High() - high}
		end--
	}
	if start < end {
		n := start + copy(s.intervals[start:], s.intervals[end:])
		s.intervals = s.intervals[:n]
	}
	s.maybeShrink()
}

// SetMin removes all values smaller than v.
// An interval straddling v is truncated.
func (s *IntervalSet) SetMin(v uint64) {
	i, found := s.Search(v)
	if found && s.intervals[i].Low < v {
		iv := s.intervals[i]
		s.intervals[i] = Interval{Low: v, Count: iv.High() - v + 1}
	}
	if i > 0 {
		n := copy(s.intervals, s.intervals[i:])
		s.intervals = s.intervals[:n]
		s.maybeShrink()
	}
}

// Reset empties the set, keeping the allocated storage.
func (s *IntervalSet) Reset() {
	s.intervals = s.intervals[:0]
}

const maxUint64 = ^uint64(0)

// insert places iv at index i, growing the storage if needed.
// If the allocation budget is reached and allowEvict is set, the lowest
// interval is dropped to free a slot.
func (s *IntervalSet) insert(i int, iv Interval, allowEvict bool) {
	if len(s.intervals) == cap(s.intervals) && !s.grow(allowEvict) {
		// budget reached: evict the lowest interval
		n := copy(s.intervals, s.intervals[1:])
		s.intervals = s.intervals[:n]
		if i > 0 {
			i--
		}
	}
	s.intervals = s.intervals[:len(s.intervals)+1]
	copy(s.intervals[i+1:], s.intervals[i:])
	s.intervals[i] = iv
}

// grow doubles the storage. If respectBudget is set, it reports false
// instead of exceeding the allocation budget.
func (s *IntervalSet) grow(respectBudget bool) bool {
	newCap := 2 * cap(s.intervals)
	if newCap < initialCapacity {
		newCap = initialCapacity
	}
	if respectBudget && s.maxAllocSize > 0 {
		maxIntervals := s.maxAllocSize / intervalSize
		if maxIntervals < initialCapacity {
			maxIntervals = initialCapacity // the inline array always exists
		}
		if cap(s.intervals) >= maxIntervals {
			return false
		}
		if newCap > maxIntervals {
			newCap = maxIntervals
		}
	}
	intervals := make([]Interval, len(s.intervals), newCap)
	copy(intervals, s.intervals)
	s.intervals = intervals
	return true
}

// maybeShrink halves the storage when most of it is unused.
func (s *IntervalSet) maybeShrink() {
	c := cap(s.intervals)
	if c <= 4*initialCapacity || len(s.intervals) >= c/4 {
		return
	}
	newCap := c / 2
	if newCap <= initialCapacity {
		s.intervals = append(s.inline[:0], s.intervals...)
		return
	}
	intervals := make([]Interval, len(s.intervals), newCap)
	copy(intervals, s.intervals)
	s.intervals = intervals
}
