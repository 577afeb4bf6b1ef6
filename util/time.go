package util

import (
	"fmt"
	"slices"
	"time"
)

// TimeInterval is a closed [start, end] span, used to describe contiguous
// coverage windows in a weather forecast's set of valid times.
type TimeInterval [2]time.Time

func (ti TimeInterval) Start() time.Time { return ti[0] }
func (ti TimeInterval) End() time.Time   { return ti[1] }

func (ti TimeInterval) Duration() time.Duration { return ti[1].Sub(ti[0]) }

func (ti TimeInterval) Contains(t time.Time) bool {
	return !t.Before(ti[0]) && !t.After(ti[1])
}

// FindTimeIntervals groups sorted times into contiguous intervals, starting
// a new one whenever the gap between successive times exceeds d. Weather
// providers report forecast steps at a nominal cadence; a gap bigger than
// that cadence means a hole in coverage, not a single long interval.
func FindTimeIntervals(times []time.Time, d time.Duration) []TimeInterval {
	if len(times) == 0 {
		return nil
	}

	var intervals []TimeInterval
	start := times[0]

	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) > d {
			intervals = append(intervals, TimeInterval{start, times[i-1]})
			start = times[i]
		}
	}
	return append(intervals, TimeInterval{start, times[len(times)-1]})
}

// IntersectIntervals returns the intersection of two sorted, disjoint sets
// of TimeIntervals.
func IntersectIntervals(a, b []TimeInterval) []TimeInterval {
	var result []TimeInterval
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		start, end := a[i].Start(), a[i].End()
		if b[j].Start().After(start) {
			start = b[j].Start()
		}
		if b[j].End().Before(end) {
			end = b[j].End()
		}
		if start.Before(end) || start.Equal(end) {
			result = append(result, TimeInterval{start, end})
		}
		if a[i].End().Before(b[j].End()) || a[i].End().Equal(b[j].End()) {
			i++
		} else {
			j++
		}
	}
	return result
}

// IntersectAllIntervals intersects any number of interval sets, giving the
// span covered by every one of them.
func IntersectAllIntervals(intervals ...[]TimeInterval) []TimeInterval {
	if len(intervals) == 0 {
		return nil
	}
	result := intervals[0]
	for i := 1; i < len(intervals); i++ {
		result = IntersectIntervals(result, intervals[i])
		if len(result) == 0 {
			return nil
		}
	}
	return result
}

// FindTimeAtOrBefore returns the index of the entry at or before t in a
// sorted slice of times.
func FindTimeAtOrBefore(times []time.Time, t time.Time) (int, error) {
	if len(times) == 0 {
		return 0, fmt.Errorf("no times available")
	}
	if t.Before(times[0]) {
		return 0, fmt.Errorf("time %s is before earliest available time %s", t.Format(time.RFC3339), times[0].Format(time.RFC3339))
	}
	if t.After(times[len(times)-1]) {
		return 0, fmt.Errorf("time %s is after latest available time %s", t.Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339))
	}

	idx, ok := slices.BinarySearchFunc(times, t, func(a, b time.Time) int { return a.Compare(b) })
	if !ok && idx > 0 {
		idx--
	}
	return idx, nil
}
