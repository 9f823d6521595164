package convert

import (
	"cloud.google.com/go/civil"
	"fmt"
	"math"
	"time"
)

// Epoch is the date/time that represents a zero duration
var Epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

var (
	minOffsetTime = Epoch.Add(math.MinInt64)
	maxOffsetTime = Epoch.Add(math.MaxInt64)
)

// DurationFromTime returns the offset of t from Epoch
//
// offsets beyond the range of time.Duration (~292 years either side of Epoch) are an ErrRangeViolation
func DurationFromTime(t time.Time) (time.Duration, error) {
	if t.Before(minOffsetTime) || t.After(maxOffsetTime) {
		return 0, fmt.Errorf("%w: %s is too far from %s to be a duration", ErrRangeViolation, t.Format(time.RFC3339Nano), Epoch.Format(time.DateOnly))
	}
	return t.Sub(Epoch), nil
}

// TimeFromDuration is the inverse of DurationFromTime
func TimeFromDuration(d time.Duration) time.Time {
	return Epoch.Add(d)
}

// TimeOfDayFromTime returns the time-of-day represented by the offset of t from Epoch
//
// the offset must lie within one full day, otherwise ErrRangeViolation is returned
func TimeOfDayFromTime(t time.Time) (civil.Time, error) {
	d, err := DurationFromTime(t)
	if err != nil {
		return civil.Time{}, err
	}
	return TimeOfDayFromDuration(d)
}

// TimeOfDayFromDuration converts a duration within [0, 24h) into a time-of-day
func TimeOfDayFromDuration(d time.Duration) (civil.Time, error) {
	if d < 0 || d >= day {
		return civil.Time{}, fmt.Errorf("%w: %s is not within a single day", ErrRangeViolation, d)
	}
	return civil.Time{
		Hour:       int(d / time.Hour),
		Minute:     int(d % time.Hour / time.Minute),
		Second:     int(d % time.Minute / time.Second),
		Nanosecond: int(d % time.Second),
	}, nil
}

// DurationFromTimeOfDay returns the duration since midnight of a time-of-day
func DurationFromTimeOfDay(t civil.Time) time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Nanosecond)
}
