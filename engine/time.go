package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME UTILITIES - Pure instant/wall-clock conversions
// =============================================================================

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// HoursBetween returns the absolute difference between two instants in
// fractional hours.
func HoursBetween(a, b time.Time) float64 {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return d.Hours()
}

// ValidateInterval checks that a dosing interval is usable for catch-up
// arithmetic: strictly positive.
func ValidateInterval(hours decimal.Decimal) error {
	if hours.Sign() <= 0 {
		return fmt.Errorf("%w: %s hours", ErrInvalidInterval, hours)
	}
	return nil
}

// AddHours returns the instant advanced by the given number of hours.
// Fractional hours are allowed; negative hours are rejected since every
// schedule advance moves forward.
func AddHours(t time.Time, hours decimal.Decimal) (time.Time, error) {
	if hours.Sign() < 0 {
		return time.Time{}, fmt.Errorf("%w: %s hours", ErrInvalidInterval, hours)
	}
	return t.Add(time.Duration(hours.Mul(nanosPerHour).IntPart())), nil
}

// ClockTime renders an instant as "HH:MM" in 24-hour format in the given
// timezone. Display only.
func ClockTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// CanonicalTimestamp renders an instant as an ISO-8601 string with explicit
// offset in the given timezone. The same instant always yields an identical
// string; the pointer change-detection equality depends on that.
func CanonicalTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02T15:04:05-07:00")
}
