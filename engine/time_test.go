package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillbox/dispense-engine/engine"
)

func TestHoursBetween_AbsoluteAndSymmetric(t *testing.T) {
	a := testNow
	b := testNow.Add(90 * time.Minute)

	assert.InDelta(t, 1.5, engine.HoursBetween(a, b), 1e-9)
	assert.InDelta(t, 1.5, engine.HoursBetween(b, a), 1e-9)
	assert.Zero(t, engine.HoursBetween(a, a))
}

func TestAddHours_Fractional(t *testing.T) {
	got, err := engine.AddHours(testNow, decimal.NewFromFloat(1.5))
	require.NoError(t, err)
	assert.True(t, got.Equal(testNow.Add(90*time.Minute)))
}

func TestAddHours_NegativeRejected(t *testing.T) {
	_, err := engine.AddHours(testNow, decimal.NewFromFloat(-1))
	assert.True(t, errors.Is(err, engine.ErrInvalidInterval))
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, engine.ValidateInterval(decimal.NewFromFloat(0.5)))
	assert.True(t, errors.Is(engine.ValidateInterval(decimal.Zero), engine.ErrInvalidInterval))
	assert.True(t, errors.Is(engine.ValidateInterval(decimal.NewFromInt(-3)), engine.ErrInvalidInterval))
}

func TestClockTime_24HourInConfiguredZone(t *testing.T) {
	at := time.Date(2025, time.March, 10, 21, 5, 0, 0, time.UTC)

	assert.Equal(t, "21:05", engine.ClockTime(at, time.UTC))

	manila := time.FixedZone("PST", 8*3600)
	assert.Equal(t, "05:05", engine.ClockTime(at, manila))
}

func TestCanonicalTimestamp_StableWithExplicitOffset(t *testing.T) {
	at := time.Date(2025, time.March, 10, 21, 5, 30, 0, time.UTC)

	first := engine.CanonicalTimestamp(at, time.UTC)
	second := engine.CanonicalTimestamp(at, time.UTC)
	assert.Equal(t, first, second)
	assert.Equal(t, "2025-03-10T21:05:30+00:00", first)

	// Same instant expressed in another zone still identifies the instant.
	manila := time.FixedZone("PST", 8*3600)
	assert.Equal(t, "2025-03-11T05:05:30+08:00", engine.CanonicalTimestamp(at, manila))
}
