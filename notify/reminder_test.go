package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillbox/dispense-engine/engine"
	"github.com/pillbox/dispense-engine/notify"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	fail error
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type movableClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *movableClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

var _ engine.Clock = (*movableClock)(nil)

// =============================================================================
// REMINDER TESTS
// =============================================================================

func TestReminder_SendsValidAddress(t *testing.T) {
	sender := &fakeSender{}
	clock := &movableClock{at: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	r := notify.NewReminder(sender, clock, nil)

	err := r.Send(context.Background(), "caregiver@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "caregiver@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "Medicine")
}

func TestReminder_InvalidAddressRejected(t *testing.T) {
	sender := &fakeSender{}
	r := notify.NewReminder(sender, nil, nil)

	for _, addr := range []string{"", "no-at-sign", "two@@example.com ", "a b@example.com"} {
		err := r.Send(context.Background(), addr)
		assert.True(t, errors.Is(err, notify.ErrInvalidAddress), "address %q", addr)
	}
	assert.Zero(t, sender.count())
}

func TestReminder_CooldownEnforced(t *testing.T) {
	// GIVEN: A reminder just sent to an address
	// WHEN: Sending again within five minutes
	// THEN: CooldownError with the remaining seconds; after the cooldown the
	//       send goes through again

	sender := &fakeSender{}
	clock := &movableClock{at: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	r := notify.NewReminder(sender, clock, nil)

	require.NoError(t, r.Send(context.Background(), "caregiver@example.com"))

	clock.advance(2 * time.Minute)
	err := r.Send(context.Background(), "caregiver@example.com")
	var cooldown *notify.CooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Equal(t, 180, cooldown.SecondsLeft())
	assert.Equal(t, 1, sender.count())

	clock.advance(3 * time.Minute)
	require.NoError(t, r.Send(context.Background(), "caregiver@example.com"))
	assert.Equal(t, 2, sender.count())
}

func TestReminder_CooldownIsPerAddress(t *testing.T) {
	sender := &fakeSender{}
	clock := &movableClock{at: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	r := notify.NewReminder(sender, clock, nil)

	require.NoError(t, r.Send(context.Background(), "first@example.com"))
	require.NoError(t, r.Send(context.Background(), "second@example.com"))
	assert.Equal(t, 2, sender.count())
}

func TestReminder_FailedSendDoesNotStartCooldown(t *testing.T) {
	// GIVEN: A sender that fails once
	// WHEN: Retrying immediately after the failure
	// THEN: The retry is not throttled - the cooldown only starts on success

	sender := &fakeSender{fail: errors.New("relay down")}
	clock := &movableClock{at: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	r := notify.NewReminder(sender, clock, nil)

	err := r.Send(context.Background(), "caregiver@example.com")
	require.Error(t, err)

	sender.mu.Lock()
	sender.fail = nil
	sender.mu.Unlock()

	require.NoError(t, r.Send(context.Background(), "caregiver@example.com"))
	assert.Equal(t, 1, sender.count())
}

func TestValidAddress(t *testing.T) {
	assert.True(t, notify.ValidAddress("a@b.co"))
	assert.False(t, notify.ValidAddress("a@b"))
	assert.False(t, notify.ValidAddress("@b.co"))
	assert.False(t, notify.ValidAddress("a b@c.co"))
}
