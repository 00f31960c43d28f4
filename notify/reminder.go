/*
Package notify sends dose reminder emails to caregivers.

PURPOSE:
  Outbound notification collaborator for the dispense engine. The engine
  itself never sends anything; the HTTP layer asks this package to deliver a
  reminder, and this package owns the delivery policy:

  - Address validation before any work happens
  - A per-address minimum resend interval (5 minutes) held as explicit
    caller-side state with an injected clock, not a package-level global
  - A circuit breaker (sony/gobreaker) around the actual send, so a broken
    mail relay fails fast instead of piling up SMTP timeouts

SEE ALSO:
  - api/handlers.go: The reminder endpoint mapping errors to HTTP statuses
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pillbox/dispense-engine/engine"
)

// DefaultCooldown is the minimum interval between reminders to one address.
const DefaultCooldown = 5 * time.Minute

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrInvalidAddress is returned for a missing or malformed email address.
var ErrInvalidAddress = errors.New("invalid email address")

// CooldownError reports that a reminder to this address was sent too
// recently.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, try again in %d seconds", e.SecondsLeft())
}

// SecondsLeft returns the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) SecondsLeft() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// ValidAddress reports whether s looks like a deliverable email address.
func ValidAddress(s string) bool {
	return emailPattern.MatchString(s)
}

// =============================================================================
// REMINDER - Cooldown-gated, breaker-wrapped delivery
// =============================================================================

// Reminder delivers dose reminder emails with a per-address cooldown and a
// circuit breaker around the sender.
type Reminder struct {
	sender   Sender
	clock    engine.Clock
	cooldown time.Duration
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewReminder creates a Reminder around the given sender.
func NewReminder(sender Sender, clock engine.Clock, logger *zap.Logger) *Reminder {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reminder-mail",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("mail breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Reminder{
		sender:   sender,
		clock:    clock,
		cooldown: DefaultCooldown,
		breaker:  breaker,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
}

// Send delivers a dose reminder to the given address. It returns
// ErrInvalidAddress for malformed input and *CooldownError when the address
// was reminded less than the cooldown interval ago.
func (r *Reminder) Send(ctx context.Context, address string) error {
	if !ValidAddress(address) {
		return ErrInvalidAddress
	}

	now := r.clock.Now()

	r.mu.Lock()
	if last, ok := r.lastSent[address]; ok {
		if elapsed := now.Sub(last); elapsed < r.cooldown {
			r.mu.Unlock()
			return &CooldownError{Remaining: r.cooldown - elapsed}
		}
	}
	r.mu.Unlock()

	msg := reminderMessage(address)
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.sender.Send(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	r.mu.Lock()
	r.lastSent[address] = now
	r.mu.Unlock()

	r.logger.Info("reminder sent", zap.String("to", address))
	return nil
}

func reminderMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Time to Take Your Medicine!",
		HTML: `<div style="background-color: #e6f4ea; padding: 20px; border-radius: 8px; font-family: Arial, sans-serif; color: #2e7d32;">
  <h2 style="color: #2e7d32;">Time to Take Your Medicine!</h2>
  <p>Hey there! Just a friendly reminder to take your prescribed medication.</p>
  <p>Health is wealth. Stay consistent and stay healthy.</p>
  <hr style="border-top: 1px solid #a5d6a7;">
  <p style="font-size: 12px; color: #388e3c;">Sent by your smart medication scheduler</p>
</div>`,
	}
}
