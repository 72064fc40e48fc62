// Package admission throttles honeypot traffic per caller identity with
// sliding per-minute and per-day windows. Two backends exist: an in-memory
// limiter for single-instance deployments and a Redis limiter for fleets.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	minuteWindow = 60 * time.Second
	dayWindow    = 24 * time.Hour
)

// Decision is the outcome of an admission check. Reason is empty when
// Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter admits or rejects a request for an identity. Check never mutates
// the windows; callers invoke Record only after the request is otherwise
// accepted, so rejected and malformed requests do not consume quota.
type Limiter interface {
	Check(ctx context.Context, identity string) (Decision, error)
	Record(ctx context.Context, identity string) error
	Remaining(ctx context.Context, identity string) (perMinute, perDay int, err error)
}

// identityWindows holds one identity's timestamps, newest last.
type identityWindows struct {
	mu     sync.Mutex
	minute []time.Time
	day    []time.Time
}

// MemoryLimiter is the in-memory Limiter. Identities lock independently, so
// a burst from one caller never serializes checks for another.
type MemoryLimiter struct {
	perMinuteCap int
	perDayCap    int
	now          func() time.Time

	mu      sync.Mutex
	windows map[string]*identityWindows
}

// MemoryOption customizes a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter creates a limiter with the given per-identity caps.
func NewMemoryLimiter(perMinuteCap, perDayCap int, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		perMinuteCap: perMinuteCap,
		perDayCap:    perDayCap,
		now:          time.Now,
		windows:      make(map[string]*identityWindows),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) get(identity string) *identityWindows {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[identity]
	if !ok {
		w = &identityWindows{}
		l.windows[identity] = w
	}
	return w
}

// purge drops expired timestamps. Callers hold w.mu.
func purge(w *identityWindows, now time.Time) {
	w.minute = trimBefore(w.minute, now.Add(-minuteWindow))
	w.day = trimBefore(w.day, now.Add(-dayWindow))
}

// trimBefore drops timestamps at or before cutoff. Slices are
// chronologically ordered, so a prefix scan suffices.
func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Check purges expired entries and then tests both caps. The minute denial
// reports seconds until the oldest in-window request expires; the day denial
// reports hours and minutes.
func (l *MemoryLimiter) Check(_ context.Context, identity string) (Decision, error) {
	w := l.get(identity)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	purge(w, now)

	if len(w.minute) >= l.perMinuteCap {
		wait := minuteWindow - now.Sub(w.minute[0])
		return Decision{Reason: minuteDenial(l.perMinuteCap, wait)}, nil
	}
	if len(w.day) >= l.perDayCap {
		wait := dayWindow - now.Sub(w.day[0])
		return Decision{Reason: dayDenial(l.perDayCap, wait)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Record appends the current time to both windows.
func (l *MemoryLimiter) Record(_ context.Context, identity string) error {
	w := l.get(identity)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := l.now()
	w.minute = append(w.minute, now)
	w.day = append(w.day, now)
	return nil
}

// Remaining reports quota left in each window.
func (l *MemoryLimiter) Remaining(_ context.Context, identity string) (int, int, error) {
	w := l.get(identity)
	w.mu.Lock()
	defer w.mu.Unlock()

	purge(w, l.now())
	return remaining(l.perMinuteCap, len(w.minute)), remaining(l.perDayCap, len(w.day)), nil
}

func remaining(cap, used int) int {
	if used >= cap {
		return 0
	}
	return cap - used
}

func minuteDenial(cap int, wait time.Duration) string {
	return fmt.Sprintf("Rate limit exceeded: %d requests per minute. Wait %d seconds.", cap, int(wait.Seconds()))
}

func dayDenial(cap int, wait time.Duration) string {
	hours := int(wait.Hours())
	minutes := int(wait.Minutes()) % 60
	return fmt.Sprintf("Rate limit exceeded: %d requests per day. Wait %dh %dm.", cap, hours, minutes)
}
