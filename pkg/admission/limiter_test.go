package admission

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func admit(t *testing.T, l Limiter, identity string) {
	t.Helper()
	d, err := l.Check(context.Background(), identity)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected admission, denied: %s", d.Reason)
	}
	if err := l.Record(context.Background(), identity); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestMemoryLimiterMinuteCap(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(10, 100, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		admit(t, l, "caller")
	}

	d, _ := l.Check(context.Background(), "caller")
	if d.Allowed {
		t.Fatal("11th request within the minute should be denied")
	}
	if !strings.Contains(d.Reason, "10 requests per minute") {
		t.Errorf("unexpected reason: %q", d.Reason)
	}
	if !strings.Contains(d.Reason, "Wait 60 seconds") {
		t.Errorf("expected 60s wait immediately after burst, got %q", d.Reason)
	}
}

func TestMemoryLimiterWindowExpiry(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(10, 100, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		admit(t, l, "caller")
	}

	clock.Advance(61 * time.Second)
	d, _ := l.Check(context.Background(), "caller")
	if !d.Allowed {
		t.Fatalf("request after window expiry denied: %s", d.Reason)
	}
}

func TestMemoryLimiterDayCap(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(10, 100, WithClock(clock.Now))

	// Fill the day window in bursts of 10 spaced past the minute window.
	for burst := 0; burst < 10; burst++ {
		for i := 0; i < 10; i++ {
			admit(t, l, "caller")
		}
		clock.Advance(2 * time.Minute)
	}

	d, _ := l.Check(context.Background(), "caller")
	if d.Allowed {
		t.Fatal("101st request within the day should be denied")
	}
	if !strings.Contains(d.Reason, "100 requests per day") {
		t.Errorf("unexpected reason: %q", d.Reason)
	}
	if !strings.Contains(d.Reason, "h ") || !strings.Contains(d.Reason, "m.") {
		t.Errorf("day denial should report hours and minutes: %q", d.Reason)
	}

	clock.Advance(25 * time.Hour)
	d, _ = l.Check(context.Background(), "caller")
	if !d.Allowed {
		t.Fatalf("next day still denied: %s", d.Reason)
	}
}

func TestMemoryLimiterDeniedCheckConsumesNothing(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(10, 100, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		admit(t, l, "caller")
	}

	// Repeated denied checks must not extend the penalty.
	for i := 0; i < 5; i++ {
		if d, _ := l.Check(context.Background(), "caller"); d.Allowed {
			t.Fatal("expected denial")
		}
	}
	_, day, err := l.Remaining(context.Background(), "caller")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if day != 90 {
		t.Errorf("day remaining = %d, want 90 (denied checks must not record)", day)
	}
}

func TestMemoryLimiterRemaining(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(10, 100, WithClock(clock.Now))

	perMin, perDay, err := l.Remaining(context.Background(), "caller")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if perMin != 10 || perDay != 100 {
		t.Errorf("fresh identity remaining = %d/%d, want 10/100", perMin, perDay)
	}

	for i := 0; i < 3; i++ {
		admit(t, l, "caller")
	}
	perMin, perDay, _ = l.Remaining(context.Background(), "caller")
	if perMin != 7 || perDay != 97 {
		t.Errorf("remaining = %d/%d, want 7/97", perMin, perDay)
	}
}

func TestMemoryLimiterIdentitiesIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(10, 100, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		admit(t, l, "first")
	}
	if d, _ := l.Check(context.Background(), "second"); !d.Allowed {
		t.Fatalf("unrelated identity denied: %s", d.Reason)
	}
}
