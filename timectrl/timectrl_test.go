package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
	if got := tc.Elapsed(); got != 42*time.Second {
		t.Fatalf("Elapsed() = %v, want 42s", got)
	}
}

func TestTimeControllerAdvanceNotifiesListeners(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 10*time.Second, Accelerated)

	var seen []time.Time
	tc.AddListener(func(now time.Time) { seen = append(seen, now) })

	for i := 0; i < 3; i++ {
		tc.Advance()
	}

	expected := start.Add(30 * time.Second)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if len(seen) != 3 || !seen[2].Equal(expected) {
		t.Fatalf("listener saw %v", seen)
	}
}

func TestPaceAcceleratedReturnsImmediately(t *testing.T) {
	tc := NewTimeController(time.Now(), time.Hour, Accelerated)
	done := make(chan error, 1)
	go func() { done <- tc.Pace(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Pace: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Pace blocked in accelerated mode")
	}
}

func TestPaceRealTimeHonoursCancellation(t *testing.T) {
	tc := NewTimeController(time.Now(), time.Hour, RealTime)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tc.Pace(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Pace err = %v, want context.Canceled", err)
	}
}

func TestPaceRealTimeWaitsScaledTick(t *testing.T) {
	tc := NewTimeController(time.Now(), 20*time.Millisecond, RealTime)
	tc.Speed = 2

	begin := time.Now()
	if err := tc.Pace(context.Background()); err != nil {
		t.Fatalf("Pace: %v", err)
	}
	if elapsed := time.Since(begin); elapsed < 10*time.Millisecond {
		t.Fatalf("Pace returned after %v, want >= 10ms", elapsed)
	}
}
