package selection

import (
	"testing"
	"time"
)

func TestThrottleFirstCandidatePasses(t *testing.T) {
	th := NewThrottle(16 * time.Millisecond)
	if !th.Allow(t0) {
		t.Fatal("Expected first candidate to pass")
	}
	if th.Allow(t0.Add(time.Millisecond)) {
		t.Fatal("Expected candidate inside the interval to be dropped")
	}
	if !th.Allow(t0.Add(20 * time.Millisecond)) {
		t.Fatal("Expected candidate after the interval to pass")
	}
}

func TestThrottleDefaultInterval(t *testing.T) {
	if got := NewThrottle(0).Interval(); got != DefaultInterval {
		t.Fatalf("Expected default interval %v, got %v", DefaultInterval, got)
	}
}

func TestThrottleBound(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		step     time.Duration
		span     time.Duration
	}{
		{"1kHz source at 60Hz", 16 * time.Millisecond, time.Millisecond, time.Second},
		{"8kHz source at 60Hz", 16 * time.Millisecond, 125 * time.Microsecond, 500 * time.Millisecond},
		{"source slower than interval", 16 * time.Millisecond, 40 * time.Millisecond, 2 * time.Second},
		{"irregular interval", 7 * time.Millisecond, 3 * time.Millisecond, 333 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThrottle(tt.interval)
			emitted := 0
			for at := time.Duration(0); at <= tt.span; at += tt.step {
				if th.Allow(t0.Add(at)) {
					emitted++
				}
			}
			bound := int(tt.span/tt.interval) + 1
			if emitted > bound {
				t.Fatalf("emitted %d updates over %v, bound is %d", emitted, tt.span, bound)
			}
			if emitted == 0 {
				t.Fatal("Expected at least one emission")
			}
		})
	}
}

func TestThrottleReset(t *testing.T) {
	th := NewThrottle(time.Hour)
	th.Allow(t0)
	if th.Allow(t0.Add(time.Second)) {
		t.Fatal("Expected candidate to be dropped before reset")
	}
	th.Reset()
	if !th.Allow(t0.Add(2 * time.Second)) {
		t.Fatal("Expected candidate to pass after reset")
	}
}
