package velocity

import (
	"testing"
	"time"
)

func TestMeter_SlidingWindow(t *testing.T) {
	m := NewMeter(time.Minute)
	base := int64(1700000000000)

	for i := 0; i < 5; i++ {
		m.Record(base + int64(i)*1000)
	}
	if got := m.Count(base + 5000); got != 5 {
		t.Errorf("count = %d, want 5", got)
	}

	// 61s later the first stamps have aged out.
	if got := m.Count(base + 61000); got != 4 {
		t.Errorf("count after slide = %d, want 4", got)
	}

	// Well past the window everything is gone.
	if got := m.Count(base + 10*60*1000); got != 0 {
		t.Errorf("count after window = %d, want 0", got)
	}
}

func TestMeter_PerMinuteNormalizes(t *testing.T) {
	m := NewMeter(30 * time.Second)
	base := int64(1700000000000)

	for i := 0; i < 6; i++ {
		m.Record(base + int64(i)*1000)
	}
	// 6 events in a 30s window is 12/min.
	if got := m.PerMinute(base + 6000); got != 12 {
		t.Errorf("per minute = %v, want 12", got)
	}
}

func TestMeter_ZeroWindowDefaults(t *testing.T) {
	m := NewMeter(0)
	m.Record(1700000000000)
	if got := m.Count(1700000000000 + 59_000); got != 1 {
		t.Errorf("count = %d, want 1 within default minute", got)
	}
}
