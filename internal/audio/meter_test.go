package audio

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func constant(value int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestMeterAutoStopsOnInitialSilence(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	m := newMeterAt(2*time.Second, clock.now)

	quiet := constant(10, 512)
	if _, stop := m.Observe(quiet); stop {
		t.Fatalf("should not stop on first silent chunk")
	}
	clock.advance(time.Second)
	if _, stop := m.Observe(quiet); stop {
		t.Fatalf("should not stop before timeout")
	}
	clock.advance(1100 * time.Millisecond)
	level, stop := m.Observe(quiet)
	if !stop || level != 0 {
		t.Fatalf("expected auto stop with zero level, got stop=%v level=%v", stop, level)
	}
	if !m.AutoStopped() {
		t.Fatalf("expected AutoStopped")
	}
	if _, again := m.Observe(quiet); again {
		t.Fatalf("auto stop must be reported once")
	}
}

func TestMeterStopsCheckingAfterSound(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	m := newMeterAt(time.Second, clock.now)

	m.Observe(constant(8000, 512))
	for i := 0; i < 5; i++ {
		clock.advance(500 * time.Millisecond)
		if _, stop := m.Observe(constant(0, 512)); stop {
			t.Fatalf("silence after speech must not auto stop")
		}
	}
}

func TestMeterIgnoresSilenceAfterInitialWindow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	m := newMeterAt(time.Second, clock.now)

	clock.advance(InitialCheckWindow + time.Second)
	m.Observe(constant(0, 256))
	clock.advance(2 * time.Second)
	if _, stop := m.Observe(constant(0, 256)); stop {
		t.Fatalf("silence outside the initial window must not stop")
	}
}

func TestMeterDisabledWithoutTimeout(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	m := newMeterAt(0, clock.now)
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		if _, stop := m.Observe(constant(0, 256)); stop {
			t.Fatalf("disabled meter must never stop")
		}
	}
}

func TestMeterSmoothsLevel(t *testing.T) {
	t.Parallel()

	m := NewMeter(0)
	loud := constant(32767, 256)
	first, _ := m.Observe(loud)
	second, _ := m.Observe(loud)
	if !(first > 0 && second > first && second < 1) {
		t.Fatalf("expected smoothed rise, got %v then %v", first, second)
	}
	if math.Abs(first-LevelSmoothing*NormalizedLevel(RMS16(loud))) > 1e-9 {
		t.Fatalf("unexpected first level %v", first)
	}
}

func TestNormalizedLevelBounds(t *testing.T) {
	t.Parallel()

	if got := NormalizedLevel(0); got != 0 {
		t.Fatalf("expected 0 for silence, got %v", got)
	}
	if got := NormalizedLevel(1); got != 1 {
		t.Fatalf("expected 1 for full scale, got %v", got)
	}
	if got := NormalizedLevel(0.001); math.Abs(got) > 1e-9 {
		t.Fatalf("expected -60 dB to map to 0, got %v", got)
	}
}

func TestDecodeS16LEIgnoresTrailingByte(t *testing.T) {
	t.Parallel()

	got := DecodeS16LE([]byte{0x01, 0x00, 0xff, 0xff, 0x7f}, nil)
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Fatalf("unexpected samples: %v", got)
	}
}
