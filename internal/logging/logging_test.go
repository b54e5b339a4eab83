package logging

import "testing"

func TestNewReturnsUsableLoggers(t *testing.T) {
	t.Parallel()

	for _, debug := range []bool{true, false} {
		logger := New(debug)
		if logger == nil {
			t.Fatalf("expected logger for debug=%v", debug)
		}
		logger.Debugw("probe", "debug", debug)
		_ = logger.Sync()
	}
}

func TestNopDiscards(t *testing.T) {
	t.Parallel()

	Nop().Errorw("ignored", "k", "v")
}
