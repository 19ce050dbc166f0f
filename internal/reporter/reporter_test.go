package reporter

import (
	"io"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"taskgraph/internal/logging"
)

func TestReporter_DisabledWhenIntervalZero(t *testing.T) {
	called := false
	r := New(0, logging.New(io.Discard, logiface.LevelInformational), func() Counts {
		called = true
		return Counts{}
	})
	r.Start()
	r.Stop()
	if called {
		t.Fatalf("expected disabled reporter to never sample")
	}
}

func TestReporter_EmitsAtLeastOnce(t *testing.T) {
	samples := make(chan Counts, 8)
	r := New(5*time.Millisecond, logging.New(io.Discard, logiface.LevelInformational), func() Counts {
		c := Counts{Submitted: 1}
		select {
		case samples <- c:
		default:
		}
		return c
	})
	r.Start()
	select {
	case <-samples:
	case <-time.After(time.Second):
		t.Fatalf("expected at least one sample within 1s")
	}
	r.Stop()
}
