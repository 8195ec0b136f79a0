package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	var runs atomic.Int32
	var cancelled atomic.Bool
	s := New(func(ctx context.Context) {
		runs.Add(1)
		go func() {
			<-ctx.Done()
			cancelled.Store(true)
		}()
	}, time.Hour, time.UTC)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("second start should fail")
	}
	waitFor(t, func() bool { return runs.Load() >= 1 })

	s.Stop()
	waitFor(t, cancelled.Load)
}

func TestSchedulerReschedule(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) { runs.Add(1) }, time.Hour, time.UTC)
	if err := s.Reschedule(2 * time.Hour); err != nil {
		t.Fatalf("reschedule before start: %v", err)
	}
	if s.Interval() != 2*time.Hour {
		t.Fatalf("interval = %s", s.Interval())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	waitFor(t, func() bool { return runs.Load() >= 1 })

	if err := s.Reschedule(time.Second); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := New(func(context.Context) {}, 0, nil)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatalf("expected error for zero interval")
	}
}
