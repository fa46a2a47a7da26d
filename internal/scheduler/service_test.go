package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSessions struct {
	flushes int64
	expires int64
}

func (f *fakeSessions) FlushAll(context.Context)  { atomic.AddInt64(&f.flushes, 1) }
func (f *fakeSessions) ExpireIdle(context.Context) { atomic.AddInt64(&f.expires, 1) }

func TestNewRejectsBadCronExpression(t *testing.T) {
	if _, err := New(&fakeSessions{}, time.Minute, "not a cron line", nil); err == nil {
		t.Fatal("expected cron parse error")
	}
}

func TestNewAcceptsDescriptorExpressions(t *testing.T) {
	if _, err := New(&fakeSessions{}, time.Minute, "@hourly", nil); err != nil {
		t.Fatalf("descriptor expression rejected: %v", err)
	}
}

func TestIntervalSweepFlushesSessions(t *testing.T) {
	sessions := &fakeSessions{}
	service, err := New(sessions, time.Second, "", nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	service.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&sessions.flushes) < 2 {
		select {
		case <-deadline:
			t.Fatal("sweep never ran twice")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	if atomic.LoadInt64(&sessions.expires) < 2 {
		t.Fatalf("janitor did not run with the sweep: expires=%d", atomic.LoadInt64(&sessions.expires))
	}
}

func TestStartWithoutSessionsWaitsForContext(t *testing.T) {
	service, err := New(nil, time.Minute, "", nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("start did not stop on cancellation")
	}
}
