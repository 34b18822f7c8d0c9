package registry

import (
	"context"
	"testing"
	"time"
)

func TestConnLimiterAcquireRelease(t *testing.T) {
	l := newConnLimiter(2)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := l.Current(); got != 2 {
		t.Fatalf("want 2 active, got %d", got)
	}

	l.timeout = 20 * time.Millisecond
	if err := l.Acquire(context.Background()); err == nil {
		t.Fatal("expected third acquire to fail at the cap")
	}

	l.Release()
	if got := l.Current(); got != 1 {
		t.Fatalf("want 1 active after release, got %d", got)
	}
}

func TestConnLimiterStatsReflectsRejections(t *testing.T) {
	l := newConnLimiter(1)
	l.timeout = 10 * time.Millisecond

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l.Acquire(context.Background()); err == nil {
		t.Fatal("expected acquire beyond cap to fail")
	}

	stats := l.Stats()
	if stats.MaxConnections != 1 {
		t.Errorf("want max 1, got %d", stats.MaxConnections)
	}
	if stats.ActiveConnections != 1 {
		t.Errorf("want 1 active, got %d", stats.ActiveConnections)
	}
	if stats.RejectedTotal != 1 {
		t.Errorf("want 1 rejected, got %d", stats.RejectedTotal)
	}
}
