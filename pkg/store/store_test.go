package store

import (
	"testing"
	"time"
)

func TestNullTimeZeroIsNil(t *testing.T) {
	if got := nullTime(time.Time{}); got != nil {
		t.Fatalf("expected nil for zero time, got %v", got)
	}
}

func TestNullTimeNonZeroPassesThrough(t *testing.T) {
	now := time.Now()
	got := nullTime(now)
	if got != now {
		t.Fatalf("expected nullTime to pass through a non-zero time unchanged, got %v", got)
	}
}

func TestDroppedStartsAtZero(t *testing.T) {
	p := &Postgres{}
	if p.Dropped() != 0 {
		t.Fatalf("expected a fresh Postgres store to report 0 dropped writes, got %d", p.Dropped())
	}
}
