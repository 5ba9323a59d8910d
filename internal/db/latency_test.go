package db

import (
	"testing"
	"time"
)

func TestTopQueryLatenciesOrdersByP95AndLimits(t *testing.T) {
	t.Parallel()

	tracker := newQueryLatencyTracker()
	tracker.observe("GetAccountByID", 2*time.Millisecond)
	tracker.observe("ListAPIKeysByAccount", 40*time.Millisecond)
	tracker.observe("CountAPIKeysByAccount", 10*time.Millisecond)

	database := &Database{tracker: tracker}

	top := database.TopQueryLatencies(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Name != "ListAPIKeysByAccount" {
		t.Fatalf("expected slowest query first, got %q", top[0].Name)
	}
	if top[1].Name != "CountAPIKeysByAccount" {
		t.Fatalf("expected second slowest query, got %q", top[1].Name)
	}
}

func TestTopQueryLatenciesEmptyCases(t *testing.T) {
	t.Parallel()

	tracker := newQueryLatencyTracker()
	tracker.observe("GetAccountByID", time.Millisecond)
	database := &Database{tracker: tracker}

	if got := database.TopQueryLatencies(0); got != nil {
		t.Fatalf("expected nil for zero limit, got %v", got)
	}

	var missing *Database
	if got := missing.TopQueryLatencies(3); got != nil {
		t.Fatalf("expected nil for nil database, got %v", got)
	}
}
