package ratelimit

import (
	"testing"
	"time"
)

func TestKeyedLimiterPerKey(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Unix(1700000000, 0)

	if !l.Allow("guild-a", now) || !l.Allow("guild-a", now) {
		t.Fatalf("burst of 2 should be allowed")
	}
	if l.Allow("guild-a", now) {
		t.Fatalf("third event in the same instant should be limited")
	}
	if !l.Allow("guild-b", now) {
		t.Fatalf("other keys must have their own bucket")
	}
	if !l.Allow("guild-a", now.Add(time.Second)) {
		t.Fatalf("token should refill after one second")
	}
}

func TestKeyedLimiterDisabled(t *testing.T) {
	var l *KeyedLimiter = PerMinute(0, 5, 0)
	if l != nil {
		t.Fatalf("zero rate should disable limiting")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("guild", time.Now()) {
			t.Fatalf("nil limiter must allow everything")
		}
	}
	if New(1, 1, 0).Allow("  ", time.Now()) != true {
		t.Fatalf("blank key must be allowed")
	}
}

func TestKeyedLimiterEvictsIdleKeys(t *testing.T) {
	l := New(100, 100, time.Minute)
	start := time.Unix(1700000000, 0)
	l.Allow("stale", start)

	later := start.Add(2 * time.Minute)
	for i := 0; i < 511; i++ {
		l.Allow("busy", later)
	}
	if l.Len() != 1 {
		t.Fatalf("expected idle key to be evicted, have %d keys", l.Len())
	}
}
