package ratelimit

import (
	"testing"
	"time"
)

func TestPerKey_Burst(t *testing.T) {
	p := NewPerKey(1, 2, 100, time.Hour)

	if !p.Allow("a") || !p.Allow("a") {
		t.Fatal("burst of two must pass")
	}
	if p.Allow("a") {
		t.Fatal("third call must be limited")
	}
	if !p.Allow("b") {
		t.Fatal("other keys have their own bucket")
	}
}

func TestPerKey_IdleKeyExpires(t *testing.T) {
	ttl := 20 * time.Millisecond
	p := NewPerKey(1, 1, 10, ttl)

	if !p.Allow("a") {
		t.Fatal("first call must pass")
	}
	if p.Allow("a") {
		t.Fatal("second call must be limited")
	}
	time.Sleep(ttl + 10*time.Millisecond)
	if !p.Allow("a") {
		t.Fatal("expired key must start with a full bucket")
	}
}

func TestPerKey_CacheSizeBound(t *testing.T) {
	p := NewPerKey(1, 1, 2, time.Hour)
	p.Allow("a")
	p.Allow("b")
	p.Allow("c")
	if n := p.visitors.Len(); n != 2 {
		t.Fatalf("want 2 tracked keys, got %d", n)
	}
}
