package console

import (
	"strconv"
	"testing"
)

func TestRingPopEmpty(t *testing.T) {
	var r Ring

	if _, ok := r.TryPop(); ok {
		t.Fatalf("TryPop() ok = true, want false")
	}
}

func TestRingPushFull(t *testing.T) {
	var r Ring

	for i := 0; i < ringSlots; i++ {
		if ok := r.TryPush("x"); !ok {
			t.Fatalf("TryPush() ok = false at slot %d, want true", i)
		}
	}
	if ok := r.TryPush("x"); ok {
		t.Fatalf("TryPush() ok = true when full, want false")
	}

	for i := 0; i < ringSlots; i++ {
		if _, ok := r.TryPop(); !ok {
			t.Fatalf("TryPop() ok = false at slot %d, want true", i)
		}
	}
}

func TestRingOrder(t *testing.T) {
	var r Ring

	for i := 0; i < ringSlots; i++ {
		r.TryPush(strconv.Itoa(i))
	}
	for i := 0; i < ringSlots; i++ {
		got, ok := r.TryPop()
		if !ok || got != strconv.Itoa(i) {
			t.Fatalf("TryPop() = %q, %v, want %q, true", got, ok, strconv.Itoa(i))
		}
	}
}
