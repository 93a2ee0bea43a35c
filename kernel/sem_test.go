package kernel

import "testing"

func TestSemCountingBasics(t *testing.T) {
	k := bootTest(t)

	sm, err := k.SemCreate(MakeName("CNT"), 2, SmFIFO)
	if err != nil {
		t.Fatalf("SemCreate() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := k.SemP(sm, NoWait, 0); err != nil {
			t.Fatalf("SemP() #%d error = %v", i, err)
		}
	}
	if err := k.SemP(sm, NoWait, 0); err != ErrNoSem {
		t.Fatalf("SemP(NoWait, empty) error = %v, want %v", err, ErrNoSem)
	}

	// A paired P/V leaves the count unchanged.
	if err := k.SemV(sm); err != nil {
		t.Fatalf("SemV() error = %v", err)
	}
	if err := k.SemP(sm, NoWait, 0); err != nil {
		t.Fatalf("SemP() after V error = %v", err)
	}
	if err := k.SemP(sm, NoWait, 0); err != ErrNoSem {
		t.Fatalf("count drifted: SemP() error = %v, want %v", err, ErrNoSem)
	}
}

func TestSemIdent(t *testing.T) {
	k := bootTest(t)

	sm, err := k.SemCreate(MakeName("NAMD"), 0, SmFIFO)
	if err != nil {
		t.Fatalf("SemCreate() error = %v", err)
	}
	got, err := k.SemIdent(MakeName("NAMD"))
	if err != nil || got != sm {
		t.Fatalf("SemIdent() = %d, %v, want %d, nil", got, err, sm)
	}
	if _, err := k.SemIdent(MakeName("MISS")); err != ErrObjNF {
		t.Fatalf("SemIdent(MISS) error = %v, want %v", err, ErrObjNF)
	}
}

// Timeout: the waiter comes back with ErrTimeout and leaves no trace on
// the wait queue.
func TestSemPTimesOut(t *testing.T) {
	k := bootTest(t)

	sm, err := k.SemCreate(MakeName("SLOW"), 0, SmFIFO)
	if err != nil {
		t.Fatalf("SemCreate() error = %v", err)
	}
	start := k.TickCount()
	if err := k.SemP(sm, Wait, 50); err != ErrTimeout {
		t.Fatalf("SemP() error = %v, want %v", err, ErrTimeout)
	}
	if got := k.TickCount() - start; got != 50 {
		t.Fatalf("timed out after %d ticks, want 50", got)
	}
	for _, s := range k.Semaphores() {
		if s.ID == sm && s.Waiters != 0 {
			t.Fatalf("timed-out task still on wait queue")
		}
	}
	if n := len(k.Timers()); n != 0 {
		t.Fatalf("timeout timer leaked: %d armed", n)
	}
}

// Priority-ordered semaphore: waiters at priorities 2, 5, 3 are released
// as 2, 3, 5.
func TestSemPriorityOrdering(t *testing.T) {
	k := bootTest(t)

	sm, err := k.SemCreate(MakeName("PRIO"), 0, SmPrior)
	if err != nil {
		t.Fatalf("SemCreate() error = %v", err)
	}

	var order []int
	waiter := func(prio int) Entry {
		return func([4]uint32) {
			if err := k.SemP(sm, Wait, 0); err != nil {
				t.Errorf("SemP() error = %v", err)
				return
			}
			order = append(order, prio)
		}
	}
	spawn(t, k, "P2", 2, waiter(2))
	spawn(t, k, "P5", 5, waiter(5))
	spawn(t, k, "P3", 3, waiter(3))

	// Let all three block.
	if err := k.WakeAfter(1); err != nil {
		t.Fatalf("WakeAfter() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := k.SemV(sm); err != nil {
			t.Fatalf("SemV() #%d error = %v", i, err)
		}
	}
	if err := k.WakeAfter(1); err != nil {
		t.Fatalf("WakeAfter() error = %v", err)
	}

	want := []int{2, 3, 5}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// FIFO semaphore: equal-priority waiters wake in arrival order.
func TestSemFIFOOrdering(t *testing.T) {
	k := bootTest(t)

	sm, err := k.SemCreate(MakeName("FIFO"), 0, SmFIFO)
	if err != nil {
		t.Fatalf("SemCreate() error = %v", err)
	}

	var order []string
	waiter := func(tag string) Entry {
		return func([4]uint32) {
			if err := k.SemP(sm, Wait, 0); err != nil {
				t.Errorf("SemP() error = %v", err)
				return
			}
			order = append(order, tag)
		}
	}
	spawn(t, k, "W1", 6, waiter("1"))
	spawn(t, k, "W2", 6, waiter("2"))
	spawn(t, k, "W3", 6, waiter("3"))

	if err := k.WakeAfter(1); err != nil {
		t.Fatalf("WakeAfter() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := k.SemV(sm); err != nil {
			t.Fatalf("SemV() error = %v", err)
		}
	}
	if err := k.WakeAfter(1); err != nil {
		t.Fatalf("WakeAfter() error = %v", err)
	}

	want := []string{"1", "2", "3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSemDeleteWakesWaiters(t *testing.T) {
	k := bootTest(t)

	sm, err := k.SemCreate(MakeName("KILL"), 0, SmFIFO)
	if err != nil {
		t.Fatalf("SemCreate() error = %v", err)
	}

	var got error
	spawn(t, k, "VIC", 30, func([4]uint32) {
		got = k.SemP(sm, Wait, 0)
	})
	if err := k.WakeAfter(1); err != nil {
		t.Fatalf("WakeAfter() error = %v", err)
	}
	if err := k.SemDelete(sm); err != nil {
		t.Fatalf("SemDelete() error = %v", err)
	}
	if err := k.WakeAfter(1); err != nil {
		t.Fatalf("WakeAfter() error = %v", err)
	}
	if got != ErrSemKilled {
		t.Fatalf("waiter SemP() error = %v, want %v", got, ErrSemKilled)
	}

	if err := k.SemV(sm); err != ErrObjDel {
		t.Fatalf("SemV(deleted) error = %v, want %v", err, ErrObjDel)
	}
}

func TestSemPoolExhaustion(t *testing.T) {
	k := bootTest(t)

	var made int
	for {
		_, err := k.SemCreate(MakeName("MANY"), 0, SmFIFO)
		if err == ErrNoSCB {
			break
		}
		if err != nil {
			t.Fatalf("SemCreate() error = %v", err)
		}
		made++
	}
	if made != MaxSemaphores {
		t.Fatalf("created %d semaphores, want %d", made, MaxSemaphores)
	}
}
