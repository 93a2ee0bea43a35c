package kernel

import "testing"

func TestEvReceiveZeroMaskRejected(t *testing.T) {
	k := bootTest(t)

	if _, err := k.EvReceive(0, EvAny, 0); err != ErrBadParam {
		t.Fatalf("EvReceive(0) error = %v, want %v", err, ErrBadParam)
	}
}

// Round trip: a send followed by an ANY receive returns exactly the sent
// mask.
func TestEvSendReceiveRoundTrip(t *testing.T) {
	k := bootTest(t)

	if err := k.EvSend(0, 0x30); err != nil {
		t.Fatalf("EvSend() error = %v", err)
	}
	got, err := k.EvReceive(0x30, EvAny, 0)
	if err != nil || got != 0x30 {
		t.Fatalf("EvReceive() = %#x, %v, want 0x30, nil", got, err)
	}
}

func TestEvReceiveNoWait(t *testing.T) {
	k := bootTest(t)

	if _, err := k.EvReceive(0x1, EvAny|EvNoWait, 0); err != ErrNoEvs {
		t.Fatalf("EvReceive(NoWait) error = %v, want %v", err, ErrNoEvs)
	}
}

// ALL condition: partial sends do not wake; the completing send delivers
// the full mask.
func TestEvReceiveAll(t *testing.T) {
	k := bootTest(t)

	var woke bool
	spawn(t, k, "SND", 30, func([4]uint32) {
		root, err := k.TaskIdent(MakeName("ROOT"))
		if err != nil {
			t.Errorf("TaskIdent() error = %v", err)
			return
		}
		if err := k.EvSend(root, 0x1); err != nil {
			t.Errorf("EvSend(0x1) error = %v", err)
		}
		if woke {
			t.Errorf("partial send woke the ALL waiter")
		}
		if err := k.EvSend(root, 0x2); err != nil {
			t.Errorf("EvSend(0x2) error = %v", err)
		}
	})

	got, err := k.EvReceive(0x3, EvAll, 0)
	woke = true
	if err != nil || got != 0x3 {
		t.Fatalf("EvReceive(ALL) = %#x, %v, want 0x3, nil", got, err)
	}
}

// Unrequested bits stay pending for a later receive.
func TestEvPendingAccumulates(t *testing.T) {
	k := bootTest(t)

	if err := k.EvSend(0, 0x5); err != nil {
		t.Fatalf("EvSend() error = %v", err)
	}
	got, err := k.EvReceive(0x1, EvAny, 0)
	if err != nil || got != 0x1 {
		t.Fatalf("EvReceive(0x1) = %#x, %v, want 0x1, nil", got, err)
	}
	got, err = k.EvReceive(0x4, EvAny|EvNoWait, 0)
	if err != nil || got != 0x4 {
		t.Fatalf("EvReceive(0x4) = %#x, %v, want 0x4, nil", got, err)
	}
}

func TestEvReceiveTimeout(t *testing.T) {
	k := bootTest(t)

	start := k.TickCount()
	if _, err := k.EvReceive(0x1, EvAny, 30); err != ErrTimeout {
		t.Fatalf("EvReceive() error = %v, want %v", err, ErrTimeout)
	}
	if got := k.TickCount() - start; got != 30 {
		t.Fatalf("timed out after %d ticks, want 30", got)
	}
}

func TestEvSendToDeadTask(t *testing.T) {
	k := bootTest(t)

	id, err := k.TaskCreate(MakeName("GONE"), 10, 1024, 0)
	if err != nil {
		t.Fatalf("TaskCreate() error = %v", err)
	}
	if err := k.TaskDelete(id); err != nil {
		t.Fatalf("TaskDelete() error = %v", err)
	}
	if err := k.EvSend(id, 0x1); err != ErrObjDel {
		t.Fatalf("EvSend(deleted) error = %v, want %v", err, ErrObjDel)
	}
}
