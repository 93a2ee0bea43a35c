package kernel

import "ember/port"

// waitKind records what a blocked task is waiting for, so wakers and the
// timeout path know which queue to take it off.
type waitKind uint8

const (
	waitNone waitKind = iota
	waitSem
	waitEvent
)

const taskMagic = 0x5443

// tcb is one task control block. The prev/next links are owned by whichever
// list currently holds the task; state says which one that is.
type tcb struct {
	magic uint16
	id    TaskID
	name  Name
	state TaskState
	prio  uint8
	mode  Mode
	flags TaskFlags

	suspended bool

	stackSize uint32
	ctx       port.Context
	entry     Entry
	args      [4]uint32
	regs      [regCount]uint32

	prev, next taskRef

	sliceLeft uint32

	wait      waitKind
	waitSem   semRef
	waitTimer timerRef
	timedOut  bool
	waitErr   Err

	// event block
	pending  uint32
	waiting  uint32
	evAny    bool
	evResult uint32
}

// nextTaskID generates the next id, skipping zero on wrap.
func (k *Kernel) nextTaskID() TaskID {
	k.nextTID++
	if k.nextTID == 0 {
		k.nextTID = 1
	}
	return TaskID(k.nextTID)
}

// allocTask reserves a pool slot and charges the stack arena. Deleted slots
// are reused only when no free slot remains.
func (k *Kernel) allocTask(name Name, prio uint8, stack uint32, flags TaskFlags) (taskRef, Err) {
	slot := noTask
	for i := range k.tasks {
		switch k.tasks[i].state {
		case StateFree:
			slot = taskRef(i)
		case StateDeleted:
			if slot == noTask {
				slot = taskRef(i)
			}
			continue
		default:
			continue
		}
		break
	}
	if slot == noTask {
		return noTask, ErrNoTCB
	}
	if k.stackUsed+stack > stackArena {
		return noTask, ErrNoStk
	}
	k.stackUsed += stack

	t := &k.tasks[slot]
	*t = tcb{
		magic:     taskMagic,
		id:        k.nextTaskID(),
		name:      name,
		state:     StateCreated,
		prio:      prio,
		stackSize: stack,
		prev:      noTask,
		next:      noTask,
		waitSem:   noSem,
		waitTimer: noTimer,
	}
	t.flags = flags
	return slot, errNone
}

// freeTask releases a slot. The id is kept so stale lookups can answer
// "deleted" until the slot is reused.
func (k *Kernel) freeTask(r taskRef) {
	t := &k.tasks[r]
	k.detachTask(r)
	k.cancelOwnedTimers(r)
	k.stackUsed -= t.stackSize
	if t.ctx != nil && r != k.sched.current {
		k.port.DestroyStack(t.ctx)
	}
	id := t.id
	*t = tcb{state: StateDeleted, id: id, prev: noTask, next: noTask, waitSem: noSem, waitTimer: noTimer}
}

// detachTask removes a task from whatever list or wait it is part of.
func (k *Kernel) detachTask(r taskRef) {
	t := &k.tasks[r]
	switch t.state {
	case StateReady:
		k.readyRemove(r)
	case StateBlocked:
		if t.wait == waitSem && t.waitSem != noSem {
			k.semUnlink(t.waitSem, r)
		}
	}
	if t.waitTimer != noTimer {
		k.freeTimer(t.waitTimer)
		t.waitTimer = noTimer
	}
	t.wait = waitNone
	t.waitSem = noSem
}

// findTask resolves an id. Zero means the calling task.
func (k *Kernel) findTask(id TaskID) (taskRef, Err) {
	if id == 0 {
		if k.sched.current == noTask {
			return noTask, ErrObjID
		}
		return k.sched.current, errNone
	}
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.id != id || t.state == StateFree {
			continue
		}
		if t.state == StateDeleted {
			return noTask, ErrObjDel
		}
		if t.magic != taskMagic {
			return noTask, ErrObjID
		}
		return taskRef(i), errNone
	}
	return noTask, ErrObjID
}

// TaskCreate allocates a task control block and stack. The task starts life
// in the Created state; TaskStart gives it a context.
func (k *Kernel) TaskCreate(name Name, prio uint32, stackBytes uint32, flags TaskFlags) (TaskID, error) {
	if prio < 1 || prio > 255 {
		return 0, ErrPrior
	}
	if stackBytes < MinStack {
		return 0, ErrTinyStk
	}
	if stackBytes > maxStack {
		return 0, ErrNoStk
	}

	k.enter()
	defer k.exit()

	r, e := k.allocTask(name, uint8(prio), stackBytes, flags)
	if e != errNone {
		return 0, e
	}
	return k.tasks[r].id, nil
}

// TaskStart initializes the context of a Created task and makes it ready.
// If the new task outranks the caller and preemption is enabled, it runs
// before TaskStart returns.
func (k *Kernel) TaskStart(id TaskID, mode Mode, entry Entry, args [4]uint32) error {
	if entry == nil {
		return ErrBadParam
	}

	k.enter()
	defer k.exit()

	r, e := k.findTask(id)
	if e != errNone {
		return e
	}
	t := &k.tasks[r]
	if t.state != StateCreated {
		return ErrActive
	}

	t.mode = mode & modeSettable
	t.entry = entry
	t.args = args
	ctx, err := k.port.InitStack(t.stackSize, k.trampoline(r), args)
	if err != nil {
		k.fatal("stack init failed: " + err.Error())
	}
	t.ctx = ctx
	k.makeReady(r)
	k.dispatch()
	return nil
}

// TaskRestart destroys and recreates a started task's context in place with
// fresh arguments; the task transitions to Ready regardless of what it was
// doing. Restarting the calling task does not return.
func (k *Kernel) TaskRestart(id TaskID, args [4]uint32) error {
	// No deferred exit here: restarting the caller terminates this
	// goroutine, and a pending defer would unwind the handed-over section.
	k.enter()

	r, e := k.findTask(id)
	if e != errNone {
		k.exit()
		return e
	}
	t := &k.tasks[r]
	if t.state == StateCreated {
		k.exit()
		return ErrNotActive
	}

	self := r == k.sched.current
	k.detachTask(r)
	k.cancelOwnedTimers(r)
	if !self && t.ctx != nil {
		k.port.DestroyStack(t.ctx)
	}

	t.args = args
	t.suspended = false
	t.timedOut = false
	t.waitErr = errNone
	t.pending = 0
	t.waiting = 0
	t.regs = [regCount]uint32{}
	ctx, err := k.port.InitStack(t.stackSize, k.trampoline(r), args)
	if err != nil {
		k.fatal("stack init failed: " + err.Error())
	}
	t.ctx = ctx
	t.state = StateReady
	k.readyAppend(r)

	if self {
		k.switchExit()
	}
	k.dispatch()
	k.exit()
	return nil
}

// TaskDelete frees a task. Deleting the calling task does not return.
func (k *Kernel) TaskDelete(id TaskID) error {
	k.enter()

	r, e := k.findTask(id)
	if e != errNone {
		k.exit()
		return e
	}
	if r == k.idle {
		k.exit()
		return ErrBadParam
	}

	self := r == k.sched.current
	k.freeTask(r)
	if self {
		k.switchExit()
	}
	k.exit()
	return nil
}

// TaskSuspend holds a task. Suspension of a blocked task is additive: the
// wait continues, but a satisfying wakeup leaves the task held until
// TaskResume. Suspending the caller schedules another task first.
func (k *Kernel) TaskSuspend(id TaskID) error {
	k.enter()
	defer k.exit()

	r, e := k.findTask(id)
	if e != errNone {
		return e
	}
	if r == k.idle {
		return ErrBadParam
	}
	t := &k.tasks[r]
	if t.suspended {
		return ErrSusp
	}
	t.suspended = true
	switch t.state {
	case StateReady:
		k.readyRemove(r)
		t.state = StateSuspended
	case StateRunning:
		t.state = StateSuspended
		k.dispatch()
	case StateCreated, StateBlocked:
		// Created tasks are held at start; blocked tasks are held at wakeup.
	}
	return nil
}

// TaskResume releases a held task.
func (k *Kernel) TaskResume(id TaskID) error {
	k.enter()
	defer k.exit()

	r, e := k.findTask(id)
	if e != errNone {
		return e
	}
	t := &k.tasks[r]
	if !t.suspended {
		return ErrNotSusp
	}
	t.suspended = false
	if t.state == StateSuspended {
		t.state = StateReady
		k.readyAppend(r)
		k.dispatch()
	}
	return nil
}

// TaskSetPri changes a task's priority and returns the previous one. A new
// priority of zero queries without changing. Lowering the caller below a
// ready task hands the CPU over before returning.
func (k *Kernel) TaskSetPri(id TaskID, prio uint32) (uint32, error) {
	if prio > 255 {
		return 0, ErrSetPri
	}

	k.enter()
	defer k.exit()

	r, e := k.findTask(id)
	if e != errNone {
		return 0, e
	}
	t := &k.tasks[r]
	old := uint32(t.prio)
	if prio == 0 {
		return old, nil
	}

	switch t.state {
	case StateReady:
		k.readyRemove(r)
		t.prio = uint8(prio)
		k.readyAppend(r)
	default:
		t.prio = uint8(prio)
	}
	k.dispatch()
	return old, nil
}

// TaskMode updates the calling task's mode bits under the given mask and
// returns the previous mode. Re-enabling preemption may switch immediately.
func (k *Kernel) TaskMode(mask, mode Mode) (Mode, error) {
	k.enter()
	defer k.exit()

	t := k.cur()
	old := t.mode
	t.mode = (old &^ (mask & modeSettable)) | (mode & mask & modeSettable)
	if t.mode&TSlice != 0 && old&TSlice == 0 {
		t.sliceLeft = sliceTicks
	}
	if old&TNoPreempt != 0 && t.mode&TNoPreempt == 0 {
		k.dispatch()
	}
	return old, nil
}

// TaskIdent resolves a name to a task id; a zero name means the caller.
func (k *Kernel) TaskIdent(name Name) (TaskID, error) {
	k.enter()
	defer k.exit()

	if name.zero() {
		return k.cur().id, nil
	}
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.state == StateFree || t.state == StateDeleted {
			continue
		}
		if t.name == name {
			return t.id, nil
		}
	}
	return 0, ErrObjNF
}

// TaskGetReg reads one of a task's software registers.
func (k *Kernel) TaskGetReg(id TaskID, reg uint32) (uint32, error) {
	if reg >= regCount {
		return 0, ErrRegNum
	}

	k.enter()
	defer k.exit()

	r, e := k.findTask(id)
	if e != errNone {
		return 0, e
	}
	return k.tasks[r].regs[reg], nil
}

// TaskSetReg writes one of a task's software registers.
func (k *Kernel) TaskSetReg(id TaskID, reg uint32, value uint32) error {
	if reg >= regCount {
		return ErrRegNum
	}

	k.enter()
	defer k.exit()

	r, e := k.findTask(id)
	if e != errNone {
		return e
	}
	k.tasks[r].regs[reg] = value
	return nil
}

// blockCurrent parks the calling task in the given wait kind, arming a
// timeout when requested, and returns the wait outcome once woken.
func (k *Kernel) blockCurrent(kind waitKind, timeout uint32) Err {
	r := k.sched.current
	t := &k.tasks[r]
	t.wait = kind
	t.timedOut = false
	t.waitErr = errNone
	if timeout > 0 {
		tm, e := k.armTimer(tmOneShot, actTimeout, k.tickCount+uint64(timeout), 0, r, 0)
		if e != errNone {
			t.wait = waitNone
			if t.waitSem != noSem {
				k.semUnlink(t.waitSem, r)
			}
			return e
		}
		t.waitTimer = tm
	}
	t.state = StateBlocked
	k.dispatch()

	// Woken: by a satisfied wait, a deleted object, or the timeout.
	t.wait = waitNone
	t.waitSem = noSem
	if t.waitTimer != noTimer {
		k.freeTimer(t.waitTimer)
		t.waitTimer = noTimer
	}
	if t.timedOut {
		return ErrTimeout
	}
	return t.waitErr
}
