package kernel

// semRef is an index into the semaphore pool.
type semRef int16

const noSem semRef = -1

const semMagic = 0x534D

// SemMaxCount bounds the counter of every semaphore.
const SemMaxCount = 0x7FFFFFFF

// scb is one counting semaphore. When the count is positive the wait queue
// is empty; waiters are linked through their TCB link fields in FIFO or
// priority order.
type scb struct {
	magic uint16
	id    SemID
	name  Name
	state objState
	flags SemFlags

	count    uint32
	maxCount uint32

	waitHead, waitTail taskRef
	waiters            uint32

	// owner queue, when this semaphore synchronizes a message queue
	internal bool

	waits, signals, timeouts uint32
}

// objState is the shared pool lifecycle for non-task control blocks.
type objState uint8

const (
	objFree objState = iota
	objActive
	objDeleted
)

func (k *Kernel) initSems() {
	for i := range k.sems {
		k.sems[i] = scb{waitHead: noTask, waitTail: noTask}
	}
}

func (k *Kernel) nextSemID() SemID {
	k.nextSMID++
	if k.nextSMID == 0 {
		k.nextSMID = 1
	}
	return SemID(k.nextSMID)
}

func (k *Kernel) allocSem(name Name, count uint32, flags SemFlags, internal bool) (semRef, Err) {
	slot := noSem
	for i := range k.sems {
		if k.sems[i].state == objFree {
			slot = semRef(i)
			break
		}
		if k.sems[i].state == objDeleted && slot == noSem {
			slot = semRef(i)
		}
	}
	if slot == noSem {
		return noSem, ErrNoSCB
	}
	k.sems[slot] = scb{
		magic:    semMagic,
		id:       k.nextSemID(),
		name:     name,
		state:    objActive,
		flags:    flags,
		count:    count,
		maxCount: SemMaxCount,
		waitHead: noTask,
		waitTail: noTask,
		internal: internal,
	}
	return slot, errNone
}

func (k *Kernel) findSem(id SemID) (semRef, Err) {
	for i := range k.sems {
		s := &k.sems[i]
		if s.id != SemID(id) || s.state == objFree {
			continue
		}
		if s.state == objDeleted {
			return noSem, ErrObjDel
		}
		if s.magic != semMagic {
			return noSem, ErrObjID
		}
		return semRef(i), errNone
	}
	return noSem, ErrObjID
}

// semEnqueue inserts the calling task into a wait queue: at the tail for
// FIFO semaphores, before the first lower-priority waiter for priority
// semaphores (ties keep arrival order).
func (k *Kernel) semEnqueue(sr semRef, r taskRef) {
	s := &k.sems[sr]
	t := &k.tasks[r]
	t.waitSem = sr
	s.waiters++

	if s.flags&SmPrior == 0 || s.waitTail == noTask {
		t.prev = s.waitTail
		t.next = noTask
		if s.waitTail == noTask {
			s.waitHead = r
		} else {
			k.tasks[s.waitTail].next = r
		}
		s.waitTail = r
		return
	}

	at := s.waitHead
	for at != noTask && k.tasks[at].prio <= t.prio {
		at = k.tasks[at].next
	}
	if at == noTask {
		t.prev = s.waitTail
		t.next = noTask
		k.tasks[s.waitTail].next = r
		s.waitTail = r
		return
	}
	t.next = at
	t.prev = k.tasks[at].prev
	if t.prev == noTask {
		s.waitHead = r
	} else {
		k.tasks[t.prev].next = r
	}
	k.tasks[at].prev = r
}

// semUnlink removes a task from a wait queue, wherever it sits.
func (k *Kernel) semUnlink(sr semRef, r taskRef) {
	s := &k.sems[sr]
	t := &k.tasks[r]
	if t.prev == noTask {
		s.waitHead = t.next
	} else {
		k.tasks[t.prev].next = t.next
	}
	if t.next == noTask {
		s.waitTail = t.prev
	} else {
		k.tasks[t.next].prev = t.prev
	}
	t.prev, t.next = noTask, noTask
	t.waitSem = noSem
	s.waiters--
}

// semTake is the P operation body, shared with the queue service.
func (k *Kernel) semTake(sr semRef, nowait bool, timeout uint32) Err {
	s := &k.sems[sr]
	s.waits++
	if s.count > 0 {
		s.count--
		return errNone
	}
	if nowait {
		return ErrNoSem
	}

	k.semEnqueue(sr, k.sched.current)
	return k.blockCurrent(waitSem, timeout)
}

// semGive is the V operation body. A waiter gets a direct handoff: it is
// detached and readied without the count ever rising.
func (k *Kernel) semGive(sr semRef) Err {
	s := &k.sems[sr]
	s.signals++
	if s.waitHead != noTask {
		w := s.waitHead
		k.semUnlink(sr, w)
		k.tasks[w].waitErr = errNone
		k.makeReady(w)
		return errNone
	}
	if s.count >= s.maxCount {
		return ErrSemFull
	}
	s.count++
	return errNone
}

// semKill wakes every waiter with the given error and retires the block.
func (k *Kernel) semKill(sr semRef, e Err) {
	s := &k.sems[sr]
	for s.waitHead != noTask {
		w := s.waitHead
		k.semUnlink(sr, w)
		k.tasks[w].waitErr = e
		k.makeReady(w)
	}
	id := s.id
	*s = scb{state: objDeleted, id: id, waitHead: noTask, waitTail: noTask}
}

// SemCreate allocates a counting semaphore with the given initial count.
// SmPrior selects a priority-ordered wait queue; the default is FIFO.
func (k *Kernel) SemCreate(name Name, count uint32, flags SemFlags) (SemID, error) {
	if count > SemMaxCount {
		return 0, ErrBadParam
	}

	k.enter()
	defer k.exit()

	r, e := k.allocSem(name, count, flags, false)
	if e != errNone {
		return 0, e
	}
	return k.sems[r].id, nil
}

// SemDelete destroys a semaphore. Every blocked waiter resumes with a
// "semaphore deleted" failure from its SemP.
func (k *Kernel) SemDelete(id SemID) error {
	k.enter()
	defer k.exit()

	r, e := k.findSem(id)
	if e != errNone {
		return e
	}
	if k.sems[r].internal {
		return ErrObjID
	}
	k.semKill(r, ErrSemKilled)
	k.dispatch()
	return nil
}

// SemIdent resolves a name to a semaphore id.
func (k *Kernel) SemIdent(name Name) (SemID, error) {
	k.enter()
	defer k.exit()

	for i := range k.sems {
		s := &k.sems[i]
		if s.state == objActive && !s.internal && s.name == name {
			return s.id, nil
		}
	}
	return 0, ErrObjNF
}

// SemP acquires the semaphore, blocking until a unit is available. NoWait
// turns an empty semaphore into an immediate failure; a positive timeout
// bounds the wait in ticks.
func (k *Kernel) SemP(id SemID, flags WaitFlags, timeout uint32) error {
	k.enter()
	defer k.exit()

	r, e := k.findSem(id)
	if e != errNone {
		return e
	}
	return errOf(k.semTake(r, flags&NoWait != 0, timeout))
}

// SemV releases one unit, handing it directly to the longest-eligible
// waiter if one exists.
func (k *Kernel) SemV(id SemID) error {
	k.enter()
	defer k.exit()

	r, e := k.findSem(id)
	if e != errNone {
		return e
	}
	e = k.semGive(r)
	k.dispatch()
	return errOf(e)
}
