package kernel

// timerRef is an index into the timer pool.
type timerRef int16

const noTimer timerRef = -1

const timerMagic = 0x544D

type timerKind uint8

const (
	tmOneShot timerKind = iota + 1
	tmPeriodic
	tmAbsolute
)

func (t timerKind) String() string {
	switch t {
	case tmOneShot:
		return "oneshot"
	case tmPeriodic:
		return "periodic"
	case tmAbsolute:
		return "absolute"
	default:
		return "invalid"
	}
}

// tmAction selects what firing does.
type tmAction uint8

const (
	actEvents  tmAction = iota + 1 // send events to the owning task
	actWake                        // resume the sleeping owner
	actTimeout                     // cut short a blocking call
)

// tmcb is one timer control block. Armed timers sit on a single active list
// sorted non-decreasing by expiry; equal expiries keep insertion order.
type tmcb struct {
	magic  uint16
	id     TimerID
	active bool
	kind   timerKind
	action tmAction

	expire uint64
	period uint64

	task   taskRef
	taskID TaskID
	events uint32

	prev, next timerRef
}

func (k *Kernel) initTimers() {
	for i := range k.timers {
		k.timers[i] = tmcb{prev: noTimer, next: noTimer}
		if i+1 < len(k.timers) {
			k.timers[i].next = timerRef(i + 1)
		}
	}
	k.timerFree = 0
	k.timerActive = noTimer
}

func (k *Kernel) nextTimerID() TimerID {
	k.nextTMID++
	if k.nextTMID == 0 {
		k.nextTMID = 1
	}
	return TimerID(k.nextTMID)
}

// armTimer takes a block from the free list, fills it, and inserts it into
// the active list in expiry order, stable across equal keys.
func (k *Kernel) armTimer(kind timerKind, action tmAction, expire, period uint64, task taskRef, events uint32) (timerRef, Err) {
	r := k.timerFree
	if r == noTimer {
		return noTimer, ErrNoTimers
	}
	k.timerFree = k.timers[r].next

	tm := &k.timers[r]
	*tm = tmcb{
		magic:  timerMagic,
		id:     k.nextTimerID(),
		active: true,
		kind:   kind,
		action: action,
		expire: expire,
		period: period,
		task:   task,
		taskID: k.tasks[task].id,
		events: events,
		prev:   noTimer,
		next:   noTimer,
	}
	k.insertActive(r)
	k.programAlarm()
	return r, errNone
}

// insertActive links a timer after every entry with an expiry not greater
// than its own.
func (k *Kernel) insertActive(r timerRef) {
	tm := &k.timers[r]
	prev := noTimer
	at := k.timerActive
	for at != noTimer && k.timers[at].expire <= tm.expire {
		prev = at
		at = k.timers[at].next
	}
	tm.prev = prev
	tm.next = at
	if prev == noTimer {
		k.timerActive = r
	} else {
		k.timers[prev].next = r
	}
	if at != noTimer {
		k.timers[at].prev = r
	}
}

// detachActive unlinks an armed timer from the active list.
func (k *Kernel) detachActive(r timerRef) {
	tm := &k.timers[r]
	if tm.prev == noTimer {
		k.timerActive = tm.next
	} else {
		k.timers[tm.prev].next = tm.next
	}
	if tm.next != noTimer {
		k.timers[tm.next].prev = tm.prev
	}
	tm.prev, tm.next = noTimer, noTimer
}

// freeTimer cancels a timer and returns its block to the free list.
func (k *Kernel) freeTimer(r timerRef) {
	tm := &k.timers[r]
	if !tm.active {
		return
	}
	k.detachActive(r)
	*tm = tmcb{prev: noTimer, next: k.timerFree}
	k.timerFree = r
	k.programAlarm()
}

// cancelOwnedTimers drops every armed timer targeting a dying task.
func (k *Kernel) cancelOwnedTimers(r taskRef) {
	for i := range k.timers {
		if k.timers[i].active && k.timers[i].task == r {
			k.freeTimer(timerRef(i))
		}
	}
}

// programAlarm points the port alarm at the head of the active list.
func (k *Kernel) programAlarm() {
	if k.timerActive == noTimer {
		k.port.ClearAlarm()
		return
	}
	k.port.SetNextAlarm(k.timers[k.timerActive].expire)
}

// fireTimer performs one expired timer's action. The target task is
// revalidated by id; a fire against a reused or freed slot is dropped.
func (k *Kernel) fireTimer(r timerRef) {
	tm := &k.timers[r]
	t := &k.tasks[tm.task]
	if t.id != tm.taskID || t.state == StateFree || t.state == StateDeleted {
		return
	}
	switch tm.action {
	case actEvents:
		k.evPost(tm.task, tm.events)
	case actWake:
		if t.suspended {
			t.suspended = false
			if t.state == StateSuspended {
				t.state = StateReady
				k.readyAppend(tm.task)
			}
		}
	case actTimeout:
		if t.waitTimer != r {
			return
		}
		// The expired block is gone either way; a wait already satisfied
		// must not see a stale reference once the block is reused.
		t.waitTimer = noTimer
		if t.state == StateBlocked {
			if t.wait == waitSem && t.waitSem != noSem {
				k.sems[t.waitSem].timeouts++
				k.semUnlink(t.waitSem, tm.task)
			}
			t.timedOut = true
			k.makeReady(tm.task)
		}
	}
}

// Tick drives the pipeline: the time base advances, every timer at or past
// the new instant fires in list order, periodic timers rearm, the alarm is
// reprogrammed, and a time-slice or wakeup preemption takes effect before
// returning.
func (k *Kernel) Tick() {
	k.enter()
	defer k.exit()

	k.tickCount++
	k.clockAdvance()

	for k.timerActive != noTimer && k.timers[k.timerActive].expire <= k.tickCount {
		r := k.timerActive
		k.detachActive(r)
		tm := &k.timers[r]
		if tm.kind == tmPeriodic {
			tm.expire += tm.period
			k.insertActive(r)
			k.fireTimer(r)
			continue
		}
		k.fireTimer(r)
		*tm = tmcb{prev: noTimer, next: k.timerFree}
		k.timerFree = r
	}
	k.programAlarm()

	if k.booted {
		cur := k.cur()
		if k.sched.current != k.idle && cur.mode&TSlice != 0 && cur.state == StateRunning {
			if cur.sliceLeft > 0 {
				cur.sliceLeft--
			}
			if cur.sliceLeft == 0 {
				cur.sliceLeft = sliceTicks
				k.rotate()
				return
			}
		}
		k.dispatch()
	}
}

// TickCount returns the number of ticks since boot.
func (k *Kernel) TickCount() uint64 {
	k.enter()
	defer k.exit()
	return k.tickCount
}

// TimerEvAfter arms a one-shot timer that sends events to the calling task
// after the given number of ticks.
func (k *Kernel) TimerEvAfter(ticks uint32, events uint32) (TimerID, error) {
	if ticks == 0 {
		return 0, ErrIllTicks
	}

	k.enter()
	defer k.exit()

	r, e := k.armTimer(tmOneShot, actEvents, k.tickCount+uint64(ticks), 0, k.sched.current, events)
	if e != errNone {
		return 0, e
	}
	return k.timers[r].id, nil
}

// TimerEvEvery arms a periodic timer that sends events to the calling task
// every interval.
func (k *Kernel) TimerEvEvery(ticks uint32, events uint32) (TimerID, error) {
	if ticks == 0 {
		return 0, ErrIllTicks
	}

	k.enter()
	defer k.exit()

	r, e := k.armTimer(tmPeriodic, actEvents, k.tickCount+uint64(ticks), uint64(ticks), k.sched.current, events)
	if e != errNone {
		return 0, e
	}
	return k.timers[r].id, nil
}

// TimerEvWhen arms a timer that sends events when the wall clock reaches the
// given date, time of day, and sub-second tick. An instant already passed
// fires at the next Tick.
func (k *Kernel) TimerEvWhen(date, tod, ticks uint32, events uint32) (TimerID, error) {
	k.enter()
	defer k.exit()

	expire, e := k.clockToTicks(date, tod, ticks)
	if e != errNone {
		return 0, e
	}
	r, e := k.armTimer(tmAbsolute, actEvents, expire, 0, k.sched.current, events)
	if e != errNone {
		return 0, e
	}
	return k.timers[r].id, nil
}

// WakeAfter puts the calling task to sleep for the given number of ticks.
func (k *Kernel) WakeAfter(ticks uint32) error {
	if ticks == 0 {
		return ErrIllTicks
	}

	k.enter()
	defer k.exit()

	return errOf(k.sleepUntil(k.tickCount + uint64(ticks)))
}

// WakeWhen puts the calling task to sleep until the wall clock reaches the
// given instant.
func (k *Kernel) WakeWhen(date, tod, ticks uint32) error {
	k.enter()
	defer k.exit()

	expire, e := k.clockToTicks(date, tod, ticks)
	if e != errNone {
		return errOf(e)
	}
	return errOf(k.sleepUntil(expire))
}

// sleepUntil arms a wake timer for the caller and holds it suspended until
// the timer fires.
func (k *Kernel) sleepUntil(expire uint64) Err {
	r := k.sched.current
	t := &k.tasks[r]
	if _, e := k.armTimer(tmOneShot, actWake, expire, 0, r, 0); e != errNone {
		return e
	}
	t.suspended = true
	t.state = StateSuspended
	k.dispatch()
	return errNone
}

// TimerCancel disarms a timer. Cancelling the list head reprograms the
// alarm for the new head.
func (k *Kernel) TimerCancel(id TimerID) error {
	k.enter()
	defer k.exit()

	for i := range k.timers {
		tm := &k.timers[i]
		if tm.active && tm.id == id {
			if tm.magic != timerMagic {
				return ErrBadTmid
			}
			k.freeTimer(timerRef(i))
			return nil
		}
	}
	return ErrBadTmid
}
