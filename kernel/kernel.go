// Package kernel implements a fixed-priority preemptive microkernel: a task
// table with an O(1) ready set, a tick-driven timer service, and the IPC
// primitives (counting semaphores, event flags, fixed-size message queues)
// that interlock with the scheduler.
//
// All kernel state lives in statically sized arenas inside a single Kernel
// value; nothing on the hot path allocates. Mutation happens only inside the
// port-supplied interrupt-masking critical section, which is nestable: the
// hardware mask is touched only by the outermost enter/exit pair.
package kernel

import (
	"ember/port"
)

// Entry is a task body; the four argument words are delivered positionally.
type Entry = port.Entry

// Object identifiers. Ids are dense small integers generated per pool,
// monotonically increasing and never zero; a stale id fails validation
// rather than aliasing a reused slot.
type (
	TaskID  uint32
	SemID   uint32
	QueueID uint32
	TimerID uint32
)

// message is one fixed-size queue message: exactly four 32-bit words.
type message [4]uint32

// extent is a freed run of arena slots available for reuse.
type extent struct {
	start uint32
	count uint32
}

// Kernel owns every subsystem arena. Bring-up is New followed by Init and
// Boot; after Boot the calling context is the running root task and every
// public call assumes task context except Tick.
type Kernel struct {
	_ [0]func() // prevent accidental copying.

	port   port.Port
	depth  int
	cookie port.Cookie

	// task pool and scheduler
	tasks     [MaxTasks]tcb
	nextTID   uint32
	stackUsed uint32
	sched     scheduler
	idle      taskRef

	// timer pool and time base
	timers      [MaxTimers]tmcb
	timerFree   timerRef
	timerActive timerRef
	nextTMID    uint32
	tickCount   uint64
	clock       systime

	// semaphore pool
	sems     [MaxSemaphores]scb
	nextSMID uint32

	// queue pool and message arena
	queues    [MaxQueues]qcb
	nextQID   uint32
	arena     [MaxBuffers]message
	arenaNext uint32
	arenaFree [MaxQueues]extent
	arenaExts int

	booted   bool
	panicked bool
	panicFn  func(PanicInfo)
}

// New binds a kernel to its port. Init must run before any other call.
func New(p port.Port) *Kernel {
	return &Kernel{port: p}
}

// Init brings the subsystems up in dependency order: time base, timer pool,
// task pool and scheduler, semaphores, then queues. It is a one-time sweep.
func (k *Kernel) Init() error {
	k.initClock()
	k.initTimers()
	k.initSched()
	k.initSems()
	k.initQueues()
	return nil
}

// Boot adopts the calling context as the root task at the given priority and
// starts the idle task. It must be called exactly once, after Init.
func (k *Kernel) Boot(name Name, prio uint32) (TaskID, error) {
	if k.booted {
		return 0, ErrActive
	}
	if prio < 1 || prio > 255 {
		return 0, ErrPrior
	}

	k.enter()
	defer k.exit()

	root, e := k.allocTask(name, uint8(prio), MinStack, 0)
	if e != errNone {
		return 0, e
	}
	rt := &k.tasks[root]
	rt.ctx = k.port.Bootstrap()
	rt.state = StateRunning
	k.sched.current = root

	if e := k.startIdle(); e != errNone {
		return 0, e
	}

	k.booted = true
	return rt.id, nil
}

// startIdle creates the always-ready idle task at the lowest priority. Its
// body hands the CPU to the port, which on the host runs the clock toward
// the next alarm.
func (k *Kernel) startIdle() Err {
	r, e := k.allocTask(MakeName("IDLE"), 255, MinStack, 0)
	if e != errNone {
		return e
	}
	t := &k.tasks[r]
	t.entry = func([4]uint32) {
		for {
			k.port.Idle()
		}
	}
	ctx, err := k.port.InitStack(MinStack, k.trampoline(r), t.args)
	if err != nil {
		k.fatal("idle stack init failed: " + err.Error())
	}
	t.ctx = ctx
	t.state = StateReady
	k.readyAppend(r)
	k.idle = r
	return errNone
}

// enter and exit bracket the kernel critical section. Depth is tracked here;
// the port sees only the outermost transitions.
func (k *Kernel) enter() {
	if k.depth == 0 {
		k.cookie = k.port.InterruptsDisable()
	}
	k.depth++
}

func (k *Kernel) exit() {
	k.depth--
	if k.depth == 0 {
		k.port.InterruptsRestore(k.cookie)
	} else if k.depth < 0 {
		k.fatal("critical section underflow")
	}
}

// cur returns the running task's pool slot. Valid only inside the critical
// section after Boot.
func (k *Kernel) cur() *tcb {
	if k.sched.current == noTask {
		k.fatal("no current task")
	}
	return &k.tasks[k.sched.current]
}

// fatal reports an unrecoverable integrity violation. Port failures and
// broken pool invariants land here.
func (k *Kernel) fatal(msg string) {
	panic("kernel: " + msg)
}
