//go:build !tinygo

// Package hostport is a cooperative host-simulation implementation of the
// port capability set. Each task context is a goroutine; a strict baton
// hand-off guarantees at most one context executes at any instant, so kernel
// state sees the same single-core discipline it would on target hardware.
package hostport

import (
	"runtime"
	"sync"

	"ember/port"
)

// taskCtx is one saved execution context.
type taskCtx struct {
	p       *Port
	entry   port.Entry
	args    [4]uint32
	resume  chan struct{}
	started bool
	dead    bool
}

// Port is a cooperative host port. The mutex stands in for the interrupt
// mask: holding it is "interrupts disabled".
type Port struct {
	_ [0]func() // prevent accidental copying.

	mu sync.Mutex

	now      uint64
	alarm    uint64
	alarmSet bool

	tick func()

	wall bool
	ws   wallState
}

// New returns a port with a manually advanced clock: time moves only when
// the idle task runs the clock toward the next alarm. This is the mode unit
// tests and deterministic simulations use.
func New() *Port {
	return &Port{}
}

// NewWallClock returns a port whose idle loop derives ticks from the host
// monotonic clock at the given rate.
func NewWallClock(hz int) *Port {
	p := &Port{wall: true}
	p.ws.tickDur = tickDuration(hz)
	return p
}

// OnTick installs the kernel tick entry point. The port invokes it from the
// idle task's context once for every tick the idle loop advances the clock.
func (p *Port) OnTick(fn func()) {
	p.mu.Lock()
	p.tick = fn
	p.mu.Unlock()
}

func (p *Port) InterruptsDisable() port.Cookie {
	p.mu.Lock()
	return 0
}

func (p *Port) InterruptsRestore(port.Cookie) {
	p.mu.Unlock()
}

func (p *Port) NowTicks() uint64 {
	return p.now
}

func (p *Port) SetNextAlarm(tick uint64) {
	p.alarm = tick
	p.alarmSet = true
}

func (p *Port) ClearAlarm() {
	p.alarmSet = false
}

// InitStack prepares a context whose first resume runs entry(args). The
// goroutine is spawned lazily on the first switch into the context; the
// stack size is advisory on the host.
func (p *Port) InitStack(stackBytes uint32, entry port.Entry, args [4]uint32) (port.Context, error) {
	_ = stackBytes
	return &taskCtx{
		p:      p,
		entry:  entry,
		args:   args,
		resume: make(chan struct{}, 1),
	}, nil
}

// Bootstrap adopts the calling goroutine as an already-running context.
func (p *Port) Bootstrap() port.Context {
	return &taskCtx{
		p:       p,
		resume:  make(chan struct{}, 1),
		started: true,
	}
}

// Switch hands the baton from one context to another. Entered with the
// critical section held; the resumed context continues inside its own
// Switch call (or its entry trampoline) holding the section. A nil from
// terminates the calling goroutine.
func (p *Port) Switch(from, to port.Context) {
	t := to.(*taskCtx)
	if t.dead {
		panic("hostport: switch to destroyed context")
	}
	if !t.started {
		t.started = true
		go t.run()
	}
	t.resume <- struct{}{}

	if from == nil {
		p.mu.Unlock()
		runtime.Goexit()
	}

	f := from.(*taskCtx)
	p.mu.Unlock()
	<-f.resume
	p.mu.Lock()
}

// DestroyStack marks a context dead so it is never resumed. A goroutine
// already parked in the context stays parked; its stack is the price of
// simulating stack reclamation on a host. A real port frees the memory.
func (p *Port) DestroyStack(c port.Context) {
	c.(*taskCtx).dead = true
}

func (t *taskCtx) run() {
	<-t.resume
	t.p.mu.Lock()
	t.entry(t.args)
}
