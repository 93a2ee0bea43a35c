// Package port defines the capability set a target integration must supply
// to the kernel: interrupt masking, a monotonic tick source, an alarm, and
// saved-context management. The kernel owns all task identity; the port only
// ever sees opaque contexts it created itself.
package port

// Cookie is the saved interrupt state returned by InterruptsDisable and
// consumed by the matching InterruptsRestore.
type Cookie uint32

// Context is an opaque saved execution context. It is created by InitStack
// (or Bootstrap) and owned by the port; the kernel stores and passes it back
// without inspecting it.
type Context any

// Entry is a task body. The four 32-bit argument words are passed
// positionally, exactly as the creator supplied them.
type Entry func(args [4]uint32)

// Port is the system boundary the kernel is written against. One
// implementation exists per target; a host-simulation port and a real-MCU
// port are both typical. Failure in any port call is fatal.
type Port interface {
	// InterruptsDisable enters the hardware critical section and returns the
	// prior state. Nesting depth is tracked by the kernel; the port sees only
	// the outermost enter/exit pair.
	InterruptsDisable() Cookie

	// InterruptsRestore leaves the hardware critical section, re-enabling
	// interrupts if they were enabled at the matching InterruptsDisable.
	InterruptsRestore(Cookie)

	// NowTicks returns the monotonic tick count since boot. It never moves
	// backward.
	NowTicks() uint64

	// SetNextAlarm requests a Tick delivery no later than the given absolute
	// tick. A tick already in the past must cause an imminent delivery.
	SetNextAlarm(tick uint64)

	// ClearAlarm cancels any pending alarm request.
	ClearAlarm()

	// InitStack prepares an initial context of the given stack size such
	// that the first switch into it invokes entry(args).
	InitStack(stackBytes uint32, entry Entry, args [4]uint32) (Context, error)

	// Bootstrap adopts the calling execution context as a task context, so
	// the thread of control that brings the kernel up can itself be
	// scheduled.
	Bootstrap() Context

	// Switch suspends from and resumes to. A nil from means the calling
	// context is being destroyed and must never be resumed. Called with the
	// critical section held; the port hands the section over to the resumed
	// context.
	Switch(from, to Context)

	// DestroyStack releases a context that is not current and will never be
	// switched to again.
	DestroyStack(Context)

	// Idle is invoked repeatedly by the idle task when no other task is
	// ready. The port may sleep, advance the clock toward the next alarm, or
	// wait for an interrupt.
	Idle()
}
