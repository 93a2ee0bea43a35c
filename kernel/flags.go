package kernel

// Static configuration. These are compile-time constants in the embedded
// tradition; the host build uses the same numbers so behavior matches the
// target.
const (
	MaxTasks      = 64
	MaxSemaphores = 128
	MaxQueues     = 32
	MaxBuffers    = 2048
	MaxTimers     = 64

	MinStack   = 256
	maxStack   = 4000
	stackArena = MaxTasks * 2000

	// TicksPerSec is the default tick rate of the time base.
	TicksPerSec = 100

	// sliceTicks is the round-robin quantum for tasks running with TSlice.
	sliceTicks = 10

	numPriorities = 256
	regCount      = 7
)

// Mode holds the per-task mode bits changed with TaskMode. The encodings
// are fixed for compatibility.
type Mode uint32

const (
	// TNoPreempt disables preemption while set; the task yields the CPU
	// only by blocking or explicitly.
	TNoPreempt Mode = 0x0001
	// TSlice enables round-robin time slicing within the task's priority.
	TSlice Mode = 0x0002
	// TNoASR masks asynchronous signal delivery. Carried for mode-word
	// compatibility; the asynchronous signal path is an external layer.
	TNoASR Mode = 0x0004
	// TNoISR marks the task as running with interrupts masked.
	TNoISR Mode = 0x0100

	modeSettable = TNoPreempt | TSlice | TNoASR | TNoISR
)

// TaskFlags are TaskCreate options.
type TaskFlags uint32

const (
	TGlobal TaskFlags = 0x0001 // multi-node visibility; accepted, single-node no-op
	TFPU    TaskFlags = 0x0002 // task uses the FPU; context handling is the port's concern
)

// SemFlags select semaphore wait-queue behavior.
type SemFlags uint32

const (
	SmFIFO   SemFlags = 0x0000
	SmGlobal SemFlags = 0x0001
	SmPrior  SemFlags = 0x0002 // wait queue ordered by task priority
)

// QFlags select message queue behavior.
type QFlags uint32

const (
	QFIFO   QFlags = 0x0000
	QGlobal QFlags = 0x0001
	QPrior  QFlags = 0x0002 // waiters released in priority order
)

// WaitFlags modify blocking calls.
type WaitFlags uint32

const (
	Wait   WaitFlags = 0x0000
	NoWait WaitFlags = 0x0001
)

// EvFlags modify EvReceive.
type EvFlags uint32

const (
	EvAll    EvFlags = 0x0000 // all requested bits must be pending
	EvNoWait EvFlags = 0x0001
	EvAny    EvFlags = 0x0002 // any one requested bit satisfies
)

// NoTimeout makes a blocking call wait indefinitely.
const NoTimeout uint32 = 0
