package kernel

// Snapshot types for diagnostics. They copy state out under the critical
// section; nothing here exposes live kernel internals.

type TaskInfo struct {
	ID        TaskID
	Name      Name
	State     TaskState
	Suspended bool
	Priority  uint8
	Mode      Mode
	Stack     uint32
	Pending   uint32
}

type SemInfo struct {
	ID       SemID
	Name     Name
	Count    uint32
	Waiters  uint32
	Flags    SemFlags
	Internal bool
}

type QueueInfo struct {
	ID       QueueID
	Name     Name
	Capacity uint32
	Messages uint32
	Flags    QFlags
}

type TimerInfo struct {
	ID     TimerID
	Kind   string
	Expire uint64
	Period uint64
	Task   TaskID
}

type Stats struct {
	Ticks           uint64
	ContextSwitches uint64
	TasksActive     int
	StackUsed       uint32
}

// Tasks returns the active task table.
func (k *Kernel) Tasks() []TaskInfo {
	k.enter()
	defer k.exit()

	var out []TaskInfo
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.state == StateFree || t.state == StateDeleted {
			continue
		}
		out = append(out, TaskInfo{
			ID:        t.id,
			Name:      t.name,
			State:     t.state,
			Suspended: t.suspended,
			Priority:  t.prio,
			Mode:      t.mode,
			Stack:     t.stackSize,
			Pending:   t.pending,
		})
	}
	return out
}

// Semaphores returns the active semaphores, including the internal ones
// that synchronize message queues.
func (k *Kernel) Semaphores() []SemInfo {
	k.enter()
	defer k.exit()

	var out []SemInfo
	for i := range k.sems {
		s := &k.sems[i]
		if s.state != objActive {
			continue
		}
		out = append(out, SemInfo{
			ID:       s.id,
			Name:     s.name,
			Count:    s.count,
			Waiters:  s.waiters,
			Flags:    s.flags,
			Internal: s.internal,
		})
	}
	return out
}

// Queues returns the active message queues.
func (k *Kernel) Queues() []QueueInfo {
	k.enter()
	defer k.exit()

	var out []QueueInfo
	for i := range k.queues {
		q := &k.queues[i]
		if q.state != objActive {
			continue
		}
		out = append(out, QueueInfo{
			ID:       q.id,
			Name:     q.name,
			Capacity: q.capacity,
			Messages: q.messages(),
			Flags:    q.flags,
		})
	}
	return out
}

// Timers returns the armed timers in firing order.
func (k *Kernel) Timers() []TimerInfo {
	k.enter()
	defer k.exit()

	var out []TimerInfo
	for r := k.timerActive; r != noTimer; r = k.timers[r].next {
		tm := &k.timers[r]
		out = append(out, TimerInfo{
			ID:     tm.id,
			Kind:   tm.kind.String(),
			Expire: tm.expire,
			Period: tm.period,
			Task:   tm.taskID,
		})
	}
	return out
}

// KernelStats returns scheduler and time-base counters.
func (k *Kernel) KernelStats() Stats {
	k.enter()
	defer k.exit()

	n := 0
	for i := range k.tasks {
		if s := k.tasks[i].state; s != StateFree && s != StateDeleted {
			n++
		}
	}
	return Stats{
		Ticks:           k.tickCount,
		ContextSwitches: k.sched.switches,
		TasksActive:     n,
		StackUsed:       k.stackUsed,
	}
}
