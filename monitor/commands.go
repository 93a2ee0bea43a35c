package monitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"ember/internal/buildinfo"
	"ember/kernel"
)

// commandTable declares the console verbs. Order here is help order.
func commandTable() []command {
	return []command{
		{name: "help", aliases: []string{"?"}, desc: "list commands", run: cmdHelp},
		{name: "ver", desc: "build identification", run: cmdVer},
		{name: "ps", aliases: []string{"tasks"}, desc: "task table", run: cmdPs},
		{name: "timers", aliases: []string{"ts"}, desc: "armed timers", run: cmdTimers},
		{name: "sems", desc: "semaphores", run: cmdSems},
		{name: "queues", aliases: []string{"qs"}, desc: "message queues", run: cmdQueues},
		{name: "stats", desc: "kernel counters", run: cmdStats},
		{name: "uptime", desc: "time since boot", run: cmdUptime},
		{name: "date", usage: "date [yyyy-mm-dd hh:mm:ss]", desc: "get or set wall clock", run: cmdDate},
		{name: "tick", usage: "tick [n]", desc: "drive the tick pipeline by hand", run: cmdTick},
		{name: "send", usage: "send <tid> <hexmask>", desc: "post events to a task", run: cmdSend},
		{name: "suspend", usage: "suspend <tid>", desc: "hold a task", run: cmdSuspend},
		{name: "resume", usage: "resume <tid>", desc: "release a task", run: cmdResume},
		{name: "exit", aliases: []string{"quit"}, desc: "stop the monitor", run: cmdExit},
	}
}

func cmdHelp(s *Service, _ []string) error {
	for i := range s.table {
		c := &s.table[i]
		u := c.usage
		if u == "" {
			u = c.name
		}
		fmt.Fprintf(s.w, "  %-28s %s\n", u, c.desc)
	}
	return nil
}

func cmdVer(s *Service, _ []string) error {
	fmt.Fprintln(s.w, buildinfo.Banner())
	return nil
}

func cmdPs(s *Service, _ []string) error {
	fmt.Fprintf(s.w, "%-4s %-8s %-4s %-10s %-6s %s\n", "ID", "NAME", "PRI", "STATE", "MODE", "STACK")
	for _, t := range s.k.Tasks() {
		state := t.State.String()
		if t.Suspended {
			state = "suspended"
		}
		fmt.Fprintf(s.w, "%-4d %-8s %-4d %-10s %04x   %s\n",
			t.ID, t.Name, t.Priority, state, uint32(t.Mode), humanize.IBytes(uint64(t.Stack)))
	}
	return nil
}

func cmdTimers(s *Service, _ []string) error {
	now := s.k.TickCount()
	fmt.Fprintf(s.w, "%-4s %-9s %-10s %-8s %s\n", "ID", "KIND", "EXPIRE", "PERIOD", "TASK")
	for _, tm := range s.k.Timers() {
		fmt.Fprintf(s.w, "%-4d %-9s +%-9d %-8d %d\n", tm.ID, tm.Kind, tm.Expire-now, tm.Period, tm.Task)
	}
	return nil
}

func cmdSems(s *Service, _ []string) error {
	fmt.Fprintf(s.w, "%-4s %-8s %-8s %-8s %s\n", "ID", "NAME", "COUNT", "WAITERS", "ORDER")
	for _, sm := range s.k.Semaphores() {
		order := "fifo"
		if sm.Flags&kernel.SmPrior != 0 {
			order = "prior"
		}
		name := sm.Name.String()
		if sm.Internal {
			name = "(" + name + ")"
		}
		fmt.Fprintf(s.w, "%-4d %-8s %-8d %-8d %s\n", sm.ID, name, sm.Count, sm.Waiters, order)
	}
	return nil
}

func cmdQueues(s *Service, _ []string) error {
	fmt.Fprintf(s.w, "%-4s %-8s %-9s %-9s %s\n", "ID", "NAME", "CAPACITY", "MESSAGES", "ORDER")
	for _, q := range s.k.Queues() {
		order := "fifo"
		if q.Flags&kernel.QPrior != 0 {
			order = "prior"
		}
		fmt.Fprintf(s.w, "%-4d %-8s %-9d %-9d %s\n", q.ID, q.Name, q.Capacity, q.Messages, order)
	}
	return nil
}

func cmdStats(s *Service, _ []string) error {
	st := s.k.KernelStats()
	fmt.Fprintf(s.w, "ticks:            %d\n", st.Ticks)
	fmt.Fprintf(s.w, "context switches: %d\n", st.ContextSwitches)
	fmt.Fprintf(s.w, "active tasks:     %d\n", st.TasksActive)
	fmt.Fprintf(s.w, "stack in use:     %s\n", humanize.IBytes(uint64(st.StackUsed)))
	return nil
}

func cmdUptime(s *Service, _ []string) error {
	d := time.Duration(s.k.TickCount()) * (time.Second / kernel.TicksPerSec)
	fmt.Fprintf(s.w, "%s\n", durafmt.Parse(d))
	return nil
}

func cmdDate(s *Service, args []string) error {
	if len(args) == 0 {
		date, tod, ticks, err := s.k.TimeGet()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%04d-%02d-%02d %02d:%02d:%02d +%d\n",
			date>>16, (date>>8)&0xFF, date&0xFF,
			tod>>16, (tod>>8)&0xFF, tod&0xFF, ticks)
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: date [yyyy-mm-dd hh:mm:ss]")
	}
	var y, mo, d, h, mi, sec uint32
	if _, err := fmt.Sscanf(args[0], "%d-%d-%d", &y, &mo, &d); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(args[1], "%d:%d:%d", &h, &mi, &sec); err != nil {
		return err
	}
	return s.k.TimeSet(y<<16|mo<<8|d, h<<16|mi<<8|sec, 0)
}

func cmdTick(s *Service, args []string) error {
	n := 1
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("usage: tick [n]")
		}
		n = v
	}
	for i := 0; i < n; i++ {
		s.k.Tick()
	}
	fmt.Fprintf(s.w, "tick %d\n", s.k.TickCount())
	return nil
}

func cmdSend(s *Service, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: send <tid> <hexmask>")
	}
	tid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}
	mask, err := strconv.ParseUint(args[1], 16, 32)
	if err != nil {
		return err
	}
	return s.k.EvSend(kernel.TaskID(tid), uint32(mask))
}

func cmdSuspend(s *Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: suspend <tid>")
	}
	tid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}
	return s.k.TaskSuspend(kernel.TaskID(tid))
}

func cmdResume(s *Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: resume <tid>")
	}
	tid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}
	return s.k.TaskResume(kernel.TaskID(tid))
}

func cmdExit(s *Service, _ []string) error {
	s.stopped = true
	return nil
}
