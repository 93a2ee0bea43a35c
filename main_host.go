//go:build !tinygo

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"ember/console"
	"ember/internal/buildinfo"
	"ember/kernel"
	"ember/monitor"
	"ember/port/hostport"
)

func main() {
	var hz int
	var maxTicks uint64
	var headless bool
	flag.BoolVar(&headless, "headless", false, "Run with a plain line console, no raw terminal.")
	flag.IntVar(&hz, "hz", kernel.TicksPerSec, "Tick rate of the host time base.")
	flag.Uint64Var(&maxTicks, "ticks", 0, "Stop after N ticks (0 = run forever).")
	flag.Parse()

	if err := run(hz, maxTicks, headless); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(hz int, maxTicks uint64, headless bool) error {
	p := hostport.NewWallClock(hz)
	k := kernel.New(p)
	if err := k.Init(); err != nil {
		return err
	}
	p.OnTick(k.Tick)

	k.OnTaskPanic(func(info kernel.PanicInfo) {
		fmt.Fprintf(os.Stderr, "task %d (%s) panicked: %v\n%s", info.Task, info.Name, info.Value, info.Stack)
	})

	var ring console.Ring
	out, readLine, restore, err := openTerminal(headless)
	if err != nil {
		return err
	}
	defer restore()

	// The reader goroutine stands in for the serial receive interrupt: it
	// never calls into the kernel, only feeds the ring.
	go func() {
		for {
			line, err := readLine()
			if err != nil {
				return
			}
			ring.TryPush(line)
		}
	}()

	if _, err := k.Boot(kernel.MakeName("ROOT"), 10); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s, %d Hz tick\n", buildinfo.Banner(), hz)

	mon := monitor.New(k, out, &ring)
	tid, err := k.TaskCreate(kernel.MakeName("MON"), 20, 2048, 0)
	if err != nil {
		return err
	}
	if err := k.TaskStart(tid, 0, mon.Run, [4]uint32{}); err != nil {
		return err
	}

	// The root task sleeps until the monitor exits or the tick limit is
	// reached; the idle task runs the clock whenever everyone is parked.
	for {
		if err := k.WakeAfter(kernel.TicksPerSec / 2); err != nil {
			return err
		}
		if maxTicks > 0 && k.TickCount() >= maxTicks {
			return nil
		}
		alive := false
		for _, t := range k.Tasks() {
			if t.Name == kernel.MakeName("MON") {
				alive = true
			}
		}
		if !alive {
			return nil
		}
	}
}

// openTerminal puts a TTY stdin into raw mode and returns the output
// writer, a line reader, and a restore hook. Headless runs and non-TTY
// stdins fall back to plain buffered lines.
func openTerminal(headless bool) (io.Writer, func() (string, error), func(), error) {
	fd := int(os.Stdin.Fd())
	if headless || !term.IsTerminal(fd) {
		sc := bufio.NewScanner(os.Stdin)
		read := func() (string, error) {
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			return sc.Text(), nil
		}
		return os.Stdout, read, func() {}, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, nil, err
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "")
	return t, t.ReadLine, func() { _ = term.Restore(fd, state) }, nil
}
