// Package monitor implements the kernel's diagnostic console: a task that
// polls the console line ring and executes inspection commands against the
// running kernel.
package monitor

import (
	"fmt"
	"io"

	"github.com/google/shlex"

	"ember/console"
	"ember/kernel"
)

// pollTicks is the console poll interval while no input is pending.
const pollTicks = 2

// command is one console verb. The table is static and declared in
// commands.go; a malformed entry is a programmer error and fails loudly at
// construction.
type command struct {
	name    string
	aliases []string
	usage   string
	desc    string
	run     func(s *Service, args []string) error
}

// Service is the monitor state: one kernel, one output stream, one input
// ring. It runs as a kernel task via Run.
type Service struct {
	k   *kernel.Kernel
	w   io.Writer
	src *console.Ring

	table []command
	verbs map[string]*command

	prompt  string
	stopped bool
}

// New builds a monitor over the given kernel and streams.
func New(k *kernel.Kernel, w io.Writer, src *console.Ring) *Service {
	s := &Service{k: k, w: w, src: src, prompt: "> "}
	s.install(commandTable())
	return s
}

// install indexes the command table by name and alias. Help order follows
// declaration order, so the table reads top to bottom as the help text.
func (s *Service) install(table []command) {
	s.table = table
	s.verbs = make(map[string]*command, len(table))
	for i := range s.table {
		c := &s.table[i]
		if c.name == "" || c.run == nil {
			panic("monitor: malformed command table entry")
		}
		if _, dup := s.verbs[c.name]; dup {
			panic("monitor: duplicate verb " + c.name)
		}
		s.verbs[c.name] = c
		for _, alias := range c.aliases {
			if _, dup := s.verbs[alias]; dup {
				panic("monitor: duplicate verb " + alias)
			}
			s.verbs[alias] = c
		}
	}
}

// Run is the monitor task body. It sleeps between polls so the console
// costs nothing while quiet.
func (s *Service) Run([4]uint32) {
	fmt.Fprint(s.w, s.prompt)
	for !s.stopped {
		line, ok := s.src.TryPop()
		if !ok {
			if err := s.k.WakeAfter(pollTicks); err != nil {
				return
			}
			continue
		}
		s.Exec(line)
		fmt.Fprint(s.w, s.prompt)
	}
}

// Exec parses and runs one command line.
func (s *Service) Exec(line string) {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(s.w, "parse error: %v\n", err)
		return
	}
	if len(args) == 0 {
		return
	}

	c, ok := s.verbs[args[0]]
	if !ok {
		fmt.Fprintf(s.w, "unknown command %q, try help\n", args[0])
		return
	}
	if err := c.run(s, args[1:]); err != nil {
		fmt.Fprintf(s.w, "%s: %v\n", c.name, err)
	}
}
