package monitor

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"ember/console"
	"ember/kernel"
	"ember/port/hostport"
)

func bootMonitor(t *testing.T) (*kernel.Kernel, *Service, *bytes.Buffer) {
	t.Helper()
	p := hostport.New()
	k := kernel.New(p)
	if err := k.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	p.OnTick(k.Tick)
	if _, err := k.Boot(kernel.MakeName("ROOT"), 1); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	var buf bytes.Buffer
	var ring console.Ring
	return k, New(k, &buf, &ring), &buf
}

func TestPsListsTasks(t *testing.T) {
	_, s, buf := bootMonitor(t)

	s.Exec("ps")
	out := buf.String()
	if !strings.Contains(out, "ROOT") || !strings.Contains(out, "IDLE") {
		t.Fatalf("ps output missing tasks:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, s, buf := bootMonitor(t)

	s.Exec("frobnicate")
	if !strings.Contains(buf.String(), "unknown command") {
		t.Fatalf("expected unknown-command reply, got:\n%s", buf.String())
	}
}

func TestSendPostsEvents(t *testing.T) {
	k, s, buf := bootMonitor(t)

	root, err := k.TaskIdent(kernel.Name{})
	if err != nil {
		t.Fatalf("TaskIdent() error = %v", err)
	}
	s.Exec("send " + strconv.FormatUint(uint64(root), 10) + " 21")
	if strings.Contains(buf.String(), "send:") {
		t.Fatalf("send reported error:\n%s", buf.String())
	}

	got, err := k.EvReceive(0x21, kernel.EvAny|kernel.EvNoWait, 0)
	if err != nil || got != 0x21 {
		t.Fatalf("EvReceive() = %#x, %v, want 0x21, nil", got, err)
	}
}

func TestDateRoundTrip(t *testing.T) {
	_, s, buf := bootMonitor(t)

	s.Exec("date 2026-08-06 12:30:00")
	s.Exec("date")
	if !strings.Contains(buf.String(), "2026-08-06 12:30:00") {
		t.Fatalf("date output = %q", buf.String())
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	_, s, buf := bootMonitor(t)

	s.Exec("help")
	out := buf.String()
	for _, name := range []string{"help", "ver", "ps", "timers", "sems", "queues", "stats", "uptime", "date", "tick", "send", "suspend", "resume", "exit"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help output missing %q:\n%s", name, out)
		}
	}
}
