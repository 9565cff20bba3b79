package supervisor

import (
	"io"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/kforslund/ubervisor/internal/eventbus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newNoopBus() *eventbus.Bus {
	return eventbus.New(func(ev eventbus.Event) ([]byte, error) { return nil, nil })
}

// recordingKill replaces real signal delivery in tests: it records calls
// instead of touching any actual process.
type recordingKill struct {
	calls []killCall
}

type killCall struct {
	pid int
	sig syscall.Signal
}

func (r *recordingKill) fn() killFunc {
	return func(pid int, sig syscall.Signal) error {
		r.calls = append(r.calls, killCall{pid: pid, sig: sig})
		return nil
	}
}
