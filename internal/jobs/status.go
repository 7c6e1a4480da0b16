package jobs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Status is how a reaped process ended.
type Status struct {
	Pid    int
	Code   int
	Signal unix.Signal
}

// StatusOf converts a wait status. A process killed by a signal gets the
// conventional 128+signal code.
func StatusOf(pid int, ws unix.WaitStatus) Status {
	st := Status{Pid: pid}

	switch {
	case ws.Exited():
		st.Code = ws.ExitStatus()
	case ws.Signaled():
		st.Signal = ws.Signal()
		st.Code = 128 + int(st.Signal)
	}

	return st
}

func (s Status) Success() bool {
	return s.Code == 0
}

func (s Status) String() string {
	if s.Signal != 0 {
		return fmt.Sprintf("%d: %s", s.Pid, unix.SignalName(s.Signal))
	}
	return fmt.Sprintf("%d: exit %d", s.Pid, s.Code)
}
