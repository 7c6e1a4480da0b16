package jobs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	ErrBadTarget = errors.New("invalid process id")
	ErrBadSignal = errors.New("invalid signal")
)

// DefaultSignal is what kill sends when no signal is named.
const DefaultSignal = unix.SIGKILL

// ParsePid parses a kill target. Only positive pids are accepted so that a
// typo cannot signal a whole process group.
func ParsePid(s string) (int, error) {
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTarget, s)
	}
	return pid, nil
}

// ParseSignal accepts a number ("9") or a name with or without the SIG
// prefix ("KILL", "sigterm").
func ParseSignal(s string) (unix.Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		sig := unix.Signal(n)
		if unix.SignalName(sig) == "" {
			return 0, fmt.Errorf("%w: %q", ErrBadSignal, s)
		}
		return sig, nil
	}

	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadSignal, s)
}

// Kill sends sig to pid. Delivery is best effort: the process may finish on
// its own first, in which case the Reaper still removes its job.
func Kill(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrBadTarget, pid)
	}
	return unix.Kill(pid, sig)
}
