package jobs

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Reaper collects background children when they terminate and removes their
// jobs from the Table.
//
// It only ever waits on pids handed to Track, never on -1, so children that
// the read loop is waiting for in the foreground are left alone.
type Reaper struct {
	Table *Table

	// OnDone, if set, is called from the reaping goroutine for every job
	// whose terminal process has been collected.
	OnDone func(Job, Status)

	mu      sync.Mutex
	watched map[int]struct{}
	notify  chan os.Signal
	wait4   func(pid int, ws *unix.WaitStatus, options int, ru *unix.Rusage) (int, error)
}

func NewReaper(table *Table) *Reaper {
	return &Reaper{
		Table:   table,
		watched: make(map[int]struct{}),
		notify:  make(chan os.Signal, 1),
		wait4:   unix.Wait4,
	}
}

// Start subscribes to SIGCHLD and reaps on every notification until ctx is
// done.
func (r *Reaper) Start(ctx context.Context) {
	signal.Notify(r.notify, unix.SIGCHLD)

	go func() {
		defer signal.Stop(r.notify)

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.notify:
				r.Reap()
			}
		}
	}()
}

// Track hands the processes of a background pipeline to the Reaper and
// records a job for the last of them. The job and the watch set are updated
// together so a concurrent Reap sees either both or neither.
func (r *Reaper) Track(pids []int, label string) (Job, error) {
	r.mu.Lock()
	for _, pid := range pids {
		r.watched[pid] = struct{}{}
	}
	job, err := r.Table.Add(pids[len(pids)-1], label)
	r.mu.Unlock()

	// The children may have exited before they were watched, in which case
	// their SIGCHLD has already been consumed.
	r.Nudge()

	return job, err
}

// Nudge schedules a reap without waiting for a signal.
func (r *Reaper) Nudge() {
	select {
	case r.notify <- unix.SIGCHLD:
	default:
	}
}

// Watching returns how many background processes are not yet reaped.
func (r *Reaper) Watching() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.watched)
}

// Reap collects every watched process that has terminated without blocking
// and returns the jobs it finished.
func (r *Reaper) Reap() []Job {
	type finished struct {
		job Job
		st  Status
	}
	var done []finished

	r.mu.Lock()
	for pid := range r.watched {
		var ws unix.WaitStatus

		wpid, err := r.wait4(pid, &ws, unix.WNOHANG, nil)
		for errors.Is(err, unix.EINTR) {
			wpid, err = r.wait4(pid, &ws, unix.WNOHANG, nil)
		}

		switch {
		case err != nil:
			// ECHILD: nothing left to collect for this pid.
		case wpid != pid:
			continue
		}

		delete(r.watched, pid)
		if job, ok := r.Table.Remove(pid); ok {
			done = append(done, finished{job, StatusOf(pid, ws)})
		}
	}
	r.mu.Unlock()

	jobs := make([]Job, 0, len(done))
	for _, f := range done {
		if r.OnDone != nil {
			r.OnDone(f.job, f.st)
		}
		jobs = append(jobs, f.job)
	}

	return jobs
}
