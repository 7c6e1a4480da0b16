package jobs

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"pucitshell/internal/slice"
)

var ErrTableFull = errors.New("job table full")

// Job is a background pipeline, tracked by the pid of its last stage.
type Job struct {
	Id    int
	Pid   int
	Label string
}

func (j Job) String() string {
	return fmt.Sprintf("[%d] %d %s", j.Id, j.Pid, j.Label)
}

// Table is a bounded, insertion ordered list of running jobs. It is shared
// between the read loop and the Reaper, so every access goes through mu.
type Table struct {
	mu       sync.Mutex
	jobs     []Job
	capacity int
	lastId   int
}

func NewTable(capacity int) *Table {
	return &Table{
		jobs:     make([]Job, 0, capacity),
		capacity: capacity,
	}
}

// Add records a job for pid and assigns it the next id.
func (t *Table) Add(pid int, label string) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.jobs) == t.capacity {
		return Job{}, fmt.Errorf("%w: %d jobs running", ErrTableFull, len(t.jobs))
	}

	t.lastId++
	job := Job{Id: t.lastId, Pid: pid, Label: label}
	t.jobs = append(t.jobs, job)

	return job, nil
}

// Remove drops the job whose terminal process is pid, keeping the order of
// the others.
func (t *Table) Remove(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, job := range t.jobs {
		if job.Pid == pid {
			t.jobs = slice.Remove(t.jobs, i, i+1)
			return job, true
		}
	}

	return Job{}, false
}

// List returns a snapshot of the running jobs in insertion order.
func (t *Table) List() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.jobs)
}

func (t *Table) Full() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.jobs) == t.capacity
}

// Write prints one line per job.
func (t *Table) Write(w io.Writer) {
	for _, job := range t.List() {
		fmt.Fprintln(w, job)
	}
}
