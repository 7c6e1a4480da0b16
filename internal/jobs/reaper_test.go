package jobs

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func spawn(t *testing.T, name string, args ...string) int {
	t.Helper()

	binary, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}

	pid, err := syscall.ForkExec(binary, append([]string{name}, args...), &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
	})
	require.NoError(t, err)
	return pid
}

func startReaper(t *testing.T, capacity int) *Reaper {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewReaper(NewTable(capacity))
	r.Start(ctx)
	return r
}

func TestReaperRemovesFinishedJob(t *testing.T) {
	r := startReaper(t, 10)

	var mu sync.Mutex
	var finished []Job
	r.OnDone = func(j Job, st Status) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, j)
		assert.True(t, st.Success(), st.String())
	}

	pid := spawn(t, "sleep", "0.2")
	job, err := r.Track([]int{pid}, "sleep")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Id)
	assert.Equal(t, []Job{job}, r.Table.List())

	require.Eventually(t, func() bool { return r.Table.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.Watching())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Job{job}, finished)
}

func TestReaperCollectsChildThatExitedBeforeTrack(t *testing.T) {
	r := startReaper(t, 10)

	pid := spawn(t, "true")
	// Let the child exit and its SIGCHLD be consumed while nothing watches it.
	time.Sleep(200 * time.Millisecond)

	_, err := r.Track([]int{pid}, "true")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.Table.Len() == 0 }, 5*time.Second, 10*time.Millisecond)

	// The zombie is gone: there is nothing left to wait for.
	_, err = unix.Wait4(pid, nil, unix.WNOHANG, nil)
	assert.ErrorIs(t, err, unix.ECHILD)
}

func TestReaperCollectsEveryStage(t *testing.T) {
	r := startReaper(t, 10)

	first := spawn(t, "true")
	last := spawn(t, "sleep", "0.1")

	job, err := r.Track([]int{first, last}, "true")
	require.NoError(t, err)
	assert.Equal(t, last, job.Pid)

	require.Eventually(t, func() bool { return r.Watching() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.Table.Len())
}

func TestReaperLeavesUnwatchedChildren(t *testing.T) {
	r := startReaper(t, 10)

	foreground := spawn(t, "true")
	bg := spawn(t, "true")
	_, err := r.Track([]int{bg}, "true")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.Watching() == 0 }, 5*time.Second, 10*time.Millisecond)

	// The foreground child is still ours to wait for.
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(foreground, &ws, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, foreground, wpid)
	assert.True(t, ws.Exited())
}

func TestReaperKilledJob(t *testing.T) {
	r := startReaper(t, 10)

	statuses := make(chan Status, 1)
	r.OnDone = func(_ Job, st Status) { statuses <- st }

	pid := spawn(t, "sleep", "30")
	_, err := r.Track([]int{pid}, "sleep")
	require.NoError(t, err)

	require.NoError(t, Kill(pid, DefaultSignal))

	select {
	case st := <-statuses:
		assert.Equal(t, unix.SIGKILL, st.Signal)
		assert.Equal(t, 128+9, st.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("killed job was not reaped")
	}
	assert.Equal(t, 0, r.Table.Len())
}

// Launching many jobs back to back while listing must never show a torn
// table: no duplicates, nothing missing while the jobs still run.
func TestReaperManyJobsStress(t *testing.T) {
	const k = 16
	r := startReaper(t, 100)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			assertNoDuplicates(t, r.Table.List())
		}
	}()

	var tracked []Job
	for i := 0; i < k; i++ {
		pid := spawn(t, "sleep", "1")
		job, err := r.Track([]int{pid}, "sleep")
		require.NoError(t, err)
		tracked = append(tracked, job)
	}

	// All of them are still sleeping.
	assert.Equal(t, tracked, r.Table.List())

	require.Eventually(t, func() bool { return r.Table.Len() == 0 }, 10*time.Second, 20*time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Equal(t, 0, r.Watching())
}

func TestReaperFullTable(t *testing.T) {
	r := startReaper(t, 1)

	first := spawn(t, "sleep", "0.2")
	_, err := r.Track([]int{first}, "sleep")
	require.NoError(t, err)

	second := spawn(t, "true")
	_, err = r.Track([]int{second}, "true")
	assert.ErrorIs(t, err, ErrTableFull)

	// Untracked by the table, but still reaped.
	require.Eventually(t, func() bool { return r.Watching() == 0 }, 5*time.Second, 10*time.Millisecond)
}
