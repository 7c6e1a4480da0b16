package jobs

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddAssignsIncreasingIds(t *testing.T) {
	table := NewTable(10)

	for i, pid := range []int{100, 200, 300} {
		job, err := table.Add(pid, "sleep")
		require.NoError(t, err)
		assert.Equal(t, i+1, job.Id)
		assert.Equal(t, pid, job.Pid)
	}

	// Ids are never reused, even after the table drains.
	_, ok := table.Remove(300)
	require.True(t, ok)
	job, err := table.Add(400, "ls")
	require.NoError(t, err)
	assert.Equal(t, 4, job.Id)
}

func TestTableRemoveKeepsOrder(t *testing.T) {
	table := NewTable(10)
	for _, pid := range []int{1, 2, 3, 4} {
		_, err := table.Add(pid, "x")
		require.NoError(t, err)
	}

	job, ok := table.Remove(2)
	require.True(t, ok)
	assert.Equal(t, 2, job.Id)

	_, ok = table.Remove(2)
	assert.False(t, ok, "removed twice")

	var pids []int
	for _, j := range table.List() {
		pids = append(pids, j.Pid)
	}
	assert.Equal(t, []int{1, 3, 4}, pids)
}

func TestTableCapacity(t *testing.T) {
	table := NewTable(2)

	_, err := table.Add(1, "a")
	require.NoError(t, err)
	assert.False(t, table.Full())
	_, err = table.Add(2, "b")
	require.NoError(t, err)
	assert.True(t, table.Full())

	_, err = table.Add(3, "c")
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, 2, table.Len())

	table.Remove(1)
	assert.False(t, table.Full())
}

func TestTableListIsSnapshot(t *testing.T) {
	table := NewTable(4)
	_, err := table.Add(1, "a")
	require.NoError(t, err)

	list := table.List()
	list[0].Label = "changed"

	assert.Equal(t, "a", table.List()[0].Label)
}

func TestTableWrite(t *testing.T) {
	table := NewTable(4)
	_, _ = table.Add(4242, "sleep")
	_, _ = table.Add(4343, "ls")

	var buf bytes.Buffer
	table.Write(&buf)
	assert.Equal(t, "[1] 4242 sleep\n[2] 4343 ls\n", buf.String())
}

func TestTableConcurrentAccess(t *testing.T) {
	const workers, perWorker = 8, 200
	table := NewTable(workers * perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				pid := w*perWorker + i + 1
				_, err := table.Add(pid, "x")
				assert.NoError(t, err)
				if i%2 == 0 {
					_, ok := table.Remove(pid)
					assert.True(t, ok)
				}
			}
		}(w)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			assertNoDuplicates(t, table.List())
		}
	}()

	wg.Wait()
	close(stop)
	readers.Wait()

	list := table.List()
	assert.Len(t, list, workers*perWorker/2)
	assertNoDuplicates(t, list)
}

func assertNoDuplicates(t *testing.T, list []Job) {
	t.Helper()
	ids := make(map[int]bool)
	pids := make(map[int]bool)
	for _, j := range list {
		assert.False(t, ids[j.Id], "duplicate id %d", j.Id)
		assert.False(t, pids[j.Pid], "duplicate pid %d", j.Pid)
		ids[j.Id] = true
		pids[j.Pid] = true
	}
}
