package exec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"pucitshell/internal/jobs"
	"pucitshell/internal/parser"
)

var (
	ErrRedirect = errors.New("cannot open redirection")
	ErrPipe     = errors.New("cannot create pipe")
	ErrFork     = errors.New("cannot fork")
)

// ExitNotRunnable is recorded for a stage whose program could not be
// started.
const ExitNotRunnable = 127

// Result describes a launched pipeline. Pids holds the processes that were
// actually started; Statuses is filled for foreground pipelines with one
// entry per stage.
type Result struct {
	Pids     []int
	Statuses []jobs.Status
	Job      *jobs.Job
}

// Codes returns the exit code of every stage.
func (r *Result) Codes() []int {
	codes := make([]int, len(r.Statuses))
	for i, st := range r.Statuses {
		codes[i] = st.Code
	}
	return codes
}

// Spawner starts pipelines as OS processes.
type Spawner struct {
	// Stdio inherited by stages that are not redirected or piped.
	Stdin, Stdout, Stderr *os.File
	Env                   []string

	// Out receives "[job] pid" notices, Err the per stage start failures.
	Out, Err io.Writer

	Jobs *jobs.Reaper

	forkExec func(argv0 string, argv []string, attr *syscall.ProcAttr) (int, error)
	lookPath func(file string) (string, error)
	pipe     func() (*os.File, *os.File, error)
}

func NewSpawner(reaper *jobs.Reaper) *Spawner {
	return &Spawner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Env:    os.Environ(),
		Out:    os.Stdout,
		Err:    os.Stderr,
		Jobs:   reaper,

		forkExec: syscall.ForkExec,
		lookPath: exec.LookPath,
		pipe:     os.Pipe,
	}
}

// Run starts one process per stage, wired stage to stage by pipes. A
// foreground pipeline is waited for; a background one is handed to the
// Reaper and Run returns as soon as every stage has started.
//
// Nothing is started if a redirection cannot be opened or the job table is
// full. A stage whose program cannot be run is reported and skipped; its
// neighbours see end of file or a broken pipe.
func (s *Spawner) Run(p *parser.Pipeline) (*Result, error) {
	if p.Background && s.Jobs.Table.Full() {
		return nil, fmt.Errorf("%w: cannot start %s", jobs.ErrTableFull, p.Stages[0].Name())
	}

	rd, err := openRedirects(p)
	if err != nil {
		return nil, err
	}

	ps, err := s.allocatePipes(len(p.Stages) - 1)
	if err != nil {
		rd.Close()
		return nil, err
	}

	res := &Result{}
	stagePids := make([]int, len(p.Stages))
	pgid := 0

	for i, st := range p.Stages {
		stdin, stdout := s.stdio(i, len(p.Stages), rd, ps)

		pid, err := s.start(st, stdin, stdout, p.Background, pgid)
		if errors.Is(err, ErrFork) {
			ps.Close()
			rd.Close()
			s.abort(res.Pids)
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(s.Err, "%s: %s\n", st.Name(), describe(err))
			continue
		}

		if pgid == 0 {
			pgid = pid
		}
		stagePids[i] = pid
		res.Pids = append(res.Pids, pid)
	}

	// The children hold their own copies now.
	ps.Close()
	rd.Close()

	if p.Background {
		if len(res.Pids) == 0 {
			return res, nil
		}
		job, err := s.Jobs.Track(res.Pids, p.Stages[0].Name())
		if err != nil {
			return res, err
		}
		res.Job = &job
		fmt.Fprintf(s.Out, "[%d] %d\n", job.Id, job.Pid)
		return res, nil
	}

	res.Statuses = make([]jobs.Status, len(p.Stages))
	for i, pid := range stagePids {
		if pid == 0 {
			res.Statuses[i] = jobs.Status{Code: ExitNotRunnable}
			continue
		}
		res.Statuses[i] = wait(pid)
	}

	return res, nil
}

func (s *Spawner) stdio(i, n int, rd redirects, ps pipes) (stdin, stdout *os.File) {
	stdin, stdout = s.Stdin, s.Stdout

	switch {
	case i == 0 && rd.in != nil:
		stdin = rd.in
	case i > 0:
		stdin = ps[i-1].r
	}

	switch {
	case i == n-1 && rd.out != nil:
		stdout = rd.out
	case i < n-1:
		stdout = ps[i].w
	}

	return stdin, stdout
}

// start forks a child wired to stdin/stdout and replaces its image with the
// stage's program. Every descriptor Go opens is close-on-exec, so the child
// keeps nothing but 0, 1 and 2. Background stages share a process group led
// by the first of them.
func (s *Spawner) start(st parser.Stage, stdin, stdout *os.File, background bool, pgid int) (int, error) {
	binary, err := s.lookPath(st.Name())
	if err != nil {
		return 0, err
	}

	pid, err := s.forkExec(binary, st.Args, &syscall.ProcAttr{
		Env:   s.Env,
		Files: []uintptr{stdin.Fd(), stdout.Fd(), s.Stderr.Fd()},
		Sys: &syscall.SysProcAttr{
			Setpgid: background,
			Pgid:    pgid,
		},
	})
	if err != nil && !isExecError(err) {
		return 0, fmt.Errorf("%w: %s: %v", ErrFork, st.Name(), err)
	}

	return pid, err
}

// abort kills and reaps the stages already started so none is left behind
// as an orphan or a zombie.
func (s *Spawner) abort(pids []int) {
	for _, pid := range pids {
		_ = unix.Kill(pid, unix.SIGKILL)
	}
	for _, pid := range pids {
		wait(pid)
	}
}

func wait(pid int) jobs.Status {
	var ws unix.WaitStatus

	_, err := unix.Wait4(pid, &ws, 0, nil)
	for errors.Is(err, unix.EINTR) {
		_, err = unix.Wait4(pid, &ws, 0, nil)
	}

	return jobs.StatusOf(pid, ws)
}

// isExecError reports errors that mean the program itself cannot run, as
// opposed to the system being unable to create a process.
func isExecError(err error) bool {
	for _, errno := range []unix.Errno{
		unix.ENOENT, unix.EACCES, unix.EPERM, unix.ENOEXEC, unix.EISDIR,
		unix.ENOTDIR, unix.ELOOP, unix.ENAMETOOLONG, unix.ETXTBSY,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func describe(err error) string {
	var errno unix.Errno

	switch {
	case errors.Is(err, exec.ErrNotFound):
		return "command not found"
	case errors.As(err, &errno):
		return errno.Error()
	default:
		return err.Error()
	}
}
