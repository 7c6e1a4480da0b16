// Package shell runs the interactive read loop: recall substitution,
// tokenizing, built-in dispatch, parsing and spawning.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"pucitshell/internal/builtins"
	"pucitshell/internal/config"
	exec "pucitshell/internal/execute"
	"pucitshell/internal/history"
	"pucitshell/internal/jobs"
	"pucitshell/internal/logger"
	"pucitshell/internal/parser"
	"pucitshell/internal/prompt"
)

const name = "pucitshell"

// LineReader is the terminal side of the shell.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

var _ LineReader = (*readline.Instance)(nil)

// NewReadline returns a LineReader on the process's terminal. Line editing
// history is left to the shell's own ring.
func NewReadline() (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
	})
}

type Shell struct {
	Config  *config.Configuration
	Reader  LineReader
	History *history.Ring
	Jobs    *jobs.Reaper
	Spawner *exec.Spawner
	Log     *logger.SessionLogger

	stdout, stderr io.Writer

	fs       afero.Fs
	env      *builtins.Env
	useColor bool
	errColor *color.Color

	exited bool
	status int
}

// New builds a shell around reader. The history file named in cfg, if any,
// is loaded from fsys.
func New(cfg *config.Configuration, fsys afero.Fs, reader LineReader, events *logger.SessionLogger, useColor bool) *Shell {
	table := jobs.NewTable(cfg.Limits.MaxJobs)
	reaper := jobs.NewReaper(table)
	reaper.OnDone = func(job jobs.Job, st jobs.Status) {
		_ = events.JobDone(job.Id, st.Pid, st.Code)
	}

	s := &Shell{
		Config:   cfg,
		Reader:   reader,
		History:  history.New(cfg.Limits.HistorySize),
		Jobs:     reaper,
		Spawner:  exec.NewSpawner(reaper),
		Log:      events,
		fs:       fsys,
		useColor: useColor,
		errColor: color.New(color.FgRed),
	}
	s.env = builtins.NewEnv(table, s.History, events, s.exit)

	if useColor {
		s.errColor.EnableColor()
	} else {
		s.errColor.DisableColor()
	}
	s.SetOutput(os.Stdout, os.Stderr)

	if cfg.HistoryFile != "" {
		if err := s.History.Load(fsys, cfg.HistoryFile); err != nil {
			s.errorf("cannot load history: %v", err)
		}
	}

	return s
}

// SetOutput directs the shell's own messages, and those of its built-ins, to
// stdout and stderr. Spawned programs keep the Spawner's descriptors.
func (s *Shell) SetOutput(stdout, stderr io.Writer) {
	s.stdout, s.stderr = stdout, stderr
	s.env.Stdout, s.env.Stderr = stdout, stderr
	s.Spawner.Out, s.Spawner.Err = stdout, stderr
}

func (s *Shell) exit(code int) {
	s.exited = true
	s.status = code
}

func (s *Shell) errorf(format string, args ...interface{}) {
	s.errColor.Fprintf(s.stderr, name+": "+format+"\n", args...)
}

// Run reads and executes lines until end of input, the exit built-in or a
// fatal error, and returns the shell's exit status.
func (s *Shell) Run(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.Jobs.Start(ctx)
	defer s.catchInterrupts(ctx)()

	for !s.exited {
		s.Reader.SetPrompt(prompt.Render(s.Config.Prompt, s.useColor))

		line, err := s.Reader.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(s.stdout)
			return 0
		case err != nil:
			log.Printf("readline: %v", err)
			return 1
		}

		s.Execute(line)
	}

	return s.status
}

// RunLine executes a single line and returns its status, as for -c.
func (s *Shell) RunLine(ctx context.Context, line string) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.Jobs.Start(ctx)

	status := s.Execute(line)
	if s.exited {
		return s.status
	}
	return status
}

// catchInterrupts keeps ^C and ^\ aimed at a foreground pipeline from
// killing the shell. Spawned programs get the default disposition back on
// exec.
func (s *Shell) catchInterrupts(ctx context.Context) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGQUIT)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
			}
		}
	}()

	return func() { signal.Stop(sigs) }
}

// Execute runs one input line and returns its status.
func (s *Shell) Execute(line string) int {
	if strings.TrimSpace(line) == "" {
		return 0
	}

	resolved, recalled, err := s.History.Resolve(line)
	switch {
	case errors.Is(err, history.ErrEmpty):
		fmt.Fprintln(s.stderr, "No commands in history.")
		return 1
	case err != nil:
		fmt.Fprintln(s.stderr, "Invalid command number")
		return 1
	case recalled:
		fmt.Fprintf(s.stdout, "Repeating command: %s\n", resolved)
	default:
		s.History.Append(line)
	}

	tokens, err := parser.Tokenize(resolved, s.Config.Limits)
	if err != nil {
		s.errorf("%v", err)
		return 1
	}
	if len(tokens) == 0 {
		return 0
	}

	if status, ok := builtins.Run(s.env, tokens); ok {
		return status
	}

	p, err := parser.Parse(tokens, s.Config.Limits)
	if err != nil {
		s.errorf("%v", err)
		return 2
	}

	return s.spawn(resolved, p)
}

func (s *Shell) spawn(line string, p *parser.Pipeline) int {
	res, err := s.Spawner.Run(p)
	s.record(line, res, err)

	if err != nil {
		s.errorf("%v", err)
		if isFatal(err) {
			s.exit(1)
		}
		return 1
	}

	if p.Background {
		if res.Job == nil {
			return exec.ExitNotRunnable
		}
		return 0
	}
	return res.Statuses[len(res.Statuses)-1].Code
}

func (s *Shell) record(line string, res *exec.Result, err error) {
	var pids, codes []int
	jobId := 0
	if res != nil {
		pids, codes = res.Pids, res.Codes()
		if res.Job != nil {
			jobId = res.Job.Id
		}
	}
	if logErr := s.Log.Exec(line, pids, codes, jobId, err); logErr != nil {
		log.Printf("cannot record event: %v", logErr)
	}
}

// isFatal reports errors after which the shell cannot go on reading lines.
func isFatal(err error) bool {
	return errors.Is(err, exec.ErrPipe)
}

// Close saves the history and releases the terminal.
func (s *Shell) Close() error {
	var saveErr error
	if s.Config.HistoryFile != "" {
		saveErr = s.History.Save(s.fs, s.Config.HistoryFile)
	}
	return errors.Join(saveErr, s.Reader.Close())
}
