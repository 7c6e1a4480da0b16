// Package builtins holds the commands the shell runs itself instead of
// spawning a process.
package builtins

import (
	"io"
	"os"

	"pucitshell/internal/history"
	"pucitshell/internal/jobs"
	"pucitshell/internal/logger"
)

// All holds every registered built-in keyed by name.
var All = make(map[string]Builtin)

// Env is the part of the shell a built-in may touch.
type Env struct {
	Stdout, Stderr io.Writer

	Jobs    *jobs.Table
	History *history.Ring
	Log     *logger.SessionLogger

	// Exit ends the read loop once the current line is done.
	Exit  func(code int)
	Chdir func(dir string) error
}

// NewEnv returns an Env that changes the process working directory.
func NewEnv(table *jobs.Table, ring *history.Ring, log *logger.SessionLogger, exit func(int)) *Env {
	return &Env{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Jobs:    table,
		History: ring,
		Log:     log,
		Exit:    exit,
		Chdir:   os.Chdir,
	}
}

type Builtin interface {
	Main(env *Env, args []string) int
}

type BuiltinFunc func(env *Env, args []string) int

func (f BuiltinFunc) Main(env *Env, args []string) int {
	return f(env, args)
}

var _ Builtin = (BuiltinFunc)(nil)

// Run executes args as a built-in if args[0] names one. The exit status is
// only meaningful when ok is true.
func Run(env *Env, args []string) (status int, ok bool) {
	if len(args) == 0 {
		return 0, false
	}

	b, ok := All[args[0]]
	if !ok {
		return 0, false
	}
	return b.Main(env, args), true
}

func init() {
	All["cd"] = BuiltinFunc(Cd)
	All["exit"] = BuiltinFunc(Exit)
	All["jobs"] = BuiltinFunc(Jobs)
	All["kill"] = BuiltinFunc(Kill)
	All["help"] = BuiltinFunc(Help)
	All["history"] = BuiltinFunc(History)
}
