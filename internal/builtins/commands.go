package builtins

import (
	"errors"
	"fmt"

	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"

	"pucitshell/internal/jobs"
)

// Cd changes the working directory of the shell.
func Cd(env *Env, args []string) int {
	switch len(args) {
	case 1:
		fmt.Fprintf(env.Stderr, "%s: missing argument\n", args[0])
		return 1
	case 2:
		if err := env.Chdir(args[1]); err != nil {
			fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
			return 1
		}
	default:
		fmt.Fprintf(env.Stderr, "%s: too many arguments\n", args[0])
		return 1
	}
	return 0
}

// Exit quits the shell. Background jobs keep running.
func Exit(env *Env, args []string) int {
	env.Exit(0)
	return 0
}

func Jobs(env *Env, args []string) int {
	env.Jobs.Write(env.Stdout)
	return 0
}

// Kill signals a process, SIGKILL unless -s names another signal.
func Kill(env *Env, args []string) int {
	opts := getopt.New()
	sigOpt := opts.StringLong("signal", 's', "KILL", "signal to send, by name or number", "SIG")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	err := opts.Getopt(args, nil)
	if err == nil && !*helpOpt && opts.NArgs() != 1 {
		err = errors.New("expected exactly one pid")
	}

	if err != nil || *helpOpt {
		w := env.Stdout
		if err != nil {
			w = env.Stderr
			fmt.Fprintf(w, "%s: %v\n", args[0], err)
		}
		fmt.Fprintln(w, "usage: kill [-s SIG] <pid>")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		if err != nil {
			return 1
		}
		return 0
	}

	sig, err := jobs.ParseSignal(*sigOpt)
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
		return 1
	}
	pid, err := jobs.ParsePid(opts.Arg(0))
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
		return 1
	}

	err = jobs.Kill(pid, sig)
	if env.Log != nil {
		_ = env.Log.Kill(pid, unix.SignalName(sig), err)
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: failed to signal %d: %v\n", args[0], pid, err)
		return 1
	}

	if sig == jobs.DefaultSignal {
		fmt.Fprintf(env.Stdout, "Process %d killed successfully\n", pid)
	} else {
		fmt.Fprintf(env.Stdout, "Process %d sent %s\n", pid, unix.SignalName(sig))
	}
	return 0
}

var usage = []struct {
	use, short string
}{
	{"cd <directory>", "Change the current working directory"},
	{"exit", "Exit the shell"},
	{"jobs", "List all background jobs"},
	{"kill [-s sig] <pid>", "Send a signal, KILL by default, to the specified process"},
	{"help", "Display this help message"},
	{"history [-c]", "List or clear the remembered commands"},
	{"!n", "Repeat command number n from history"},
	{"!-1", "Repeat the last command"},
}

func Help(env *Env, args []string) int {
	fmt.Fprintln(env.Stdout, "Built-in commands:")
	for _, u := range usage {
		fmt.Fprintf(env.Stdout, "%-20s: %s\n", u.use, u.short)
	}
	return 0
}

// History lists the ring with the numbers !n accepts.
func History(env *Env, args []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := env.Stderr
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", args[0], err)
		}
		fmt.Fprintln(w, "usage: history [-c]")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		if err != nil {
			return 1
		}
		return 0
	}

	if *clear {
		env.History.Clear()
		return 0
	}

	for i, line := range env.History.Entries() {
		fmt.Fprintf(env.Stdout, "%5d  %s\n", i+1, line)
	}
	return 0
}
