package parser

import (
	"errors"
	"fmt"
	"strings"

	"pucitshell/internal/config"
	"pucitshell/internal/slice"
)

const (
	OpRedirectIn  = "<"
	OpRedirectOut = ">"
	OpPipe        = "|"
	OpBackground  = "&"
)

var (
	// ErrSyntax is wrapped by every error Parse returns.
	ErrSyntax = errors.New("syntax error")

	ErrEmptyPipeline         = fmt.Errorf("%w: empty command", ErrSyntax)
	ErrEmptyStage            = fmt.Errorf("%w: missing command", ErrSyntax)
	ErrMissingRedirectTarget = fmt.Errorf("%w: missing file name", ErrSyntax)
	ErrDuplicateRedirect     = fmt.Errorf("%w: duplicate redirection", ErrSyntax)
	ErrTooManyStages         = fmt.Errorf("%w: too many pipeline stages", ErrSyntax)
	ErrTooManyArgs           = fmt.Errorf("%w: too many arguments", ErrSyntax)

	ErrLineTooLong   = errors.New("line too long")
	ErrTooManyTokens = errors.New("too many words")
)

// Stage is one program invocation: Args[0] is the program name.
type Stage struct {
	Args []string
}

func (s Stage) Name() string {
	return s.Args[0]
}

// Pipeline is a parsed command line. It always has at least one stage;
// InFile feeds the first stage and OutFile receives the last stage's output.
type Pipeline struct {
	Stages     []Stage
	InFile     string
	OutFile    string
	Background bool
}

func (p *Pipeline) String() string {
	var b strings.Builder
	for i, st := range p.Stages {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(strings.Join(st.Args, " "))
	}
	if p.InFile != "" {
		b.WriteString(" < " + p.InFile)
	}
	if p.OutFile != "" {
		b.WriteString(" > " + p.OutFile)
	}
	if p.Background {
		b.WriteString(" &")
	}
	return b.String()
}

func IsOperator(tok string) bool {
	switch tok {
	case OpRedirectIn, OpRedirectOut, OpPipe, OpBackground:
		return true
	}
	return false
}

// Tokenize splits line into words separated by spaces and tabs. There is no
// quoting: a word boundary is purely whitespace.
func Tokenize(line string, lim config.Limits) ([]string, error) {
	if len(line) > lim.MaxLineLength {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrLineTooLong, len(line), lim.MaxLineLength)
	}

	var tokens []string
	for i := slice.TrimSpaces(line, 0); i < len(line); i = slice.TrimSpaces(line, i) {
		start := i
		for i < len(line) && !slice.IsBlank(line[i]) {
			i++
		}

		if len(tokens) == lim.MaxTokens {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyTokens, lim.MaxTokens)
		}
		tokens = append(tokens, line[start:i])
	}

	return tokens, nil
}

// Parse builds a Pipeline from tokens. A "&" ends the scan and marks the
// pipeline as background; tokens after it are dropped.
func Parse(tokens []string, lim config.Limits) (*Pipeline, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyPipeline
	}

	p := &Pipeline{}
	var cmd Stage

	closeStage := func(op string) error {
		if len(cmd.Args) == 0 {
			return fmt.Errorf("%w before '%s'", ErrEmptyStage, op)
		}
		if len(p.Stages) == lim.MaxStages {
			return fmt.Errorf("%w: limit is %d", ErrTooManyStages, lim.MaxStages)
		}
		p.Stages = append(p.Stages, cmd)
		cmd = Stage{}
		return nil
	}

	redirectTarget := func(i int, op string, dst *string) error {
		if i+1 == len(tokens) || IsOperator(tokens[i+1]) {
			return fmt.Errorf("%w after '%s'", ErrMissingRedirectTarget, op)
		}
		if *dst != "" {
			return fmt.Errorf("%w '%s'", ErrDuplicateRedirect, op)
		}
		*dst = tokens[i+1]
		return nil
	}

scan:
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case OpRedirectIn:
			if err := redirectTarget(i, OpRedirectIn, &p.InFile); err != nil {
				return nil, err
			}
			i++
		case OpRedirectOut:
			if err := redirectTarget(i, OpRedirectOut, &p.OutFile); err != nil {
				return nil, err
			}
			i++
		case OpPipe:
			if err := closeStage(OpPipe); err != nil {
				return nil, err
			}
		case OpBackground:
			p.Background = true
			break scan
		default:
			if len(cmd.Args) == lim.MaxArgs {
				return nil, fmt.Errorf("%w: limit is %d", ErrTooManyArgs, lim.MaxArgs)
			}
			cmd.Args = append(cmd.Args, tokens[i])
		}
	}

	if len(cmd.Args) == 0 {
		switch {
		case len(p.Stages) > 0:
			return nil, fmt.Errorf("%w after '%s'", ErrEmptyStage, OpPipe)
		case p.Background:
			return nil, fmt.Errorf("%w before '%s'", ErrEmptyStage, OpBackground)
		default:
			return nil, ErrEmptyStage
		}
	}
	if err := closeStage(OpPipe); err != nil {
		return nil, err
	}

	return p, nil
}
