// Package history keeps the most recent command lines in a fixed size ring
// and resolves the !n and !-1 recall directives against it.
package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"pucitshell/internal/slice"
)

var (
	ErrEmpty        = errors.New("no commands in history")
	ErrNotFound     = errors.New("invalid command number")
	ErrBadDirective = errors.New("invalid history directive")
)

// Ring holds at most capacity lines, oldest first. Index 1 is always the
// oldest line still present.
type Ring struct {
	capacity int
	lines    []string
}

func New(capacity int) *Ring {
	return &Ring{
		capacity: capacity,
		lines:    make([]string, 0, capacity),
	}
}

// Append stores line, evicting the oldest entry when the ring is full.
func (r *Ring) Append(line string) {
	r.lines = slice.PushBounded(r.lines, line, r.capacity)
}

// Recall returns entry n, counting from 1.
func (r *Ring) Recall(n int) (string, error) {
	if n < 1 || n > len(r.lines) {
		return "", fmt.Errorf("%w: %d", ErrNotFound, n)
	}
	return r.lines[n-1], nil
}

// Last returns the most recently appended entry.
func (r *Ring) Last() (string, error) {
	if len(r.lines) == 0 {
		return "", ErrEmpty
	}
	return r.lines[len(r.lines)-1], nil
}

// Clear drops every entry.
func (r *Ring) Clear() {
	r.lines = r.lines[:0]
}

func (r *Ring) Len() int {
	return len(r.lines)
}

func (r *Ring) Cap() int {
	return r.capacity
}

// Entries returns a copy of the stored lines, oldest first.
func (r *Ring) Entries() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// IsDirective reports whether line asks for a recall.
func IsDirective(line string) bool {
	return strings.HasPrefix(line, "!")
}

// Resolve expands a recall directive. Lines that are not directives come
// back unchanged with recalled set to false.
func (r *Ring) Resolve(line string) (resolved string, recalled bool, err error) {
	if !IsDirective(line) {
		return line, false, nil
	}

	arg := strings.TrimSpace(line[1:])
	if arg == "-1" {
		resolved, err = r.Last()
		return resolved, err == nil, err
	}

	n, convErr := strconv.Atoi(arg)
	if convErr != nil || n < 1 {
		return "", false, fmt.Errorf("%w: %q", ErrBadDirective, line)
	}

	resolved, err = r.Recall(n)
	return resolved, err == nil, err
}

// Load appends the lines stored in path. A missing file is not an error.
func (r *Ring) Load(fsys afero.Fs, path string) error {
	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			r.Append(line)
		}
	}
	return scanner.Err()
}

// Save writes the ring to path, one line per entry.
func (r *Ring) Save(fsys afero.Fs, path string) error {
	var buf bytes.Buffer
	for _, line := range r.lines {
		fmt.Fprintln(&buf, line)
	}
	return afero.WriteFile(fsys, path, buf.Bytes(), 0600)
}
