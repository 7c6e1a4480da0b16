package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventExec    = "exec"
	EventJobDone = "job_done"
	EventKill    = "kill"
)

// LogEntry is one line of the event log.
type LogEntry struct {
	Time      time.Time `json:"time"`
	SessionId string    `json:"session_id"`
	Type      string    `json:"type"`

	Line   string `json:"line,omitempty"`
	JobId  int    `json:"job_id,omitempty"`
	Pids   []int  `json:"pids,omitempty"`
	Codes  []int  `json:"codes,omitempty"`
	Signal string `json:"signal,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LogRecorder stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures what the shell ran and how it ended.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that writes newline delimited
// JSON objects to w. Records may come from the reaping goroutine, so writes
// are serialised.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex

	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := json.Marshal(le)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{Record: func(*LogEntry) error { return nil }}
}

// NewSession creates a logger with a fresh session id.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionId: uuid.NewString()}
}

// SessionLogger logs events with a shared session id.
type SessionLogger struct {
	*Logger
	sessionId string
}

func (l *SessionLogger) SessionId() string {
	return l.sessionId
}

func (l *SessionLogger) record(le *LogEntry) error {
	le.Time = time.Now().UTC()
	le.SessionId = l.sessionId
	return l.Record(le)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Exec records a pipeline launch. For foreground pipelines codes holds the
// exit code of each stage; background pipelines carry their job id instead.
func (l *SessionLogger) Exec(line string, pids, codes []int, jobId int, err error) error {
	return l.record(&LogEntry{
		Type:  EventExec,
		Line:  line,
		Pids:  pids,
		Codes: codes,
		JobId: jobId,
		Error: errString(err),
	})
}

func (l *SessionLogger) JobDone(jobId, pid, code int) error {
	return l.record(&LogEntry{
		Type:  EventJobDone,
		JobId: jobId,
		Pids:  []int{pid},
		Codes: []int{code},
	})
}

func (l *SessionLogger) Kill(pid int, signal string, err error) error {
	return l.record(&LogEntry{
		Type:   EventKill,
		Pids:   []int{pid},
		Signal: signal,
		Error:  errString(err),
	})
}
