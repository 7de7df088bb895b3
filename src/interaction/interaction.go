// Package interaction records every call exchange to a JSONL file for
// later review. Write failures are logged and swallowed so bookkeeping can
// never take a live call down.
package interaction

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/square-key-labs/saloncall-ai/src/logger"
)

// Entry is one line of the interaction log
type Entry struct {
	ID              string         `json:"id"`
	Timestamp       string         `json:"timestamp"`
	CallID          string         `json:"call_sid"`
	Direction       string         `json:"direction"`
	CustomerPhone   string         `json:"customer_phone,omitempty"`
	Transcript      string         `json:"customer_transcript,omitempty"`
	AgentResponse   string         `json:"agent_response,omitempty"`
	ToolsCalled     []string       `json:"tools_called"`
	Error           string         `json:"error,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Recorder appends entries to a JSONL file, one entry per line
type Recorder struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

// New creates the log directory if needed and returns a recorder for path
func New(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Recorder{path: path, log: logger.WithPrefix("interaction")}, nil
}

func (r *Recorder) write(entry Entry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	entry.Direction = "inbound"
	if entry.ToolsCalled == nil {
		entry.ToolsCalled = []string{}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		r.log.Error("encode interaction entry: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.log.Error("open interaction log: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		r.log.Error("write interaction log: %v", err)
	}
}

// Exchange records one customer/agent turn
func (r *Recorder) Exchange(callID, transcript, response string, toolsCalled []string) {
	if r == nil {
		return
	}
	r.write(Entry{
		CallID:        callID,
		Transcript:    transcript,
		AgentResponse: response,
		ToolsCalled:   toolsCalled,
	})
}

// CallStarted records the beginning of a call
func (r *Recorder) CallStarted(callID, customerPhone string) {
	if r == nil {
		return
	}
	r.write(Entry{
		CallID:        callID,
		CustomerPhone: customerPhone,
		Extra:         map[string]any{"event": "call_started"},
	})
}

// CallEnded records the end of a call with its total duration
func (r *Recorder) CallEnded(callID string, duration time.Duration, summary string) {
	if r == nil {
		return
	}
	r.write(Entry{
		CallID:          callID,
		DurationSeconds: duration.Seconds(),
		Extra:           map[string]any{"event": "call_ended", "summary": summary},
	})
}

// CallError records a failure during a call, tagged with where it happened
func (r *Recorder) CallError(callID, errMsg, context string) {
	if r == nil {
		return
	}
	r.write(Entry{
		CallID: callID,
		Error:  errMsg,
		Extra:  map[string]any{"event": "error", "context": context},
	})
}
