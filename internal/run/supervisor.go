// Package run owns run lifecycle: single-flight admission, run state, and
// the wiring that turns a requested mode into a crawl or update pass.
package run

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wchen/gpuharvest/internal/scrape"
)

// ErrRunActive rejects a run request while another run is in progress.
var ErrRunActive = errors.New("a run is already in progress")

// Mode selects what a run does.
type Mode string

const (
	// ModeDefault crawls the catalog, skipping products already stored.
	ModeDefault Mode = "default"
	// ModeFull re-ingests every stored review.
	ModeFull Mode = "full"
	// ModeIncremental re-ingests only reviews with a newer posted date.
	ModeIncremental Mode = "incremental"
	// ModeSelected crawls a single named GPU.
	ModeSelected Mode = "selected"
)

// ParseMode maps a request parameter to a Mode. Empty means ModeDefault.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "":
		return ModeDefault, true
	case ModeDefault, ModeFull, ModeIncremental, ModeSelected:
		return Mode(s), true
	}
	return "", false
}

// State is the supervisor's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Summary describes one run, in progress or finished.
type Summary struct {
	RunID          uuid.UUID       `json:"run_id"`
	Mode           Mode            `json:"mode"`
	GPUName        string          `json:"gpu_name,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at,omitzero"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	Counts         scrape.Snapshot `json:"counts"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
}

// Supervisor enforces single-flight execution and remembers the last run.
type Supervisor struct {
	mu       sync.Mutex
	state    State
	current  *Summary
	counters *scrape.Counters
}

// NewSupervisor starts idle.
func NewSupervisor() *Supervisor {
	return &Supervisor{state: StateIdle}
}

// Begin admits a new run. It returns the run's counters, or ErrRunActive if
// a run is already in flight.
func (s *Supervisor) Begin(mode Mode, gpuName string) (*scrape.Counters, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return nil, uuid.Nil, ErrRunActive
	}

	s.state = StateRunning
	s.counters = &scrape.Counters{}
	s.current = &Summary{
		RunID:     uuid.New(),
		Mode:      mode,
		GPUName:   gpuName,
		StartedAt: time.Now(),
	}
	return s.counters, s.current.RunID, nil
}

// Finish records the run's outcome and releases the single-flight slot.
func (s *Supervisor) Finish(runErr error) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.CompletedAt = time.Now()
	s.current.ElapsedSeconds = s.current.CompletedAt.Sub(s.current.StartedAt).Seconds()
	s.current.Counts = s.counters.Snapshot()
	if runErr != nil {
		s.state = StateFailed
		s.current.Error = runErr.Error()
	} else {
		s.state = StateCompleted
		s.current.Success = true
	}
	return *s.current
}

// Status reports the current state and the latest run summary, with live
// counters while a run is in flight. The summary is nil before the first run.
func (s *Supervisor) Status() (State, *Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return s.state, nil
	}
	summary := *s.current
	if s.state == StateRunning {
		summary.Counts = s.counters.Snapshot()
		summary.ElapsedSeconds = time.Since(summary.StartedAt).Seconds()
	}
	return s.state, &summary
}
