// Package timer implements the pomodoro state machine and its on-disk
// record. The state file is the single source of truth shared by CLI
// invocations and the background daemon; every mutation goes through one
// locked read-modify-write cycle (Apply) and is written atomically, so no
// process ever works from a divergent copy.
package timer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilocn/pomo/internal/workspace"
)

// Timer phases.
const (
	PhaseIdle       = "idle"
	PhaseFocus      = "focus"
	PhaseShortBreak = "short_break"
	PhaseLongBreak  = "long_break"
	PhasePaused     = "paused"
	PhaseStopped    = "stopped"
)

// Short break kinds, alternating per completed pomodoro: email breaks for
// a quick inbox sweep, rest breaks for stepping away from the screen.
const (
	BreakEmail = "email"
	BreakRest  = "rest"
)

// ErrNoTimer reports that no timer state exists.
var ErrNoTimer = errors.New("no active timer")

// State is the persisted timer record at timer.state. Exactly one exists
// per workspace. Timestamps are Unix seconds, durations are seconds.
type State struct {
	Phase string `json:"phase"`

	// BreakKind is set while Phase is short_break.
	BreakKind string `json:"break_kind,omitempty"`

	// PausedPhase is the phase a resume returns to; set iff Phase is paused.
	PausedPhase string `json:"paused_phase,omitempty"`

	// PhaseStartedAt is when the current phase (re)started running.
	// Zero while paused; elapsed time lives in PausedElapsed then.
	PhaseStartedAt int64 `json:"phase_started_at,omitempty"`

	// PausedElapsed accumulates running seconds spent before the latest
	// pause within the current phase.
	PausedElapsed int64 `json:"paused_elapsed,omitempty"`

	// PhaseDuration is the configured length of the current phase.
	PhaseDuration int64 `json:"phase_duration,omitempty"`

	// Completed counts pomodoros finished today. Monotonic within a day.
	Completed int `json:"pomodoros_completed"`

	// ActiveTask is the 1-based position of today's task the timer runs
	// against, 0 when none. The task list itself lives in the history
	// store; the timer only carries the reference.
	ActiveTask int `json:"active_task,omitempty"`

	// Day is the calendar day ("2006-01-02") this state belongs to. State
	// from an earlier day never resumes; it collapses to idle.
	Day string `json:"day"`
}

// CorruptError reports a state file that exists but cannot be decoded.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("timer state %s is malformed: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// NewIdle returns a fresh idle state for the given day.
func NewIdle(day string) State {
	return State{Phase: PhaseIdle, Day: day}
}

// DayOf formats now as the calendar day a state belongs to.
func DayOf(now time.Time) string {
	return now.Format("2006-01-02")
}

// Load reads the state file. A missing file is ErrNoTimer; an undecodable
// one is a *CorruptError so callers can offer recovery instead of
// discarding progress silently.
func Load(ws *workspace.Workspace) (State, error) {
	data, err := os.ReadFile(ws.StatePath())
	if errors.Is(err, os.ErrNotExist) {
		return State{}, ErrNoTimer
	}
	if err != nil {
		return State{}, fmt.Errorf("read timer state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, &CorruptError{Path: ws.StatePath(), Err: err}
	}
	return st, nil
}

// Save writes the state atomically via temp file + rename, so a concurrent
// reader sees either the previous or the new state, never a torn write.
func Save(ws *workspace.Workspace, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := ws.StatePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write timer state: %w", err)
	}
	if err := os.Rename(tmp, ws.StatePath()); err != nil {
		return fmt.Errorf("write timer state: %w", err)
	}
	return nil
}

// Clear removes the state file. Missing is not an error.
func Clear(ws *workspace.Workspace) error {
	err := os.Remove(ws.StatePath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove timer state: %w", err)
	}
	return nil
}

// Recover puts a broken workspace back into a usable shape: any existing
// state file is archived next to itself as timer.state.corrupt and a fresh
// idle state for today is written.
func Recover(ws *workspace.Workspace, now time.Time) (State, error) {
	src := ws.StatePath()
	if _, err := os.Stat(src); err == nil {
		if err := os.Rename(src, src+".corrupt"); err != nil {
			return State{}, fmt.Errorf("archive corrupt state: %w", err)
		}
	}
	st := NewIdle(DayOf(now))
	if err := Save(ws, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Running reports whether the phase accumulates elapsed time.
func (s State) Running() bool {
	switch s.Phase {
	case PhaseFocus, PhaseShortBreak, PhaseLongBreak:
		return true
	}
	return false
}

// InBreak reports whether the phase is one of the break variants.
func (s State) InBreak() bool {
	return s.Phase == PhaseShortBreak || s.Phase == PhaseLongBreak
}

// Elapsed returns the seconds of running time spent in the current phase.
// While paused only the pre-pause progress counts. While running, the span
// since PhaseStartedAt is recomputed from the absolute timestamp on every
// call: the result does not depend on anyone having polled in between,
// which is what lets a restarted daemon pick up exactly where the dead one
// left off.
func (s State) Elapsed(now time.Time) int64 {
	if s.PhaseStartedAt == 0 {
		return s.PausedElapsed
	}
	elapsed := s.PausedElapsed + now.Unix() - s.PhaseStartedAt
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns the seconds left in the current phase, never negative.
func (s State) Remaining(now time.Time) int64 {
	rem := s.PhaseDuration - s.Elapsed(now)
	if rem < 0 {
		return 0
	}
	return rem
}
