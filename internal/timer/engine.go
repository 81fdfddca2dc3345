package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilocn/pomo/internal/workspace"
)

// Commands accepted by Transition. Tick is what the daemon feeds on every
// poll; the others map one-to-one to CLI verbs.
const (
	CmdStart  = "start"
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdSkip   = "skip"
	CmdStop   = "stop"
	CmdTick   = "tick"
)

// ErrInvalidTransition reports a command the current phase cannot accept.
// The wrapped message names both the command and the phase.
var ErrInvalidTransition = errors.New("invalid transition")

// Event kinds produced by Transition.
const (
	EventFocusStart  = "focus-start"
	EventFocusDone   = "focus-done"
	EventBreakStart  = "break-start"
	EventBreakDone   = "break-done"
	EventPaused      = "paused"
	EventResumed     = "resumed"
	EventSkipped     = "skipped"
	EventStopped     = "stopped"
	EventDayRollover = "day-rollover"
)

// Event is one side effect of a transition. It carries enough context for
// notification text and history recording so consumers never have to
// re-read the state file.
type Event struct {
	Kind string

	// Phase is the phase entered for start events, or the phase that just
	// ended for done/skipped/stopped events.
	Phase     string
	BreakKind string

	// Duration is the configured seconds of the phase entered.
	Duration int64

	// Elapsed is the running seconds the ended phase actually accumulated,
	// set on done and skipped events. For a skip it is smaller than the
	// configured duration.
	Elapsed int64

	// Remaining is the seconds left at the moment of a pause or resume.
	Remaining int64

	// Completed is the pomodoro count after the transition.
	Completed int
	Task      int
	Day       string

	// PrevDay is set on day-rollover events.
	PrevDay string
}

// Rules carries the configured durations and policy the engine needs on
// every evaluation.
type Rules struct {
	Focus          time.Duration
	ShortBreak     time.Duration
	LongBreak      time.Duration
	LongBreakEvery int

	// SkipCountsFocus credits a skipped focus phase to the daily count.
	SkipCountsFocus bool
}

// RulesFrom extracts the engine rules from a workspace config.
func RulesFrom(cfg *workspace.Config) Rules {
	return Rules{
		Focus:           cfg.Timer.Focus.Std(),
		ShortBreak:      cfg.Timer.ShortBreak.Std(),
		LongBreak:       cfg.Timer.LongBreak.Std(),
		LongBreakEvery:  cfg.Timer.LongBreakEvery,
		SkipCountsFocus: cfg.Timer.SkipCountsFocus,
	}
}

func (r Rules) withDefaults() Rules {
	if r.Focus <= 0 {
		r.Focus = 25 * time.Minute
	}
	if r.ShortBreak <= 0 {
		r.ShortBreak = 5 * time.Minute
	}
	if r.LongBreak <= 0 {
		r.LongBreak = 15 * time.Minute
	}
	if r.LongBreakEvery <= 0 {
		r.LongBreakEvery = 4
	}
	return r
}

// Input is one command submission.
type Input struct {
	Cmd string

	// Task is the 1-based task position attached on CmdStart, 0 for none.
	Task int
}

// Transition is the state machine: given the current state, the rules, one
// input, and the wall-clock time, it returns the next state and the
// side-effect events. Pure: it never touches the filesystem, and equal
// arguments always yield equal results. Elapsed time is recomputed from
// absolute timestamps on every evaluation, so tick frequency (or ticks
// missed while a process was dead) cannot change the outcome.
func Transition(st State, r Rules, in Input, now time.Time) (State, []Event, error) {
	r = r.withDefaults()
	var events []Event

	// State from an earlier calendar day never resumes. It collapses to a
	// fresh idle state for today before the input is considered, and the
	// rollover surfaces as an informational event rather than an error.
	today := DayOf(now)
	if st.Day != "" && st.Day != today {
		prev := st.Day
		st = NewIdle(today)
		events = append(events, Event{Kind: EventDayRollover, Day: today, PrevDay: prev})
	}
	if st.Day == "" {
		st.Phase = PhaseIdle
		st.Day = today
	}

	switch in.Cmd {
	case CmdTick:
		st, events = runTick(st, r, events, now)
		return st, events, nil

	case CmdStart:
		if st.Phase != PhaseIdle && st.Phase != PhaseStopped {
			return st, events, reject(in.Cmd, st.Phase)
		}
		// The daily count survives a stop/start cycle; only a day rollover
		// or done resets it.
		st = State{
			Phase:          PhaseFocus,
			PhaseStartedAt: now.Unix(),
			PhaseDuration:  seconds(r.Focus),
			Completed:      st.Completed,
			ActiveTask:     in.Task,
			Day:            st.Day,
		}
		events = append(events, Event{
			Kind: EventFocusStart, Phase: PhaseFocus,
			Duration: st.PhaseDuration, Completed: st.Completed,
			Task: st.ActiveTask, Day: st.Day,
		})
		return st, events, nil

	case CmdPause:
		if !st.Running() {
			return st, events, reject(in.Cmd, st.Phase)
		}
		st.PausedElapsed = st.Elapsed(now)
		st.PausedPhase = st.Phase
		st.Phase = PhasePaused
		st.PhaseStartedAt = 0
		events = append(events, Event{
			Kind: EventPaused, Phase: st.PausedPhase, BreakKind: st.BreakKind,
			Remaining: st.Remaining(now), Completed: st.Completed,
			Task: st.ActiveTask, Day: st.Day,
		})
		return st, events, nil

	case CmdResume:
		if st.Phase != PhasePaused {
			return st, events, reject(in.Cmd, st.Phase)
		}
		st.Phase = st.PausedPhase
		st.PausedPhase = ""
		st.PhaseStartedAt = now.Unix()
		events = append(events, Event{
			Kind: EventResumed, Phase: st.Phase, BreakKind: st.BreakKind,
			Remaining: st.Remaining(now), Completed: st.Completed,
			Task: st.ActiveTask, Day: st.Day,
		})
		return st, events, nil

	case CmdSkip:
		if !st.Running() {
			return st, events, reject(in.Cmd, st.Phase)
		}
		if st.Phase == PhaseFocus {
			st, events = finishFocus(st, r, events, now, r.SkipCountsFocus, true)
		} else {
			st, events = finishBreak(st, r, events, now, true)
		}
		return st, events, nil

	case CmdStop:
		if st.Phase == PhaseIdle || st.Phase == PhaseStopped {
			return st, events, reject(in.Cmd, st.Phase)
		}
		ended := st.Phase
		if ended == PhasePaused {
			ended = st.PausedPhase
		}
		st = State{Phase: PhaseStopped, Completed: st.Completed, Day: st.Day}
		events = append(events, Event{
			Kind: EventStopped, Phase: ended,
			Completed: st.Completed, Day: st.Day,
		})
		return st, events, nil

	default:
		return st, events, fmt.Errorf("unknown command %q", in.Cmd)
	}
}

func reject(cmd, phase string) error {
	return fmt.Errorf("%w: cannot %s while timer is %s", ErrInvalidTransition, cmd, phase)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// runTick advances a running phase whose duration has fully elapsed.
// Everything else is a no-op: ticks are never errors, and pause/idle/
// stopped states simply wait for a command.
func runTick(st State, r Rules, events []Event, now time.Time) (State, []Event) {
	if !st.Running() || st.Elapsed(now) < st.PhaseDuration {
		return st, events
	}
	if st.Phase == PhaseFocus {
		return finishFocus(st, r, events, now, true, false)
	}
	return finishBreak(st, r, events, now, false)
}

// finishFocus closes the focus phase and opens the break that follows it.
// credit controls whether the pomodoro counts toward the daily total: a
// natural completion always credits, a skip credits only under the
// skip_counts_focus policy. Every LongBreakEvery-th credited pomodoro
// earns the long break; otherwise the short break kind alternates within
// the current long-break cycle (odd position email, even rest). An
// uncredited skip leaves the slot unconsumed, so the same slot comes up
// again.
func finishFocus(st State, r Rules, events []Event, now time.Time, credit, skipped bool) (State, []Event) {
	elapsed := st.Elapsed(now)
	slot := st.Completed + 1
	if credit {
		st.Completed = slot
	}

	kind := EventFocusDone
	if skipped {
		kind = EventSkipped
	}
	events = append(events, Event{
		Kind: kind, Phase: PhaseFocus, Duration: st.PhaseDuration,
		Elapsed: elapsed, Completed: st.Completed,
		Task: st.ActiveTask, Day: st.Day,
	})

	if credit && st.Completed%r.LongBreakEvery == 0 {
		st.Phase = PhaseLongBreak
		st.BreakKind = ""
		st.PhaseDuration = seconds(r.LongBreak)
	} else {
		st.Phase = PhaseShortBreak
		st.BreakKind = breakKindFor(slot, r.LongBreakEvery)
		st.PhaseDuration = seconds(r.ShortBreak)
	}
	st.PhaseStartedAt = now.Unix()
	st.PausedElapsed = 0

	events = append(events, Event{
		Kind: EventBreakStart, Phase: st.Phase, BreakKind: st.BreakKind,
		Duration: st.PhaseDuration, Completed: st.Completed,
		Task: st.ActiveTask, Day: st.Day,
	})
	return st, events
}

// finishBreak closes the running break and opens the next focus phase. The
// task reference carries over so consecutive pomodoros stay attached to
// the same task until a new timer is started.
func finishBreak(st State, r Rules, events []Event, now time.Time, skipped bool) (State, []Event) {
	kind := EventBreakDone
	if skipped {
		kind = EventSkipped
	}
	events = append(events, Event{
		Kind: kind, Phase: st.Phase, BreakKind: st.BreakKind,
		Elapsed: st.Elapsed(now), Completed: st.Completed,
		Task: st.ActiveTask, Day: st.Day,
	})

	st.Phase = PhaseFocus
	st.BreakKind = ""
	st.PhaseDuration = seconds(r.Focus)
	st.PhaseStartedAt = now.Unix()
	st.PausedElapsed = 0

	events = append(events, Event{
		Kind: EventFocusStart, Phase: PhaseFocus, Duration: st.PhaseDuration,
		Completed: st.Completed, Task: st.ActiveTask, Day: st.Day,
	})
	return st, events
}

// breakKindFor alternates the short break kind by position inside the
// long-break cycle: odd positions take the email break, even positions
// the rest break. The alternation restarts after every long break, so
// the first short break of each cycle is always email.
func breakKindFor(slot, every int) string {
	if pos := slot % every; pos%2 == 1 {
		return BreakEmail
	}
	return BreakRest
}
