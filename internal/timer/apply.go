package timer

import (
	"errors"
	"os"
	"time"

	"github.com/ilocn/pomo/internal/workspace"
)

// Apply submits one command to the workspace timer. It is the only
// mutation path: every caller, CLI and daemon alike, goes through the
// same locked load-transition-save cycle, so two processes can never
// interleave a read-modify-write.
//
// A missing state file is an ErrNoTimer for every command except
// CmdStart, which seeds a fresh idle state for today. The new state is
// persisted whenever it differs from the loaded one, including the case
// where a day rollover collapsed the state and the command itself was
// then rejected.
func Apply(ws *workspace.Workspace, in Input, now time.Time) (State, []Event, error) {
	pid := os.Getpid()
	if err := acquireLock(ws.LockPath(), pid, ws.Config.Daemon.LockTimeout.Std()); err != nil {
		return State{}, nil, err
	}
	defer releaseLock(ws.LockPath(), pid)

	st, err := Load(ws)
	if err != nil {
		if !errors.Is(err, ErrNoTimer) || in.Cmd != CmdStart {
			return State{}, nil, err
		}
		st = NewIdle(DayOf(now))
	}

	next, events, terr := Transition(st, RulesFrom(ws.Config), in, now)
	if next != st {
		if serr := Save(ws, next); serr != nil {
			return next, events, serr
		}
	}
	return next, events, terr
}

// Seed writes a fresh idle state for now's day when none exists or the
// existing one belongs to an earlier day. A state already on today's day
// is returned untouched, so reseeding mid-day never loses a running
// phase or the completed count.
func Seed(ws *workspace.Workspace, now time.Time) (State, error) {
	pid := os.Getpid()
	if err := acquireLock(ws.LockPath(), pid, ws.Config.Daemon.LockTimeout.Std()); err != nil {
		return State{}, err
	}
	defer releaseLock(ws.LockPath(), pid)

	day := DayOf(now)
	st, err := Load(ws)
	if err == nil && st.Day == day {
		return st, nil
	}
	if err != nil && !errors.Is(err, ErrNoTimer) {
		return State{}, err
	}

	st = NewIdle(day)
	if err := Save(ws, st); err != nil {
		return State{}, err
	}
	return st, nil
}
