// Package daemon runs the background loop that feeds ticks to the timer
// while a phase is running. The daemon holds no state of its own: all
// progress lives in the workspace files, so a killed daemon loses nothing
// and the next one resumes mid-phase.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilocn/pomo/internal/history"
	"github.com/ilocn/pomo/internal/notify"
	"github.com/ilocn/pomo/internal/proc"
	"github.com/ilocn/pomo/internal/timer"
	"github.com/ilocn/pomo/internal/workspace"
)

// Effects are the consumers fed with timer events. Either field may be
// nil; a nil consumer is skipped.
type Effects struct {
	Notifier notify.Notifier
	History  *history.Store
}

// Dispatch fans events out to the history store and the notifier.
// Best-effort on both counts: a consumer failure is logged and swallowed,
// never surfaced to the timer.
func (fx Effects) Dispatch(ctx context.Context, events []timer.Event, now time.Time) {
	for _, e := range events {
		if fx.History != nil {
			if err := fx.History.RecordEvent(ctx, e, now); err != nil {
				slog.Warn("history record failed", slog.String("event", e.Kind), slog.Any("error", err))
			}
		}
		if fx.Notifier == nil {
			continue
		}
		text := notify.Render(e, fx.taskTitle(ctx, e))
		if text == "" {
			continue
		}
		if err := fx.Notifier.Notify(ctx, text); err != nil {
			slog.Warn("notification failed", slog.String("event", e.Kind), slog.Any("error", err))
		}
	}
}

// taskTitle resolves the task a focus phase runs against, for message
// text. Only focus starts name the task.
func (fx Effects) taskTitle(ctx context.Context, e timer.Event) string {
	if fx.History == nil || e.Task == 0 || e.Kind != timer.EventFocusStart {
		return ""
	}
	title, err := fx.History.TaskTitle(ctx, e.Day, e.Task)
	if err != nil {
		return ""
	}
	return title
}

// Run drives the timer until it no longer needs ticks: the state reaches
// idle or stopped, the state file disappears, or ctx is cancelled. The
// first step runs before any ticker wait, so a daemon spawned right after
// a start command reacts immediately.
func Run(ctx context.Context, ws *workspace.Workspace, fx Effects) error {
	pid := os.Getpid()
	if err := claimMarker(ws.DaemonPIDPath(), pid); err != nil {
		return err
	}
	defer proc.RemovePID(ws.DaemonPIDPath(), pid)
	defer os.Remove(ws.HeartbeatPath())

	poll := ws.Config.Daemon.Poll.Std()
	slog.Info("daemon started", slog.Int("pid", pid), slog.Duration("poll", poll))

	tick := time.NewTicker(poll)
	defer tick.Stop()

	for {
		done, err := step(ctx, ws, fx)
		if err != nil {
			return err
		}
		if done {
			slog.Info("daemon exiting, timer needs no ticks")
			return nil
		}
		select {
		case <-ctx.Done():
			slog.Info("daemon interrupted")
			return nil
		case <-tick.C:
		}
	}
}

// step performs one heartbeat and one tick. done reports that the timer
// no longer needs a ticking daemon.
func step(ctx context.Context, ws *workspace.Workspace, fx Effects) (bool, error) {
	now := time.Now()
	if err := writeHeartbeat(ws, now); err != nil {
		slog.Warn("heartbeat write failed", slog.Any("error", err))
	}

	st, events, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdTick}, now)
	switch {
	case errors.Is(err, timer.ErrNoTimer):
		return true, nil
	case errors.Is(err, timer.ErrBusy):
		// Another process holds the lock right now. Whatever it changes is
		// picked up on the next poll; elapsed time keys off absolute
		// timestamps, so nothing is lost by waiting.
		slog.Debug("tick skipped, timer busy")
		return false, nil
	case err != nil:
		// A daemon that cannot read or persist state would silently drop
		// phase completions if it kept polling.
		return false, fmt.Errorf("tick: %w", err)
	}

	fx.Dispatch(ctx, events, now)

	switch st.Phase {
	case timer.PhaseIdle, timer.PhaseStopped:
		return true, nil
	}
	return false, nil
}

// claimMarker writes the daemon pid marker with an exclusive create, so
// two daemons starting together see exactly one winner. A marker naming
// a live daemon refuses the claim; one naming a dead process is removed
// and contested again.
func claimMarker(path string, pid int) error {
	for {
		err := proc.ClaimPID(path, pid)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("claim daemon marker: %w", err)
		}
		holder, rerr := proc.ReadPID(path)
		switch {
		case rerr == nil && proc.Alive(holder):
			return fmt.Errorf("daemon already running (pid %d)", holder)
		case rerr == nil:
			// Dead daemon left its marker behind. RemovePID re-checks the
			// content, so a marker already taken over is left alone.
			proc.RemovePID(path, holder)
		case os.IsNotExist(rerr):
			// Released between the failed claim and the read.
		default:
			// Unreadable marker; a fresh claim always writes a valid pid.
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("reclaim daemon marker: %w", err)
			}
		}
	}
}

// Running reports the live daemon pid for the workspace, if any. A pid
// file naming a dead process does not count.
func Running(ws *workspace.Workspace) (int, bool) {
	pid, err := proc.ReadPID(ws.DaemonPIDPath())
	if err != nil || !proc.Alive(pid) {
		return 0, false
	}
	return pid, true
}

func writeHeartbeat(ws *workspace.Workspace, now time.Time) error {
	return os.WriteFile(ws.HeartbeatPath(), []byte(strconv.FormatInt(now.Unix(), 10)+"\n"), 0644)
}

// HeartbeatAge returns how long ago the daemon last ticked. ok is false
// when no readable heartbeat exists.
func HeartbeatAge(ws *workspace.Workspace, now time.Time) (time.Duration, bool) {
	data, err := os.ReadFile(ws.HeartbeatPath())
	if err != nil {
		return 0, false
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	age := now.Sub(time.Unix(sec, 0))
	if age < 0 {
		age = 0
	}
	return age, true
}
