package timer_test

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ilocn/pomo/internal/timer"
	"github.com/ilocn/pomo/internal/workspace"
)

func TestApplyStartSeedsState(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	st, events, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdStart}, at(0))
	if err != nil {
		t.Fatalf("Apply(start): %v", err)
	}
	if st.Phase != timer.PhaseFocus {
		t.Errorf("Phase = %s, want focus", st.Phase)
	}
	if got := kinds(events); got != "focus-start" {
		t.Errorf("events = %s, want focus-start", got)
	}

	persisted, err := timer.Load(ws)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted != st {
		t.Errorf("persisted = %+v, want %+v", persisted, st)
	}
	if _, err := os.Stat(ws.LockPath()); !os.IsNotExist(err) {
		t.Error("lock file left behind after Apply")
	}
}

func TestApplyWithoutStateIsErrNoTimer(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	for _, cmd := range []string{timer.CmdPause, timer.CmdResume, timer.CmdSkip, timer.CmdStop, timer.CmdTick} {
		_, _, err := timer.Apply(ws, timer.Input{Cmd: cmd}, at(0))
		if !errors.Is(err, timer.ErrNoTimer) {
			t.Errorf("Apply(%s) = %v, want ErrNoTimer", cmd, err)
		}
	}
}

func TestApplyCorruptState(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	if err := os.WriteFile(ws.StatePath(), []byte("#!"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdTick}, at(0))
	var ce *timer.CorruptError
	if !errors.As(err, &ce) {
		t.Errorf("err = %v, want CorruptError", err)
	}
}

func TestApplyRejectedCommandDoesNotPersist(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	before, _, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdStart}, at(0))
	if err != nil {
		t.Fatalf("Apply(start): %v", err)
	}

	_, _, err = timer.Apply(ws, timer.Input{Cmd: timer.CmdResume}, at(100))
	if !errors.Is(err, timer.ErrInvalidTransition) {
		t.Fatalf("Apply(resume) = %v, want ErrInvalidTransition", err)
	}
	after, err := timer.Load(ws)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if after != before {
		t.Errorf("rejected command changed persisted state: %+v vs %+v", after, before)
	}
}

func TestApplyPersistsRolloverDespiteRejection(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	stale := timer.State{
		Phase:          timer.PhaseFocus,
		PhaseStartedAt: at(0).Unix() - 86400,
		PhaseDuration:  1500,
		Completed:      5,
		Day:            "2026-03-13",
	}
	if err := timer.Save(ws, stale); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, events, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdPause}, at(0))
	if !errors.Is(err, timer.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if got := kinds(events); got != "day-rollover" {
		t.Errorf("events = %s, want day-rollover", got)
	}

	persisted, err := timer.Load(ws)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Day != "2026-03-14" || persisted.Phase != timer.PhaseIdle || persisted.Completed != 0 {
		t.Errorf("persisted = %+v, want fresh idle for 2026-03-14", persisted)
	}
}

func TestApplyBusyWhenLockHeldElsewhere(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	ws.Config.Daemon.LockTimeout = workspace.Duration(30 * time.Millisecond)

	// A live foreign holder: the acquire loop cannot reclaim it and must
	// give up after the timeout.
	if err := os.WriteFile(ws.LockPath(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdStart}, at(0))
	if !errors.Is(err, timer.ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

func TestApplyConcurrentPausesHaveOneWinner(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	if _, _, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdStart}, at(0)); err != nil {
		t.Fatalf("Apply(start): %v", err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		paused int
		other  []error
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdPause}, at(100))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				paused++
				return
			}
			other = append(other, err)
		}()
	}
	wg.Wait()

	if paused != 1 {
		t.Fatalf("%d pauses succeeded, want exactly 1", paused)
	}
	for _, err := range other {
		if !errors.Is(err, timer.ErrInvalidTransition) {
			t.Errorf("loser got %v, want ErrInvalidTransition", err)
		}
	}

	st, err := timer.Load(ws)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Phase != timer.PhasePaused || st.PausedElapsed != 100 {
		t.Errorf("final state = %+v, want paused at 100s", st)
	}
}

func TestSeedWritesIdleState(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	st, err := timer.Seed(ws, base)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if st.Phase != timer.PhaseIdle || st.Day != "2026-03-14" {
		t.Errorf("seeded = %+v, want idle for 2026-03-14", st)
	}
	persisted, err := timer.Load(ws)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted != st {
		t.Errorf("persisted = %+v, want %+v", persisted, st)
	}
}

func TestSeedKeepsSameDayState(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	running, _, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdStart}, at(0))
	if err != nil {
		t.Fatalf("Apply(start): %v", err)
	}

	st, err := timer.Seed(ws, at(600))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if st != running {
		t.Errorf("Seed replaced a same-day state: %+v vs %+v", st, running)
	}
}

func TestSeedReplacesStaleDayState(t *testing.T) {
	t.Parallel()
	ws := newWS(t)
	stale := timer.State{Phase: timer.PhaseStopped, Completed: 6, Day: "2026-03-13"}
	if err := timer.Save(ws, stale); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st, err := timer.Seed(ws, base)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if st.Phase != timer.PhaseIdle || st.Day != "2026-03-14" || st.Completed != 0 {
		t.Errorf("seeded = %+v, want fresh idle for 2026-03-14", st)
	}
}
