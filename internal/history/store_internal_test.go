package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ilocn/pomo/internal/timer"
)

// A skipped focus is backdated by the time it actually ran, not by the
// configured duration, so the logged span matches what really happened.
func TestRecordEventBackdatesByElapsed(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	e := timer.Event{
		Kind: timer.EventSkipped, Phase: timer.PhaseFocus,
		Duration: 1500, Elapsed: 600, Day: "2026-03-14",
	}
	if err := s.RecordEvent(ctx, e, now); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	var started, ended int64
	err = s.db.QueryRowContext(ctx,
		`SELECT started_at, ended_at FROM pomodoros WHERE skipped = 1`).
		Scan(&started, &ended)
	if err != nil {
		t.Fatalf("query pomodoro row: %v", err)
	}
	if got := ended - started; got != 600 {
		t.Errorf("row spans %ds, want the 600s actually run", got)
	}
	if ended != now.Unix() {
		t.Errorf("ended_at = %d, want %d", ended, now.Unix())
	}
}
