// Package history keeps the daily record: planned and completed
// pomodoros, tasks, break counts, end-of-day reviews and the activity
// streak. Everything lives in one SQLite database per workspace.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ilocn/pomo/internal/timer"
)

const schema = `
CREATE TABLE IF NOT EXISTS days (
	day TEXT PRIMARY KEY,
	planned INTEGER NOT NULL DEFAULT 0,
	completed INTEGER NOT NULL DEFAULT 0,
	email_breaks INTEGER NOT NULL DEFAULT 0,
	rest_breaks INTEGER NOT NULL DEFAULT 0,
	long_breaks INTEGER NOT NULL DEFAULT 0,
	satisfaction INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL DEFAULT 0,
	ended_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	day TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	done_at INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_day_position ON tasks(day, position);

CREATE TABLE IF NOT EXISTS pomodoros (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	day TEXT NOT NULL,
	task INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL DEFAULT 0,
	ended_at INTEGER NOT NULL DEFAULT 0,
	completed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pomodoros_day ON pomodoros(day);

CREATE TABLE IF NOT EXISTS streaks (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current INTEGER NOT NULL DEFAULT 0,
	longest INTEGER NOT NULL DEFAULT 0,
	last_active TEXT NOT NULL DEFAULT ''
);
`

var (
	// ErrDayAlreadyStarted reports a StartDay for a day that has a record.
	ErrDayAlreadyStarted = errors.New("day already started")

	// ErrDayNotStarted reports an operation on a day without a record.
	ErrDayNotStarted = errors.New("day not started")

	// ErrNoSuchTask reports a task position that does not exist for the day.
	ErrNoSuchTask = errors.New("no such task")
)

// DayRecord is one row of the days table.
type DayRecord struct {
	Day          string
	Planned      int
	Completed    int
	EmailBreaks  int
	RestBreaks   int
	LongBreaks   int
	Satisfaction int
	Notes        string
	StartedAt    int64
	EndedAt      int64
}

// Task is one planned item for a day. Position is 1-based and stable for
// the whole day; the timer refers to tasks by it.
type Task struct {
	Day      string
	Position int
	Title    string
	Done     bool
	DoneAt   int64
}

// Streak is the consecutive-active-days record.
type Streak struct {
	Current    int
	Longest    int
	LastActive string
}

// Summary aggregates the numbers the stats command shows.
type Summary struct {
	TotalPomodoros int
	ActiveDays     int
	Streak         Streak
	Recent         []DayRecord
}

// Store wraps the workspace history database. Methods are safe for
// concurrent use within a process; cross-process writers are already
// serialized by the timer lock.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO streaks (id, current, longest, last_active) VALUES (1, 0, 0, '')`); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed streak row: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// StartDay creates the record for day with its pomodoro plan.
func (s *Store) StartDay(ctx context.Context, day string, planned int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM days WHERE day = ?`, day).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check day: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrDayAlreadyStarted, day)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO days (day, planned, started_at) VALUES (?, ?, ?)`,
		day, planned, now.Unix())
	if err != nil {
		return fmt.Errorf("insert day: %w", err)
	}
	return nil
}

// Day returns the record for day, or ErrDayNotStarted.
func (s *Store) Day(ctx context.Context, day string) (DayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day(ctx, day)
}

func (s *Store) day(ctx context.Context, day string) (DayRecord, error) {
	var d DayRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT day, planned, completed, email_breaks, rest_breaks, long_breaks,
		        satisfaction, notes, started_at, ended_at
		 FROM days WHERE day = ?`, day).
		Scan(&d.Day, &d.Planned, &d.Completed, &d.EmailBreaks, &d.RestBreaks,
			&d.LongBreaks, &d.Satisfaction, &d.Notes, &d.StartedAt, &d.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DayRecord{}, fmt.Errorf("%w: %s", ErrDayNotStarted, day)
	}
	if err != nil {
		return DayRecord{}, fmt.Errorf("query day: %w", err)
	}
	return d, nil
}

// ensureDay inserts a bare record for day if none exists yet, so events
// and tasks recorded before an explicit plan still have a home.
func (s *Store) ensureDay(ctx context.Context, day string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO days (day, started_at) VALUES (?, ?)`,
		day, now.Unix())
	if err != nil {
		return fmt.Errorf("ensure day: %w", err)
	}
	return nil
}

// EndDay closes day with the review answers, stamps the end time and
// advances the streak. Returns the streak after the update.
func (s *Store) EndDay(ctx context.Context, day string, satisfaction int, notes string, now time.Time) (Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE days SET satisfaction = ?, notes = ?, ended_at = ? WHERE day = ?`,
		satisfaction, notes, now.Unix(), day)
	if err != nil {
		return Streak{}, fmt.Errorf("end day: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Streak{}, fmt.Errorf("end day: %w", err)
	}
	if n == 0 {
		return Streak{}, fmt.Errorf("%w: %s", ErrDayNotStarted, day)
	}
	return s.updateStreak(ctx, day)
}

// updateStreak marks day active. Same day twice is a no-op; the day after
// last_active extends the run; anything else restarts it at 1.
func (s *Store) updateStreak(ctx context.Context, day string) (Streak, error) {
	st, err := s.streak(ctx)
	if err != nil {
		return Streak{}, err
	}
	if st.LastActive == day {
		return st, nil
	}

	switch st.LastActive {
	case yesterdayOf(day):
		st.Current++
	default:
		st.Current = 1
	}
	if st.Current > st.Longest {
		st.Longest = st.Current
	}
	st.LastActive = day

	_, err = s.db.ExecContext(ctx,
		`UPDATE streaks SET current = ?, longest = ?, last_active = ? WHERE id = 1`,
		st.Current, st.Longest, st.LastActive)
	if err != nil {
		return Streak{}, fmt.Errorf("update streak: %w", err)
	}
	return st, nil
}

func (s *Store) streak(ctx context.Context) (Streak, error) {
	var st Streak
	err := s.db.QueryRowContext(ctx,
		`SELECT current, longest, last_active FROM streaks WHERE id = 1`).
		Scan(&st.Current, &st.Longest, &st.LastActive)
	if err != nil {
		return Streak{}, fmt.Errorf("query streak: %w", err)
	}
	return st, nil
}

// yesterdayOf returns the calendar day before a "2006-01-02" day string.
// A malformed day yields an empty string, which never matches.
func yesterdayOf(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// AddTask appends a task to day's list and returns its 1-based position.
func (s *Store) AddTask(ctx context.Context, day, title string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDay(ctx, day, now); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE day = ?`, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	pos := count + 1
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (day, position, title) VALUES (?, ?, ?)`,
		day, pos, title)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return pos, nil
}

// Tasks returns day's tasks in position order.
func (s *Store) Tasks(ctx context.Context, day string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT day, position, title, done, done_at FROM tasks WHERE day = ? ORDER BY position`, day)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var done int
		if err := rows.Scan(&t.Day, &t.Position, &t.Title, &done, &t.DoneAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Done = done != 0
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// TaskTitle resolves a task position to its title. Position 0 or a
// missing row yields ErrNoSuchTask.
func (s *Store) TaskTitle(ctx context.Context, day string, position int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var title string
	err := s.db.QueryRowContext(ctx,
		`SELECT title FROM tasks WHERE day = ? AND position = ?`, day, position).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s #%d", ErrNoSuchTask, day, position)
	}
	if err != nil {
		return "", fmt.Errorf("query task: %w", err)
	}
	return title, nil
}

// FinishTask marks the task at position done.
func (s *Store) FinishTask(ctx context.Context, day string, position int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET done = 1, done_at = ? WHERE day = ? AND position = ?`,
		now.Unix(), day, position)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s #%d", ErrNoSuchTask, day, position)
	}
	return nil
}

// RecordEvent folds one timer event into the daily record. Unknown and
// purely informational kinds are no-ops, so callers can feed every event
// through without filtering.
func (s *Store) RecordEvent(ctx context.Context, e timer.Event, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case timer.EventFocusStart:
		return s.ensureDay(ctx, e.Day, now)

	case timer.EventFocusDone, timer.EventSkipped:
		if e.Phase != timer.PhaseFocus {
			return nil
		}
		if err := s.ensureDay(ctx, e.Day, now); err != nil {
			return err
		}
		completed := 0
		if e.Kind == timer.EventFocusDone {
			completed = 1
		}
		skipped := 0
		if e.Kind == timer.EventSkipped {
			skipped = 1
		}
		// Backdate by the running time actually accumulated, so a skipped
		// row spans what was really focused rather than the configured
		// duration.
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO pomodoros (day, task, started_at, ended_at, completed, skipped)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Day, e.Task, now.Unix()-e.Elapsed, now.Unix(), completed, skipped)
		if err != nil {
			return fmt.Errorf("insert pomodoro: %w", err)
		}
		// The engine's count is authoritative; the day row mirrors it.
		_, err = s.db.ExecContext(ctx,
			`UPDATE days SET completed = ? WHERE day = ?`, e.Completed, e.Day)
		if err != nil {
			return fmt.Errorf("update day count: %w", err)
		}
		return nil

	case timer.EventBreakStart:
		if err := s.ensureDay(ctx, e.Day, now); err != nil {
			return err
		}
		col := "rest_breaks"
		switch {
		case e.Phase == timer.PhaseLongBreak:
			col = "long_breaks"
		case e.BreakKind == timer.BreakEmail:
			col = "email_breaks"
		}
		_, err := s.db.ExecContext(ctx,
			`UPDATE days SET `+col+` = `+col+` + 1 WHERE day = ?`, e.Day)
		if err != nil {
			return fmt.Errorf("update break count: %w", err)
		}
		return nil
	}
	return nil
}

// Stats aggregates the all-time numbers plus the last recentDays day rows.
func (s *Store) Stats(ctx context.Context, recentDays int) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Day rows are the authoritative counts: they mirror the engine's
	// counter, which credits skips according to policy where the raw
	// pomodoro log records them as skipped.
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(completed), 0) FROM days`).Scan(&sum.TotalPomodoros)
	if err != nil {
		return Summary{}, fmt.Errorf("count pomodoros: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM days WHERE completed > 0`).Scan(&sum.ActiveDays)
	if err != nil {
		return Summary{}, fmt.Errorf("count active days: %w", err)
	}
	if sum.Streak, err = s.streak(ctx); err != nil {
		return Summary{}, err
	}
	if sum.Recent, err = s.recent(ctx, recentDays); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// Recent returns the last n day records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]DayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent(ctx, n)
}

func (s *Store) recent(ctx context.Context, n int) ([]DayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, planned, completed, email_breaks, rest_breaks, long_breaks,
		        satisfaction, notes, started_at, ended_at
		 FROM days ORDER BY day DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent days: %w", err)
	}
	defer rows.Close()

	var days []DayRecord
	for rows.Next() {
		var d DayRecord
		if err := rows.Scan(&d.Day, &d.Planned, &d.Completed, &d.EmailBreaks,
			&d.RestBreaks, &d.LongBreaks, &d.Satisfaction, &d.Notes,
			&d.StartedAt, &d.EndedAt); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return days, nil
}
