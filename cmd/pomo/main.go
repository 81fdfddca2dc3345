package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ilocn/pomo/internal/daemon"
	"github.com/ilocn/pomo/internal/history"
	"github.com/ilocn/pomo/internal/logger"
	"github.com/ilocn/pomo/internal/notify"
	"github.com/ilocn/pomo/internal/timer"
	"github.com/ilocn/pomo/internal/workspace"
)

var version = "dev" // injected via ldflags at build time

// Globals holds shared state injected into Run methods that need a workspace.
type Globals struct {
	once sync.Once
	ws   *workspace.Workspace
}

// WS lazily opens the workspace on first call.
// Commands that don't need a workspace (init, version) must not call this.
func (g *Globals) WS() *workspace.Workspace {
	g.once.Do(func() {
		g.ws = openWS()
	})
	return g.ws
}

// ─── Top-level CLI struct ────────────────────────────────────────────────────

type CLI struct {
	Init    InitCmd    `cmd:"" group:"setup"    help:"Create the workspace and seed config.toml."`
	Start   StartCmd   `cmd:"" group:"day"      help:"Start today's workday with a pomodoro plan."`
	Done    DoneCmd    `cmd:"" group:"day"      help:"Finish the workday, archive it, update streaks."`
	Timer   TimerCmd   `cmd:"" group:"timer"    help:"Start a pomodoro (launches the background daemon)."`
	Pause   PauseCmd   `cmd:"" group:"timer"    help:"Pause the running timer."`
	Resume  ResumeCmd  `cmd:"" group:"timer"    help:"Resume a paused timer."`
	Skip    SkipCmd    `cmd:"" group:"timer"    help:"Skip the current focus or break period."`
	Stop    StopCmd    `cmd:"" group:"timer"    help:"Stop the timer completely."`
	Task    TaskCmd    `cmd:"" group:"tasks"    help:"Manage today's tasks (add/list/done)."`
	Status  StatusCmd  `cmd:"" group:"observe"  help:"Show timer status and day progress."`
	Stats   StatsCmd   `cmd:"" group:"observe"  help:"Show overall statistics and streaks."`
	History HistoryCmd `cmd:"" group:"observe"  help:"Show recent workday history."`
	Log     LogCmd     `cmd:"" group:"observe"  help:"Print the daemon log."`
	Recover RecoverCmd `cmd:"" group:"maint"    help:"Reset a corrupt timer state and clear stale locks."`
	Version VersionCmd `cmd:"" group:"maint"    help:"Print version and platform info."`
	Daemon  DaemonCmd  `cmd:"" group:"internal" help:"Run the timer loop in the foreground. (Spawned by 'pomo timer'.)"`
}

// ─── init ────────────────────────────────────────────────────────────────────

type InitCmd struct {
	Dir   string `arg:"" optional:"" help:"Workspace directory (default: $POMO_HOME or ~/.pomo)."`
	Check bool   `help:"Validate telegram credentials and send a test message."`
}

func (c *InitCmd) Run() error {
	dir := c.Dir
	if dir == "" {
		var err error
		dir, err = workspace.DefaultRoot()
		if err != nil {
			return err
		}
	}

	ws, err := workspace.Init(dir, nil)
	if err != nil {
		if !c.Check {
			return err
		}
		// Re-checking credentials on an existing workspace is fine.
		ws, err = workspace.Open(dir)
		if err != nil {
			return err
		}
	} else {
		fmt.Printf("initialized pomo workspace at %s\n", ws.Root)
		fmt.Printf("config: %s\n", ws.ConfigPath())
		fmt.Println("telegram: put POMO_TELEGRAM_TOKEN and POMO_TELEGRAM_CHAT in .env, then enable it in config.toml")
	}

	if c.Check {
		return checkTelegram(ws)
	}
	return nil
}

func checkTelegram(ws *workspace.Workspace) error {
	tg, ok := notify.ForWorkspace(ws).(*notify.Telegram)
	if !ok {
		return fmt.Errorf("telegram is not configured: enable [telegram] in %s and set the token and chat id", ws.ConfigPath())
	}

	ctx := context.Background()
	username, err := tg.Check(ctx)
	if err != nil {
		return fmt.Errorf("telegram check: %w", err)
	}
	fmt.Printf("Connected as @%s\n", username)

	if err := tg.Notify(ctx, notify.TestText); err != nil {
		return fmt.Errorf("send test message: %w", err)
	}
	fmt.Println("Test message sent.")
	return nil
}

// ─── start ───────────────────────────────────────────────────────────────────

type StartCmd struct {
	Plan int `short:"p" default:"8" help:"Planned pomodoro count for today (default 8)."`
}

func (c *StartCmd) Run(g *Globals) error {
	if c.Plan < 1 {
		return fmt.Errorf("--plan must be at least 1, got %d", c.Plan)
	}

	ws := g.WS()
	now := time.Now()
	day := timer.DayOf(now)

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.StartDay(ctx, day, c.Plan, now); err != nil {
		return err
	}
	if _, err := timer.Seed(ws, now); err != nil {
		return err
	}

	tasks, err := store.Tasks(ctx, day)
	if err != nil {
		return err
	}
	printDayPlan(ws, day, c.Plan, tasks, now)

	if tg, ok := notify.ForWorkspace(ws).(*notify.Telegram); ok {
		titles := make([]string, 0, len(tasks))
		for _, t := range tasks {
			titles = append(titles, t.Title)
		}
		if err := tg.Notify(ctx, notify.DayStarted(c.Plan, titles)); err != nil {
			slog.Warn("day-start notification failed", slog.Any("error", err))
		} else {
			fmt.Println("\n📱 Plan sent to Telegram")
		}
	}
	return nil
}

// ─── done ────────────────────────────────────────────────────────────────────

type DoneCmd struct {
	Satisfaction int    `short:"s" default:"3" help:"Satisfaction rating 1-4 (default 3)."`
	Notes        string `help:"Notes for today."`
}

func (c *DoneCmd) Run(g *Globals) error {
	if c.Satisfaction < 1 || c.Satisfaction > 4 {
		return fmt.Errorf("--satisfaction must be 1-4, got %d", c.Satisfaction)
	}

	ws := g.WS()
	now := time.Now()
	day := timer.DayOf(now)

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	// Stop a live timer first so its final events land in today's record.
	if st, lerr := timer.Load(ws); lerr == nil && st.Day == day && (st.Running() || st.Phase == timer.PhasePaused) {
		_, events, aerr := timer.Apply(ws, timer.Input{Cmd: timer.CmdStop}, now)
		dispatch(ws, store, events, now)
		if aerr != nil {
			return aerr
		}
		fmt.Println("Timer stopped.")
	}

	streak, err := store.EndDay(ctx, day, c.Satisfaction, c.Notes, now)
	if err != nil {
		return err
	}
	rec, err := store.Day(ctx, day)
	if err != nil {
		return err
	}
	tasks, err := store.Tasks(ctx, day)
	if err != nil {
		return err
	}

	printDaySummary(rec, tasks, streak)

	// The day is archived; the state file has nothing left to say.
	if err := timer.Clear(ws); err != nil {
		return err
	}

	if tg, ok := notify.ForWorkspace(ws).(*notify.Telegram); ok {
		done := 0
		for _, t := range tasks {
			if t.Done {
				done++
			}
		}
		if err := tg.Notify(ctx, notify.DayDone(rec.Completed, rec.Planned, done, len(tasks))); err != nil {
			slog.Warn("day-complete notification failed", slog.Any("error", err))
		} else {
			fmt.Println("\n📱 Summary sent to Telegram")
		}
	}
	return nil
}

// ─── timer ───────────────────────────────────────────────────────────────────

type TimerCmd struct {
	Task int `short:"t" help:"Task number to work on."`
}

func (c *TimerCmd) Run(g *Globals) error {
	ws := g.WS()
	now := time.Now()
	day := timer.DayOf(now)

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Day(ctx, day); err != nil {
		if errors.Is(err, history.ErrDayNotStarted) {
			return fmt.Errorf("%w: run 'pomo start' to plan the day first", err)
		}
		return err
	}

	var title string
	if c.Task > 0 {
		title, err = store.TaskTitle(ctx, day, c.Task)
		if err != nil {
			return err
		}
	}

	st, events, err := timer.Apply(ws, timer.Input{Cmd: timer.CmdStart, Task: c.Task}, now)
	dispatch(ws, store, events, now)
	if err != nil {
		// A running timer whose daemon died is restartable without
		// touching the phase.
		if errors.Is(err, timer.ErrInvalidTransition) && st.Running() {
			if _, alive := daemon.Running(ws); !alive {
				pid, serr := daemon.Spawn(ws)
				if serr != nil {
					return serr
				}
				fmt.Printf("Timer already running. Restarted daemon (pid %d).\n", pid)
				return nil
			}
		}
		return err
	}

	if title != "" {
		fmt.Printf("Working on: %s\n", title)
	}
	fmt.Printf("Starting pomodoro #%d.\n", st.Completed+1)

	pid, err := daemon.Spawn(ws)
	if err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	fmt.Printf("Timer running in background (daemon pid %d). Use 'pomo status' to check progress.\n", pid)
	return nil
}

// ─── pause / resume / skip / stop ────────────────────────────────────────────

type PauseCmd struct{}

func (c *PauseCmd) Run(g *Globals) error {
	if _, _, err := applyCommand(g.WS(), timer.CmdPause); err != nil {
		return err
	}
	fmt.Println("Timer paused. Use 'pomo resume' to continue.")
	return nil
}

type ResumeCmd struct{}

func (c *ResumeCmd) Run(g *Globals) error {
	_, events, err := applyCommand(g.WS(), timer.CmdResume)
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.Kind == timer.EventResumed {
			fmt.Printf("Timer resumed. %s remaining.\n", clockText(e.Remaining))
			return nil
		}
	}
	fmt.Println("Timer resumed.")
	return nil
}

type SkipCmd struct{}

func (c *SkipCmd) Run(g *Globals) error {
	st, _, err := applyCommand(g.WS(), timer.CmdSkip)
	if err != nil {
		return err
	}
	fmt.Printf("Skipped to next period: %s.\n", phaseName(st))
	return nil
}

type StopCmd struct{}

func (c *StopCmd) Run(g *Globals) error {
	if _, _, err := applyCommand(g.WS(), timer.CmdStop); err != nil {
		return err
	}
	fmt.Println("Timer stopped.")
	return nil
}

// applyCommand submits one engine command and forwards the resulting events.
// Transitions driven from the CLI take the exact path the daemon takes, so
// recording and notification happen exactly once whichever process runs the
// transition.
func applyCommand(ws *workspace.Workspace, cmd string) (timer.State, []timer.Event, error) {
	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return timer.State{}, nil, err
	}
	defer store.Close()

	now := time.Now()
	st, events, err := timer.Apply(ws, timer.Input{Cmd: cmd}, now)
	dispatch(ws, store, events, now)
	return st, events, err
}

// dispatch forwards events even when the command itself was rejected: a day
// rollover can piggyback on any submission and must still be recorded.
func dispatch(ws *workspace.Workspace, store *history.Store, events []timer.Event, now time.Time) {
	if len(events) == 0 {
		return
	}
	fx := daemon.Effects{Notifier: notify.ForWorkspace(ws), History: store}
	fx.Dispatch(context.Background(), events, now)
}

// ─── task ────────────────────────────────────────────────────────────────────

type TaskCmd struct {
	Add  TaskAddCmd  `cmd:"" help:"Add a task to today's list."`
	List TaskListCmd `cmd:"" help:"List today's tasks."`
	Done TaskDoneCmd `cmd:"" help:"Mark a task as completed."`
}

type TaskAddCmd struct {
	Title []string `arg:"" help:"Task description."`
}

func (c *TaskAddCmd) Run(g *Globals) error {
	title := strings.TrimSpace(strings.Join(c.Title, " "))
	if title == "" {
		return fmt.Errorf("task description is empty")
	}

	ws := g.WS()
	now := time.Now()

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	pos, err := store.AddTask(context.Background(), timer.DayOf(now), title, now)
	if err != nil {
		return err
	}
	fmt.Printf("Added task %d: %s\n", pos, title)
	return nil
}

type TaskListCmd struct{}

func (c *TaskListCmd) Run(g *Globals) error {
	ws := g.WS()

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.Tasks(context.Background(), timer.DayOf(time.Now()))
	if err != nil {
		return err
	}
	printTasks(tasks)
	return nil
}

type TaskDoneCmd struct {
	Number int `arg:"" help:"Task number from 'pomo task list'."`
}

func (c *TaskDoneCmd) Run(g *Globals) error {
	ws := g.WS()
	now := time.Now()
	day := timer.DayOf(now)

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	title, err := store.TaskTitle(ctx, day, c.Number)
	if err != nil {
		return err
	}
	if err := store.FinishTask(ctx, day, c.Number, now); err != nil {
		return err
	}
	fmt.Printf("✓ Completed: %s\n", title)
	return nil
}

// ─── status ──────────────────────────────────────────────────────────────────

// StatusCmd renders without taking the state lock and never mutates state,
// so it is safe to poll from a watch loop.
type StatusCmd struct{}

func (c *StatusCmd) Run(g *Globals) error {
	ws := g.WS()
	now := time.Now()
	day := timer.DayOf(now)

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	st, err := timer.Load(ws)
	switch {
	case errors.Is(err, timer.ErrNoTimer):
		fmt.Println("No timer running.")
	case err != nil:
		return err
	default:
		printTimerStatus(store, st, now)
	}

	rec, derr := store.Day(ctx, day)
	switch {
	case errors.Is(derr, history.ErrDayNotStarted):
		fmt.Println("\nNo workday started. Run 'pomo start' to plan your day.")
	case derr != nil:
		return derr
	default:
		tasks, terr := store.Tasks(ctx, day)
		if terr != nil {
			return terr
		}
		printProgress(rec, tasks)
	}

	printDaemonStatus(ws, st, now)
	return nil
}

func printTimerStatus(store *history.Store, st timer.State, now time.Time) {
	if st.Day != timer.DayOf(now) {
		fmt.Printf("Timer state is from %s; the next command resets it.\n", st.Day)
		return
	}

	switch st.Phase {
	case timer.PhaseIdle:
		fmt.Println("No pomodoro running. Use 'pomo timer' to start one.")
		return
	case timer.PhaseStopped:
		fmt.Println("Timer is stopped. Use 'pomo timer' to start the next pomodoro.")
		return
	}

	switch {
	case st.Phase == timer.PhasePaused:
		fmt.Println("\n⏸  PAUSED")
	case st.Phase == timer.PhaseFocus:
		fmt.Println("\n🍅 FOCUS TIME")
	case st.Phase == timer.PhaseLongBreak:
		fmt.Println("\n☕ LONG BREAK")
	case st.BreakKind == timer.BreakEmail:
		fmt.Println("\n📧 EMAIL BREAK")
	default:
		fmt.Println("\n🧘 REST BREAK")
	}

	remaining := st.Remaining(now)
	fmt.Printf("\n   %s\n", clockText(remaining))
	if st.PhaseDuration > 0 {
		fmt.Printf("   [%s]\n", progressBar(int(st.PhaseDuration-remaining), int(st.PhaseDuration), 30))
	}

	// During focus the slot being worked on, during breaks the one just
	// finished.
	slot := st.Completed
	if st.Phase == timer.PhaseFocus || (st.Phase == timer.PhasePaused && st.PausedPhase == timer.PhaseFocus) {
		slot = st.Completed + 1
	}
	if slot > 0 {
		fmt.Printf("\n   Pomodoro #%d\n", slot)
	}
	if st.ActiveTask > 0 {
		if title, err := store.TaskTitle(context.Background(), st.Day, st.ActiveTask); err == nil {
			fmt.Printf("   Task: %s\n", title)
		}
	}
}

func printProgress(rec history.DayRecord, tasks []history.Task) {
	header("Progress - " + rec.Day)

	fmt.Printf("\nPomodoros: %d/%d\n", rec.Completed, rec.Planned)
	fmt.Printf("  %s\n", pomodoroIcons(rec.Completed, rec.Planned))
	fmt.Printf("  [%s] %.0f%%\n", progressBar(rec.Completed, rec.Planned, 30), percent(rec.Completed, rec.Planned))

	fmt.Printf("\nBreaks: %d email, %d rest\n", rec.EmailBreaks, rec.RestBreaks)

	if len(tasks) > 0 {
		done := 0
		for _, t := range tasks {
			if t.Done {
				done++
			}
		}
		fmt.Printf("\nTasks: %d/%d completed\n", done, len(tasks))
		printTasks(tasks)
	}
}

func printDaemonStatus(ws *workspace.Workspace, st timer.State, now time.Time) {
	subheader("Daemon")
	pid, alive := daemon.Running(ws)
	if !alive {
		if st.Running() {
			fmt.Println("  not running; 'pomo timer' relaunches it")
		} else {
			fmt.Println("  not running")
		}
		return
	}
	if age, ok := daemon.HeartbeatAge(ws, now); ok {
		fmt.Printf("  running (pid %d), last tick %s ago\n", pid, age.Round(time.Second))
	} else {
		fmt.Printf("  running (pid %d)\n", pid)
	}
}

// ─── stats ───────────────────────────────────────────────────────────────────

type StatsCmd struct {
	Days int `short:"d" default:"7" help:"Recent days to list (default 7)."`
}

func (c *StatsCmd) Run(g *Globals) error {
	ws := g.WS()

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Stats(context.Background(), c.Days)
	if err != nil {
		return err
	}

	header("Statistics")
	fmt.Printf("\nTotal pomodoros: %d\n", sum.TotalPomodoros)
	fmt.Printf("Active days: %d\n", sum.ActiveDays)
	fmt.Printf("Current streak: %d days\n", sum.Streak.Current)
	fmt.Printf("Longest streak: %d days\n", sum.Streak.Longest)

	if len(sum.Recent) > 0 {
		subheader("Recent Days")
		for _, d := range sum.Recent {
			mark := " "
			if d.Completed >= d.Planned {
				mark = "✓"
			}
			fmt.Printf("  %s %s: %d/%d (%.0f%%)\n", mark, d.Day, d.Completed, d.Planned, percent(d.Completed, d.Planned))
		}
	}
	return nil
}

// ─── history ─────────────────────────────────────────────────────────────────

type HistoryCmd struct {
	Days int `short:"d" default:"7" help:"Number of days to show (default 7)."`
}

func (c *HistoryCmd) Run(g *Globals) error {
	ws := g.WS()

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	recent, err := store.Recent(context.Background(), c.Days)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	header(fmt.Sprintf("Last %d Days", len(recent)))
	for _, d := range recent {
		fmt.Printf("\n%s\n", d.Day)
		fmt.Printf("  Pomodoros: %d/%d\n", d.Completed, d.Planned)
		fmt.Printf("  Breaks: %d email, %d rest\n", d.EmailBreaks, d.RestBreaks)
		if d.Satisfaction > 0 {
			fmt.Printf("  Satisfaction: %s\n", stars(d.Satisfaction))
		}
		if d.Notes != "" {
			fmt.Printf("  Notes: %s\n", d.Notes)
		}
	}
	return nil
}

// ─── log ─────────────────────────────────────────────────────────────────────

type LogCmd struct {
	Tail int `default:"0" help:"Show last N lines (0 = all)."`
}

func (c *LogCmd) Run(g *Globals) error {
	ws := g.WS()
	data, err := os.ReadFile(ws.DaemonLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no daemon log at %s", ws.DaemonLogPath())
		}
		return err
	}

	content := string(data)
	if c.Tail > 0 {
		// Trim trailing newline before splitting so an empty last element
		// from a trailing '\n' doesn't offset the tail count.
		trimmed := strings.TrimRight(content, "\n")
		lines := strings.Split(trimmed, "\n")
		if c.Tail < len(lines) {
			lines = lines[len(lines)-c.Tail:]
		}
		content = strings.Join(lines, "\n") + "\n"
	}
	fmt.Print(content)
	return nil
}

// ─── recover ─────────────────────────────────────────────────────────────────

type RecoverCmd struct{}

func (c *RecoverCmd) Run(g *Globals) error {
	ws := g.WS()

	var errs []error
	if err := timer.BreakLock(ws.LockPath()); err != nil {
		errs = append(errs, fmt.Errorf("clearing lock: %w", err))
	}
	st, err := timer.Recover(ws, time.Now())
	if err != nil {
		errs = append(errs, fmt.Errorf("resetting state: %w", err))
	} else {
		fmt.Printf("timer state reset to idle for %s\n", st.Day)
	}
	if len(errs) > 0 {
		return fmt.Errorf("recovery completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	fmt.Println("recovery complete")
	return nil
}

// ─── version ─────────────────────────────────────────────────────────────────

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("pomo %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
	return nil
}

// ─── daemon ──────────────────────────────────────────────────────────────────

type DaemonCmd struct{}

func (c *DaemonCmd) Run(g *Globals) error {
	ws := g.WS()

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fx := daemon.Effects{Notifier: notify.ForWorkspace(ws), History: store}
	return daemon.Run(ctx, ws, fx)
}

// ─── main ────────────────────────────────────────────────────────────────────

func main() {
	logger.Init()

	var cli CLI
	globals := &Globals{}

	ctx := kong.Parse(&cli,
		kong.Name("pomo"),
		kong.Description("pomo — pomodoro workdays with a background timer\n\nPlan the day, run focus and break phases, track history and streaks.\n\nUSAGE:  pomo <command> [arguments]"),
		kong.UsageOnError(),
		kong.Bind(globals),
		kong.ExplicitGroups([]kong.Group{
			{Key: "setup", Title: "── SETUP ─────────────────────────────────────────────────────────────────────────"},
			{Key: "day", Title: "── WORKDAY ───────────────────────────────────────────────────────────────────────"},
			{Key: "timer", Title: "── TIMER ─────────────────────────────────────────────────────────────────────────"},
			{Key: "tasks", Title: "── TASKS ─────────────────────────────────────────────────────────────────────────"},
			{Key: "observe", Title: "── MONITORING ────────────────────────────────────────────────────────────────────"},
			{Key: "maint", Title: "── MAINTENANCE ───────────────────────────────────────────────────────────────────"},
			{Key: "internal", Title: "── INTERNAL ──────────────────────────────────────────────────────────────────────"},
		}),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "pomo: %v\n", err)
		var corrupt *timer.CorruptError
		if errors.As(err, &corrupt) {
			fmt.Fprintln(os.Stderr, "run 'pomo recover' to archive the file and reset")
		}
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes the common scripted checks: 2 means no timer
// exists, 3 means the state lock stayed busy, 4 means the command does not
// apply to the current phase.
func exitCode(err error) int {
	switch {
	case errors.Is(err, timer.ErrNoTimer):
		return 2
	case errors.Is(err, timer.ErrBusy):
		return 3
	case errors.Is(err, timer.ErrInvalidTransition):
		return 4
	default:
		return 1
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// openWS opens the workspace at $POMO_HOME or ~/.pomo.
func openWS() *workspace.Workspace {
	ws, err := workspace.Open("")
	if err != nil {
		fatal("%v\n\nTo set up pomo:              pomo init\nTo use another directory:    export POMO_HOME=/path/to/dir", err)
	}
	return ws
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pomo: "+format+"\n", args...)
	os.Exit(1)
}

func printDayPlan(ws *workspace.Workspace, day string, planned int, tasks []history.Task, now time.Time) {
	header("Workday Plan - " + day)
	fmt.Printf("\nPlanned: %d pomodoros\n", planned)

	perPomodoro := ws.Config.Timer.Focus.Std() + ws.Config.Timer.ShortBreak.Std()
	fmt.Printf("Estimated completion: %s\n", now.Add(time.Duration(planned)*perPomodoro).Format("15:04"))

	subheader("Tasks")
	if len(tasks) == 0 {
		fmt.Println("  No tasks planned")
		fmt.Println("  add some with: pomo task add <description>")
		return
	}
	for _, t := range tasks {
		mark := "○"
		if t.Done {
			mark = "✓"
		}
		fmt.Printf("  %s %d. %s\n", mark, t.Position, t.Title)
	}
}

func printDaySummary(rec history.DayRecord, tasks []history.Task, streak history.Streak) {
	header("Day Complete - " + rec.Day)

	if rec.StartedAt > 0 && rec.EndedAt > rec.StartedAt {
		d := time.Duration(rec.EndedAt-rec.StartedAt) * time.Second
		fmt.Printf("\nWorkday duration: %dh %02dm\n", int(d.Hours()), int(d.Minutes())%60)
		fmt.Printf("  %s - %s\n",
			time.Unix(rec.StartedAt, 0).Format("15:04"),
			time.Unix(rec.EndedAt, 0).Format("15:04"))
	}

	fmt.Printf("\nPomodoros: %d/%d completed\n", rec.Completed, rec.Planned)
	fmt.Printf("  %s\n", pomodoroIcons(rec.Completed, rec.Planned))
	switch {
	case rec.Completed >= rec.Planned:
		fmt.Println("  ✨ Goal achieved!")
	case rec.Completed > 0:
		fmt.Printf("  %d short of goal\n", rec.Planned-rec.Completed)
	}

	if len(tasks) > 0 {
		done := 0
		for _, t := range tasks {
			if t.Done {
				done++
			}
		}
		fmt.Printf("\nTasks: %d/%d completed\n", done, len(tasks))
		for _, t := range tasks {
			mark := "✗"
			if t.Done {
				mark = "✓"
			}
			fmt.Printf("  %s %s\n", mark, t.Title)
		}
	}

	fmt.Println("\nBreaks taken:")
	fmt.Printf("  📧 Email: %d\n", rec.EmailBreaks)
	fmt.Printf("  🧘 Rest: %d\n", rec.RestBreaks)
	if rec.LongBreaks > 0 {
		fmt.Printf("  ☕ Long: %d\n", rec.LongBreaks)
	}

	fmt.Printf("\nStreak: %d day%s\n", streak.Current, plural(streak.Current))
	if streak.Current == streak.Longest && streak.Current > 1 {
		fmt.Println("  🏆 Personal best!")
	}

	if rec.Satisfaction > 0 {
		fmt.Printf("\nSatisfaction: %s\n", stars(rec.Satisfaction))
	}
}

func printTasks(tasks []history.Task) {
	if len(tasks) == 0 {
		fmt.Println("No tasks for today.")
		return
	}
	fmt.Println("\nTasks:")
	for _, t := range tasks {
		mark := "○"
		if t.Done {
			mark = "✓"
		}
		fmt.Printf("  %s %d. %s\n", mark, t.Position, t.Title)
	}
}

func phaseName(st timer.State) string {
	switch st.Phase {
	case timer.PhaseFocus:
		return "focus"
	case timer.PhaseLongBreak:
		return "long break"
	case timer.PhaseShortBreak:
		if st.BreakKind == timer.BreakEmail {
			return "email break"
		}
		return "rest break"
	default:
		return st.Phase
	}
}

func header(text string) {
	line := strings.Repeat("═", 50)
	fmt.Println()
	fmt.Println(line)
	fmt.Printf(" %s\n", text)
	fmt.Println(line)
}

func subheader(text string) {
	fmt.Printf("\n── %s ──\n", text)
}

// progressBar renders current/total as a fixed-width bar of █ and ░.
func progressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	ratio := float64(current) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	filled := int(float64(width) * ratio)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// pomodoroIcons renders completed as ● and the unmet remainder of the
// plan as ○. Overshooting the plan just grows the ● run.
func pomodoroIcons(completed, planned int) string {
	remaining := planned - completed
	if remaining < 0 {
		remaining = 0
	}
	return strings.Repeat("●", completed) + strings.Repeat("○", remaining)
}

func percent(completed, planned int) float64 {
	if planned <= 0 {
		return 0
	}
	return float64(completed) / float64(planned) * 100
}

func clockText(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

func stars(satisfaction int) string {
	return strings.Repeat("★", satisfaction) + strings.Repeat("☆", 4-satisfaction)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
