// Package notify turns timer events into Telegram pings. Delivery is
// best-effort: the timer never blocks or fails because a notification
// could not be sent.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilocn/pomo/internal/timer"
	"github.com/ilocn/pomo/internal/workspace"
)

// Notifier delivers one rendered message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every message. Used when Telegram is disabled or not
// configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// ForWorkspace returns the notifier the workspace config calls for.
func ForWorkspace(ws *workspace.Workspace) Notifier {
	tg := ws.Config.Telegram
	if tg.Enabled && tg.Token != "" && tg.ChatID != "" {
		return NewTelegram(tg.Token, tg.ChatID)
	}
	return Nop{}
}

// TestText is the message sent by the connection check.
const TestText = "🔔 <b>pomo</b>\n\nConnection test successful!"

// Render returns the message for a timer event, or "" when the event does
// not warrant a ping. taskName, when known, names the task the pomodoro
// runs against; pass "" otherwise.
func Render(e timer.Event, taskName string) string {
	switch e.Kind {
	case timer.EventFocusStart:
		task := ""
		if taskName != "" {
			task = "\nTask: " + taskName
		}
		return fmt.Sprintf("🍅 <b>Focus Time</b>\n\nPomodoro #%d started.%s\n\n%d minutes of focused work.",
			e.Completed+1, task, e.Duration/60)

	case timer.EventFocusDone:
		return fmt.Sprintf("✅ <b>Pomodoro #%d Complete!</b>\n\nGreat work! Time for a break.", e.Completed)

	case timer.EventBreakStart:
		emoji, title, suggestion := breakCopy(e)
		return fmt.Sprintf("%s <b>%s</b>\n\n%d minutes.\n%s", emoji, title, e.Duration/60, suggestion)

	case timer.EventBreakDone:
		return "⏰ <b>Break Over</b>\n\nReady for the next pomodoro?"

	case timer.EventPaused:
		return "⏸️ <b>Timer Paused</b>\n\nResume when ready."

	case timer.EventResumed:
		return fmt.Sprintf("▶️ <b>Timer Resumed</b>\n\n%s remaining.", clock(e.Remaining))
	}
	return ""
}

func breakCopy(e timer.Event) (emoji, title, suggestion string) {
	switch {
	case e.Phase == timer.PhaseLongBreak:
		return "☕", "Long Break", "Stretch, grab a coffee, take a walk."
	case e.BreakKind == timer.BreakEmail:
		return "📧", "Email Break", "Check your inbox, respond to messages."
	default:
		return "🧘", "Rest Break", "Step away from the screen. Stretch. Breathe."
	}
}

// DayStarted is the morning kickoff message.
func DayStarted(plan int, tasks []string) string {
	list := "No tasks set"
	if len(tasks) > 0 {
		lines := make([]string, len(tasks))
		for i, t := range tasks {
			lines[i] = "• " + t
		}
		list = strings.Join(lines, "\n")
	}
	return fmt.Sprintf("🌅 <b>Workday Started</b>\n\nPlan: %d pomodoros\n\n<b>Tasks:</b>\n%s", plan, list)
}

// DayDone is the close-of-day summary message.
func DayDone(completed, planned, doneTasks, totalTasks int) string {
	goalMet := completed >= planned
	emoji := "📊"
	if goalMet {
		emoji = "🎉"
	}
	msg := fmt.Sprintf("%s <b>Day Complete</b>\n\nPomodoros: %d/%d\nTasks: %d/%d\n",
		emoji, completed, planned, doneTasks, totalTasks)
	switch {
	case goalMet:
		msg += "\nGoal achieved! Great work! 🏆"
	case completed > 0:
		msg += fmt.Sprintf("\n%d short of goal.", planned-completed)
	}
	return msg
}

// clock formats seconds as mm:ss, or h:mm:ss past the hour.
func clock(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, sec%3600/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
