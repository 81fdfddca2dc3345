package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/ilocn/pomo/internal/workspace"
)

// Spawn starts the daemon as a detached background process by re-running
// the current executable with the daemon subcommand. Output goes to
// daemon.log in the workspace. If a daemon is already running its pid is
// returned and nothing is started.
func Spawn(ws *workspace.Workspace) (int, error) {
	if pid, ok := Running(ws); ok {
		return pid, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}
	logFile, err := os.OpenFile(ws.DaemonLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open daemon log: %w", err)
	}

	cmd := exec.Command(exe, "daemon")
	cmd.Dir = ws.Root
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// Pin the child to this workspace even if POMO_HOME changes later.
	cmd.Env = append(os.Environ(), workspace.EnvHome+"="+ws.Root)
	// New session, so the daemon survives the terminal that launched it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	// Close our copy of the log handle; the child keeps its own.
	logFile.Close()
	return cmd.Process.Pid, nil
}
