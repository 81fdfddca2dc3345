package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigTOML is the seed written by Init. Every key is present with
// its default so the file documents itself.
const defaultConfigTOML = `# pomo configuration

[timer]
# Phase lengths as Go durations ("25m", "90s").
focus = "25m"
short_break = "5m"
long_break = "15m"
# Every Nth completed pomodoro earns a long break.
long_break_every = 4
# Whether skipping a running focus phase still counts it as completed.
skip_counts_focus = true

[daemon]
# Wake interval of the background loop. Elapsed time is recomputed from
# timestamps on every wake, so a coarser poll only delays notifications.
poll = "2s"
# How long a command waits for the state lock before reporting busy.
lock_timeout = "3s"

[telegram]
enabled = false
# token / chat_id can also come from POMO_TELEGRAM_TOKEN and
# POMO_TELEGRAM_CHAT, including via a .env file next to this config.
token = ""
chat_id = ""
`

// Init creates a new pomo workspace at root and seeds a commented
// config.toml. The directory may exist; an existing config.toml is an
// error so a rerun never clobbers tuned settings.
func Init(root string, cfg *Config) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(abs, "config.toml")); err == nil {
		return nil, fmt.Errorf("%s is already a pomo workspace", abs)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", abs, err)
	}

	ws := &Workspace{Root: abs}
	if cfg == nil {
		if err := os.WriteFile(ws.ConfigPath(), []byte(defaultConfigTOML), 0644); err != nil {
			return nil, err
		}
		cfg = DefaultConfig()
	} else {
		ws.Config = cfg
		if err := ws.SaveConfig(); err != nil {
			return nil, err
		}
	}
	cfg.normalize()
	ws.Config = cfg
	return ws, nil
}
