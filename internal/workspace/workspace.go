// Package workspace locates and manages the pomo data directory: the
// config file, the timer state file, the daemon markers, and the history
// database. All processes (CLI invocations and the background daemon)
// resolve the same workspace and coordinate through the files inside it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvHome overrides the workspace root directory when set.
const EnvHome = "POMO_HOME"

// Environment variables overriding the telegram credentials from
// config.toml. They are also picked up from a .env file in the workspace
// root, so the token can stay out of the config file.
const (
	EnvTelegramToken = "POMO_TELEGRAM_TOKEN"
	EnvTelegramChat  = "POMO_TELEGRAM_CHAT"
)

// Workspace is an opened pomo data directory.
type Workspace struct {
	// Root is the absolute path of the workspace directory.
	Root string

	// Config is the decoded config.toml with environment overrides applied.
	Config *Config
}

// Config mirrors config.toml.
type Config struct {
	Timer    TimerConfig    `toml:"timer"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Telegram TelegramConfig `toml:"telegram"`
}

// TimerConfig holds the phase durations and the counting policy.
type TimerConfig struct {
	// Focus, ShortBreak and LongBreak are duration strings ("25m", "90s").
	Focus      Duration `toml:"focus"`
	ShortBreak Duration `toml:"short_break"`
	LongBreak  Duration `toml:"long_break"`

	// LongBreakEvery routes every Nth completed pomodoro to a long break.
	LongBreakEvery int `toml:"long_break_every"`

	// SkipCountsFocus controls whether skipping a running focus phase still
	// credits the pomodoro to the daily count.
	SkipCountsFocus bool `toml:"skip_counts_focus"`
}

// DaemonConfig tunes the background loop.
type DaemonConfig struct {
	// Poll is the wake interval of the daemon loop. Elapsed time is always
	// recomputed from timestamps, so a coarser poll only delays
	// notifications, never loses time.
	Poll Duration `toml:"poll"`

	// LockTimeout bounds how long a command waits for the state lock before
	// reporting the timer busy.
	LockTimeout Duration `toml:"lock_timeout"`
}

// TelegramConfig configures the notification channel. Token and ChatID may
// come from the environment instead (POMO_TELEGRAM_TOKEN,
// POMO_TELEGRAM_CHAT), including via a .env file in the workspace root.
type TelegramConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
	ChatID  string `toml:"chat_id"`
}

// Duration decodes TOML strings through time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfig returns the standard pomodoro tuning.
func DefaultConfig() *Config {
	return &Config{
		Timer: TimerConfig{
			Focus:           Duration(25 * time.Minute),
			ShortBreak:      Duration(5 * time.Minute),
			LongBreak:       Duration(15 * time.Minute),
			LongBreakEvery:  4,
			SkipCountsFocus: true,
		},
		Daemon: DaemonConfig{
			Poll:        Duration(2 * time.Second),
			LockTimeout: Duration(3 * time.Second),
		},
	}
}

// DefaultRoot resolves the workspace directory: $POMO_HOME when set,
// otherwise ~/.pomo.
func DefaultRoot() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".pomo"), nil
}

// Open loads the workspace at dir, or at DefaultRoot when dir is empty.
// The directory must have been created by Init.
func Open(dir string) (*Workspace, error) {
	if dir == "" {
		var err error
		dir, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}

	ws := &Workspace{Root: abs}
	if _, err := os.Stat(ws.ConfigPath()); err != nil {
		return nil, fmt.Errorf("no workspace at %s (missing config.toml): %w", abs, err)
	}

	// .env is optional; godotenv never overrides variables already set in
	// the real environment.
	if _, err := os.Stat(ws.EnvPath()); err == nil {
		if err := godotenv.Load(ws.EnvPath()); err != nil {
			return nil, fmt.Errorf("load %s: %w", ws.EnvPath(), err)
		}
	}

	cfg, err := loadConfig(ws.ConfigPath())
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.normalize()
	ws.Config = cfg
	return ws, nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Decode over the defaults: keys absent from the file keep their
	// default, and an explicit `skip_counts_focus = false` stays
	// distinguishable from an omitted key.
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvTelegramToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv(EnvTelegramChat); v != "" {
		cfg.Telegram.ChatID = v
	}
}

// normalize clamps explicitly-set zero or negative tunables back to
// their defaults so a hand-edited config.toml still yields a working
// timer. Absent keys never get here: loadConfig decodes over the
// defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Timer.Focus <= 0 {
		c.Timer.Focus = def.Timer.Focus
	}
	if c.Timer.ShortBreak <= 0 {
		c.Timer.ShortBreak = def.Timer.ShortBreak
	}
	if c.Timer.LongBreak <= 0 {
		c.Timer.LongBreak = def.Timer.LongBreak
	}
	if c.Timer.LongBreakEvery <= 0 {
		c.Timer.LongBreakEvery = def.Timer.LongBreakEvery
	}
	if c.Daemon.Poll <= 0 {
		c.Daemon.Poll = def.Daemon.Poll
	}
	if c.Daemon.LockTimeout <= 0 {
		c.Daemon.LockTimeout = def.Daemon.LockTimeout
	}
}

// Path helpers. Every coordination file lives directly under Root.

func (ws *Workspace) ConfigPath() string    { return filepath.Join(ws.Root, "config.toml") }
func (ws *Workspace) EnvPath() string       { return filepath.Join(ws.Root, ".env") }
func (ws *Workspace) StatePath() string     { return filepath.Join(ws.Root, "timer.state") }
func (ws *Workspace) LockPath() string      { return filepath.Join(ws.Root, "timer.lock") }
func (ws *Workspace) DaemonPIDPath() string { return filepath.Join(ws.Root, "daemon.pid") }
func (ws *Workspace) HeartbeatPath() string { return filepath.Join(ws.Root, "daemon.heartbeat") }
func (ws *Workspace) DaemonLogPath() string { return filepath.Join(ws.Root, "daemon.log") }
func (ws *Workspace) HistoryPath() string   { return filepath.Join(ws.Root, "history.db") }

// SaveConfig writes the config back to config.toml.
func (ws *Workspace) SaveConfig() error {
	data, err := toml.Marshal(ws.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return atomicWrite(ws.ConfigPath(), data)
}

// atomicWrite writes data to path atomically via temp file + rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
