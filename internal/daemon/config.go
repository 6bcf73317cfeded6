// Package daemon holds process-level configuration for the tracker server and
// CLI.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	configFileName = "config.toml"
	envFileName    = ".env"
)

// Config is read from <home>/config.toml. Missing keys keep their defaults.
type Config struct {
	API     APIConfig     `toml:"api"`
	Tracker TrackerConfig `toml:"tracker"`
	Log     LogConfig     `toml:"log"`
	Watch   WatchConfig   `toml:"watch"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TrackerConfig locates the artifacts and the ledger.
type TrackerConfig struct {
	BaseDir   string `toml:"base_dir"`   // pending artifacts live here; relative to home
	DoneDir   string `toml:"done_dir"`   // relative to BaseDir unless absolute
	StateFile string `toml:"state_file"` // relative to BaseDir unless absolute
	Ext       string `toml:"ext"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// WatchConfig controls the directory watcher.
type WatchConfig struct {
	Enabled  bool   `toml:"enabled"`
	Debounce string `toml:"debounce"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8888,
		},
		Tracker: TrackerConfig{
			BaseDir:   ".",
			DoneDir:   "סיימנו",
			StateFile: ".tracker_state.json",
			Ext:       ".pdf",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: "250ms",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns $STUDYTRACK_HOME, or the working directory when unset.
func Home() string {
	if env := os.Getenv("STUDYTRACK_HOME"); env != "" {
		return env
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// LoadConfig reads <home>/.env (if any) into the environment, then
// <home>/config.toml (if any), then applies STUDYTRACK_* overrides.
// A relative base_dir is resolved against home.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig()

	envPath := filepath.Join(home, envFileName)
	if _, err := os.Stat(envPath); err == nil {
		// Load never overrides variables already set in the environment.
		if err := godotenv.Load(envPath); err != nil {
			return cfg, fmt.Errorf("load %s: %w", envPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("stat %s: %w", envPath, err)
	}

	cfgPath := filepath.Join(home, configFileName)
	if _, err := toml.DecodeFile(cfgPath, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("parse %s: %w", cfgPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.Tracker.BaseDir = resolve(home, cfg.Tracker.BaseDir)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("STUDYTRACK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STUDYTRACK_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("STUDYTRACK_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STUDYTRACK_BASE_DIR"); v != "" {
		cfg.Tracker.BaseDir = v
	}
	if v := os.Getenv("STUDYTRACK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if strings.TrimSpace(c.Tracker.BaseDir) == "" {
		return errors.New("tracker.base_dir is empty")
	}
	if strings.TrimSpace(c.Tracker.DoneDir) == "" {
		return errors.New("tracker.done_dir is empty")
	}
	if strings.TrimSpace(c.Tracker.StateFile) == "" {
		return errors.New("tracker.state_file is empty")
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}
	return nil
}

// ─── Derived paths ──────────────────────────────────────────────────────────

// Addr is the host:port the server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// PendingDir is the directory holding not-yet-completed artifacts.
func (c Config) PendingDir() string {
	return filepath.Clean(c.Tracker.BaseDir)
}

// DoneDir is the directory holding completed artifacts.
func (c Config) DoneDir() string {
	return resolve(c.Tracker.BaseDir, c.Tracker.DoneDir)
}

// StatePath is the ledger file.
func (c Config) StatePath() string {
	return resolve(c.Tracker.BaseDir, c.Tracker.StateFile)
}

// WatchDebounce parses Watch.Debounce. Empty means the watcher default.
func (c Config) WatchDebounce() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watch.debounce %s is negative", d)
	}
	return d, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
