package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STUDYTRACK_PORT", "STUDYTRACK_HOST", "STUDYTRACK_BASE_DIR", "STUDYTRACK_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8888 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8888)
	}
	if cfg.Tracker.DoneDir != "סיימנו" {
		t.Errorf("Tracker.DoneDir = %q, want %q", cfg.Tracker.DoneDir, "סיימנו")
	}
	if cfg.Tracker.StateFile != ".tracker_state.json" {
		t.Errorf("Tracker.StateFile = %q, want %q", cfg.Tracker.StateFile, ".tracker_state.json")
	}
	if cfg.Tracker.Ext != ".pdf" {
		t.Errorf("Tracker.Ext = %q, want %q", cfg.Tracker.Ext, ".pdf")
	}
	if !cfg.Watch.Enabled {
		t.Error("Watch.Enabled should be true by default")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadConfig_NoFiles(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	want.Tracker.BaseDir = home
	if cfg != want {
		t.Errorf("LoadConfig without files = %+v, want defaults rooted at home", cfg)
	}
}

func TestLoadConfig_RelativeBaseDirResolvesAgainstHome(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	data := "[tracker]\nbase_dir = 'units'\n"
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	// Run from somewhere else entirely.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got, want := cfg.PendingDir(), filepath.Join(home, "units"); got != want {
		t.Errorf("PendingDir() = %q, want %q", got, want)
	}
	if got, want := cfg.StatePath(), filepath.Join(home, "units", ".tracker_state.json"); got != want {
		t.Errorf("StatePath() = %q, want %q", got, want)
	}
	if got, want := cfg.DoneDir(), filepath.Join(home, "units", "סיימנו"); got != want {
		t.Errorf("DoneDir() = %q, want %q", got, want)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	data := `
[api]
port = 9000

[tracker]
base_dir = "/srv/units"
done_dir = "finished"

[watch]
enabled = false
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want default", cfg.API.Host)
	}
	if cfg.Watch.Enabled {
		t.Error("Watch.Enabled = true, want false")
	}
	if got, want := cfg.DoneDir(), filepath.Join("/srv/units", "finished"); got != want {
		t.Errorf("DoneDir() = %q, want %q", got, want)
	}
	if got, want := cfg.StatePath(), filepath.Join("/srv/units", ".tracker_state.json"); got != want {
		t.Errorf("StatePath() = %q, want %q", got, want)
	}
}

func TestLoadConfig_BadTOML(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api\nport="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(home); err == nil {
		t.Error("LoadConfig with malformed TOML should fail")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STUDYTRACK_PORT", "7070")
	t.Setenv("STUDYTRACK_BASE_DIR", "/data")
	t.Setenv("STUDYTRACK_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
	if cfg.PendingDir() != "/data" {
		t.Errorf("PendingDir() = %q, want /data", cfg.PendingDir())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadConfig_BadPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STUDYTRACK_PORT", "eighty")
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Error("LoadConfig with non-numeric port should fail")
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides set variables, so the key must be truly unset.
	os.Unsetenv("STUDYTRACK_PORT")
	t.Cleanup(func() { os.Unsetenv("STUDYTRACK_PORT") })

	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("STUDYTRACK_PORT=6060\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 6060 {
		t.Errorf("API.Port = %d, want 6060 from .env", cfg.API.Port)
	}
}

func TestConfig_AbsoluteDoneDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracker.BaseDir = "/a"
	cfg.Tracker.DoneDir = "/elsewhere/done"
	if cfg.DoneDir() != "/elsewhere/done" {
		t.Errorf("DoneDir() = %q, want /elsewhere/done", cfg.DoneDir())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.API.Port = 70000 }},
		{"empty base dir", func(c *Config) { c.Tracker.BaseDir = "" }},
		{"empty done dir", func(c *Config) { c.Tracker.DoneDir = " " }},
		{"empty state file", func(c *Config) { c.Tracker.StateFile = "" }},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestWatchDebounce(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"1s", time.Second},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Watch.Debounce = tt.input
			got, err := cfg.WatchDebounce()
			if err != nil {
				t.Fatalf("WatchDebounce: %v", err)
			}
			if got != tt.want {
				t.Errorf("WatchDebounce(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr() != "0.0.0.0:8888" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8888", cfg.Addr())
	}
}
