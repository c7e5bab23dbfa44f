package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Nudges.MaxPerDay != 3 {
		t.Errorf("MaxPerDay = %d, want default 3", cfg.Nudges.MaxPerDay)
	}
	if cfg.Nudges.ScheduleIntervalHours != 4 {
		t.Errorf("ScheduleIntervalHours = %d, want default 4", cfg.Nudges.ScheduleIntervalHours)
	}
	if !cfg.Nudges.Resurface || !cfg.Nudges.ContinueCourse {
		t.Error("nudge categories should default to enabled")
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:37780" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
nudges:
  max_per_day: 1
  resurfacing_paused: true
  streak: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want the default kept", cfg.Server.Bind)
	}
	if cfg.Nudges.MaxPerDay != 1 {
		t.Errorf("MaxPerDay = %d, want 1", cfg.Nudges.MaxPerDay)
	}
	if !cfg.Nudges.ResurfacingPaused {
		t.Error("ResurfacingPaused should be true")
	}
	if cfg.Nudges.Streak {
		t.Error("Streak should be disabled")
	}
	if !cfg.Nudges.StaleInbox {
		t.Error("untouched categories should keep their defaults")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{"negative budget", "nudges:\n  max_per_day: -1\n", "max_per_day"},
		{"zero interval", "nudges:\n  schedule_interval_hours: 0\n", "schedule_interval_hours"},
		{"malformed yaml", "nudges: [not a map\n", "parse config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.contents))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}
