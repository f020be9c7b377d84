package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"caseline/internal/domain"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	offsets := map[string]time.Duration{
		domain.PriorityUrgent: 2 * time.Hour,
		domain.PriorityHigh:   24 * time.Hour,
		domain.PriorityNormal: 48 * time.Hour,
	}
	for priority, want := range offsets {
		got, err := cfg.SLAFor(priority)
		if err != nil {
			t.Fatalf("sla for %s: %v", priority, err)
		}
		if got != want {
			t.Fatalf("sla for %s = %s, want %s", priority, got, want)
		}
	}
	if _, err := cfg.SLAFor("asap"); err == nil {
		t.Fatal("unknown priority accepted")
	}
	if cfg.SweepInterval() != time.Minute {
		t.Fatalf("sweep interval = %s", cfg.SweepInterval())
	}
}

func TestFromYAMLOverrides(t *testing.T) {
	cfg, err := FromYAML([]byte("sla:\n  urgent: 30m\nsweep:\n  interval: 15s\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d, err := cfg.SLAFor(domain.PriorityUrgent)
	if err != nil {
		t.Fatalf("sla: %v", err)
	}
	if d != 30*time.Minute {
		t.Fatalf("urgent = %s", d)
	}
	// Untouched keys keep their defaults.
	if cfg.Capacity.CriticalPct != 90 {
		t.Fatalf("critical_pct = %f", cfg.Capacity.CriticalPct)
	}
	if cfg.SweepInterval() != 15*time.Second {
		t.Fatalf("interval = %s", cfg.SweepInterval())
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"negative sla", "sla:\n  urgent: -1h\n"},
		{"unparseable sla", "sla:\n  high: soon\n"},
		{"warning out of range", "capacity:\n  warning_pct: 120\n"},
		{"critical below warning", "capacity:\n  warning_pct: 80\n  critical_pct: 70\n"},
		{"weights off balance", "scoring:\n  skill_weight: 0.9\n"},
		{"bad sweep interval", "sweep:\n  interval: yearly\n"},
		{"webhook without url", "webhooks:\n  - secret: shh\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromYAML([]byte(tc.yaml)); err == nil {
				t.Fatalf("accepted %q", tc.yaml)
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if cfg.SLA.Urgent != "2h" {
		t.Fatalf("default urgent = %s", cfg.SLA.Urgent)
	}

	if err := os.WriteFile(filepath.Join(dir, "caseline.yml"), []byte("sla:\n  normal: 72h\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SLA.Normal != "72h" {
		t.Fatalf("normal = %s", cfg.SLA.Normal)
	}
}
