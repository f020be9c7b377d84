package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"caseline/internal/domain"
)

// Config models caseline.yml.
type Config struct {
	SLA struct {
		Urgent string `yaml:"urgent"`
		High   string `yaml:"high"`
		Normal string `yaml:"normal"`
	} `yaml:"sla"`
	Capacity struct {
		WarningPct  float64 `yaml:"warning_pct"`
		CriticalPct float64 `yaml:"critical_pct"`
	} `yaml:"capacity"`
	Scoring struct {
		SkillWeight        float64 `yaml:"skill_weight"`
		CapacityWeight     float64 `yaml:"capacity_weight"`
		AvailabilityWeight float64 `yaml:"availability_weight"`
		UnitWeight         float64 `yaml:"unit_weight"`
		ExtraSkillBonus    float64 `yaml:"extra_skill_bonus"`
		ExtraSkillCap      float64 `yaml:"extra_skill_cap"`
	} `yaml:"scoring"`
	Sweep struct {
		Interval string `yaml:"interval"`
	} `yaml:"sweep"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one outbound escalation receiver.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// SLAFor returns the deadline offset for a priority.
func (c *Config) SLAFor(priority string) (time.Duration, error) {
	var raw string
	switch priority {
	case domain.PriorityUrgent:
		raw = c.SLA.Urgent
	case domain.PriorityHigh:
		raw = c.SLA.High
	case domain.PriorityNormal:
		raw = c.SLA.Normal
	default:
		return 0, fmt.Errorf("unknown priority %q", priority)
	}
	return time.ParseDuration(raw)
}

// SweepInterval returns the sweeper tick period.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Sweep.Interval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for _, p := range []string{domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityNormal} {
		d, err := c.SLAFor(p)
		if err != nil {
			return fmt.Errorf("config.sla.%s: %w", p, err)
		}
		if d <= 0 {
			return fmt.Errorf("config.sla.%s must be positive", p)
		}
	}
	if c.Capacity.WarningPct <= 0 || c.Capacity.WarningPct >= 100 {
		return fmt.Errorf("config.capacity.warning_pct must be in (0,100)")
	}
	if c.Capacity.CriticalPct <= c.Capacity.WarningPct || c.Capacity.CriticalPct > 100 {
		return fmt.Errorf("config.capacity.critical_pct must be in (warning_pct,100]")
	}
	s := c.Scoring
	for name, w := range map[string]float64{
		"skill_weight":        s.SkillWeight,
		"capacity_weight":     s.CapacityWeight,
		"availability_weight": s.AvailabilityWeight,
		"unit_weight":         s.UnitWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("config.scoring.%s must be in [0,1]", name)
		}
	}
	sum := s.SkillWeight + s.CapacityWeight + s.AvailabilityWeight + s.UnitWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config.scoring weights must sum to 1, got %.3f", sum)
	}
	if s.ExtraSkillBonus < 0 || s.ExtraSkillCap < 0 {
		return fmt.Errorf("config.scoring extra-skill bonus and cap must be non-negative")
	}
	if c.Sweep.Interval != "" {
		if d, err := time.ParseDuration(c.Sweep.Interval); err != nil || d <= 0 {
			return fmt.Errorf("config.sweep.interval must be a positive duration")
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "caseline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if no file exists in the workspace.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML for `cl config init`.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `sla:
  urgent: 2h
  high: 24h
  normal: 48h

capacity:
  warning_pct: 75
  critical_pct: 90

scoring:
  skill_weight: 0.4
  capacity_weight: 0.3
  availability_weight: 0.2
  unit_weight: 0.1
  extra_skill_bonus: 5
  extra_skill_cap: 10

sweep:
  interval: 1m
`
