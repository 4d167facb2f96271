package jaidee

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jaidee-care/jaidee/session"
)

// FileConfig is the deployment configuration loaded from YAML. Environment
// references of the form ${VAR} are expanded before parsing, so secrets can
// stay out of the file.
type FileConfig struct {
	Model        string `yaml:"model"`
	SummaryModel string `yaml:"summary_model"`
	SystemPrompt string `yaml:"system_prompt"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	HardLimit         int     `yaml:"hard_limit"`
	CompactionTrigger float64 `yaml:"compaction_trigger"`
	KeepRecentPairs   int     `yaml:"keep_recent_pairs"`
	MaxImportantPairs int     `yaml:"max_important_pairs"`

	MaxRetries *int          `yaml:"max_retries"`
	LockTTL    time.Duration `yaml:"lock_ttl"`

	SessionTTL     time.Duration `yaml:"session_ttl"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	WarningLead    time.Duration `yaml:"warning_lead"`
}

// LoadFileConfig reads and parses a YAML config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Options converts the file's non-zero tuning fields into bot options.
// Required fields (model, prompt, connection URLs) are read directly by the
// caller when wiring clients.
func (f *FileConfig) Options() []Option {
	var opts []Option

	if f.HardLimit > 0 {
		trigger := f.CompactionTrigger
		if trigger == 0 {
			trigger = 0.9
		}
		opts = append(opts, WithTokenThreshold(f.HardLimit, trigger))
	}
	if f.KeepRecentPairs > 0 {
		opts = append(opts, WithKeepRecentPairs(f.KeepRecentPairs))
	}
	if f.MaxImportantPairs > 0 {
		opts = append(opts, WithMaxImportantPairs(f.MaxImportantPairs))
	}
	if f.SummaryModel != "" {
		opts = append(opts, WithSummaryModel(f.SummaryModel))
	}
	if f.MaxRetries != nil {
		opts = append(opts, WithMaxRetries(*f.MaxRetries))
	}
	if f.LockTTL > 0 {
		opts = append(opts, WithLockTTL(f.LockTTL))
	}
	if f.SessionTTL > 0 || f.SessionTimeout > 0 || f.WarningLead > 0 {
		opts = append(opts, WithSessionConfig(session.Config{
			SessionTTL:     f.SessionTTL,
			SessionTimeout: f.SessionTimeout,
			WarningLead:    f.WarningLead,
		}))
	}
	return opts
}
