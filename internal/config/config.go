// internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig is one configured board pairing: a connector type plus
// the keywords and filters it searches with.
type SourceConfig struct {
	Type     string   `yaml:"type"` // nhs | dwp | indeed
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	MaxPages int      `yaml:"max_pages"` // 0 = follow pagination to the end

	Location       string `yaml:"location,omitempty"`
	Distance       string `yaml:"distance,omitempty"`
	Category       string `yaml:"category,omitempty"`
	ContractType   string `yaml:"contract_type,omitempty"`
	WorkingPattern string `yaml:"working_pattern,omitempty"`
	MaxDaysOld     int    `yaml:"max_days_old,omitempty"`
	SortBy         string `yaml:"sort_by,omitempty"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Search struct {
		Workers       int     `yaml:"workers"`
		RetentionDays int     `yaml:"retention_days"`
		HostReqPerSec float64 `yaml:"host_req_per_sec"`
		HostBurst     int     `yaml:"host_burst"`
	} `yaml:"search"`

	Sources []SourceConfig `yaml:"sources"`

	Notify struct {
		Enabled          bool   `yaml:"enabled"`
		To               string `yaml:"to"`   // e.g. whatsapp:+447700900000
		From             string `yaml:"from"` // Twilio sandbox or sender number
		TwilioAccountSID string `yaml:"twilio_account_sid"`
		TwilioAuthToken  string `yaml:"twilio_auth_token"` // fallback when the keychain has no entry
		DigestTime       string `yaml:"digest_time"`       // "08:30" local time
		IntervalMinutes  int    `yaml:"interval_minutes"`
		SettleSeconds    int    `yaml:"settle_seconds"`
		MessageLimit     int    `yaml:"message_limit"`
	} `yaml:"notify"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
