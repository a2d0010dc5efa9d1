package config

import (
	"errors"
	"os"
	"path/filepath"
)

// EnsureUserConfig makes sure dataDir holds a config.yml, seeding it
// from the packaged default on first run.
func EnsureUserConfig(dataDir string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	if err := WriteDefault(userPath); err != nil {
		return "", err
	}
	return userPath, nil
}

const defaultYAML = `app:
  port: 8090
  data_dir: ""

search:
  workers: 4
  retention_days: 60
  host_req_per_sec: 1
  host_burst: 2

sources:
  - type: nhs
    name: nhs
    keywords: ["data analyst"]
    max_pages: 0
    location: "London"
    distance: "20"
  - type: dwp
    name: dwp
    keywords: ["data analyst"]
    max_pages: 3
    sort_by: "date"
  - type: indeed
    name: indeed
    keywords: ["data analyst"]
    max_pages: 2
    location: "London"

notify:
  enabled: false
  to: ""
  from: ""
  twilio_account_sid: ""
  digest_time: "08:30"
  interval_minutes: 240
  settle_seconds: 30
  message_limit: 1600
`

func WriteDefault(path string) error {
	return os.WriteFile(path, []byte(defaultYAML), 0o644)
}
