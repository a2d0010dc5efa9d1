// config/overlay.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// OverlaySources replaces cfg.Sources with the contents of a separate
// sources.yml, when one exists. Lets the source list be edited without
// touching credentials in the main config.
func OverlaySources(cfg *Config, sourcesPath string) error {
	b, err := os.ReadFile(sourcesPath)
	if err != nil {
		// Missing sources file should not kill startup
		return nil
	}

	var sf sourcesFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return err
	}

	if len(sf.Sources) > 0 {
		cfg.Sources = sf.Sources
	}
	return nil
}
