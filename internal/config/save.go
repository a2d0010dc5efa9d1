package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}
	if len(cfg.Sources) == 0 {
		errs = append(errs, "sources must have at least 1 entry")
	}
	for i, s := range cfg.Sources {
		if !knownSourceTypes[s.Type] {
			errs = append(errs, fmt.Sprintf("sources[%d].type %q is unknown", i, s.Type))
		}
		if len(s.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("sources[%d].keywords must have at least 1 term", i))
		}
		for j, kw := range s.Keywords {
			if kw == "" {
				errs = append(errs, fmt.Sprintf("sources[%d].keywords[%d] cannot be empty", i, j))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	out := ""
	for i, s := range lines {
		if i > 0 {
			out += "\n- "
		}
		out += s
	}
	return out
}
