package config

import (
	"fmt"
	"regexp"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var digestTimeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

var knownSourceTypes = map[string]bool{"nhs": true, "dwp": true, "indeed": true}

// NormalizeAndValidate returns a normalized copy: defaults filled,
// whitespace trimmed, duplicate keywords dropped.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	// ---- Defaults ----

	if out.App.Port == 0 {
		out.App.Port = 8090
	}
	if out.Search.Workers <= 0 {
		out.Search.Workers = 4
	}
	if out.Search.RetentionDays <= 0 {
		out.Search.RetentionDays = 60
	}
	if out.Search.HostReqPerSec <= 0 {
		out.Search.HostReqPerSec = 1
	}
	if out.Search.HostBurst <= 0 {
		out.Search.HostBurst = 2
	}
	if out.Notify.DigestTime == "" {
		out.Notify.DigestTime = "08:30"
	}
	if out.Notify.IntervalMinutes <= 0 {
		out.Notify.IntervalMinutes = 240
	}
	if out.Notify.SettleSeconds <= 0 {
		out.Notify.SettleSeconds = 30
	}
	if out.Notify.MessageLimit <= 0 {
		out.Notify.MessageLimit = 1600
	}

	for i := range out.Sources {
		s := &out.Sources[i]
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if s.Name == "" {
			s.Name = s.Type
		}
		s.Keywords = trimList(s.Keywords)
	}

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if len(out.Sources) == 0 {
		res.addErr("sources must have at least 1 entry")
	}
	seen := map[string]bool{}
	for i, s := range out.Sources {
		if !knownSourceTypes[s.Type] {
			res.addErr("sources[%d].type %q is not one of nhs, dwp, indeed", i, s.Type)
		}
		if seen[s.Name] {
			res.addErr("sources[%d].name %q is duplicated", i, s.Name)
		}
		seen[s.Name] = true
		if len(s.Keywords) == 0 {
			res.addErr("sources[%d].keywords must have at least 1 term", i)
		}
		if s.MaxPages < 0 {
			res.addErr("sources[%d].max_pages must be >= 0", i)
		}
		if s.MaxPages > 20 {
			res.addWarn("sources[%d].max_pages is high (%d); long fetch cycles may trip rate limits.", i, s.MaxPages)
		}
	}

	if !digestTimeRe.MatchString(out.Notify.DigestTime) {
		res.addErr("notify.digest_time must be HH:MM")
	}
	if out.Notify.IntervalMinutes < 15 {
		res.addWarn("notify.interval_minutes is very low (%d); expect chatty alerts.", out.Notify.IntervalMinutes)
	}

	if out.Notify.Enabled {
		if strings.TrimSpace(out.Notify.To) == "" {
			res.addErr("notify.to is required when notify.enabled=true")
		}
		if strings.TrimSpace(out.Notify.From) == "" {
			res.addErr("notify.from is required when notify.enabled=true")
		}
		if strings.TrimSpace(out.Notify.TwilioAccountSID) == "" {
			res.addErr("notify.twilio_account_sid is required when notify.enabled=true")
		}
		// Auth token not required here; it lives in the keychain.
	}

	return out, res
}
