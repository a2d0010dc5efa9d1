package connector

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// CleanText collapses whitespace runs (including NBSP) to single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// CanonicalURL normalizes a listing URL into the identity key used by
// the index: lowercased scheme/host, no fragment, tracking parameters
// stripped, deterministic query order.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" ||
			lk == "mkt_tok" {
			q.Del(k)
		}
	}

	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

var relativeDateRe = regexp.MustCompile(`(?i)^(?:posted\s+)?(\d+)\s*(hour|day|week|month)s?(?:\s+ago)?\+?$`)

// ParsePostedDate turns the date strings boards actually publish
// ("22 February 2026", "2026-02-22", "3 days ago", "Today") into a
// timestamp. Returns nil when the text cannot be read confidently; a
// wrong date never enters the index.
func ParsePostedDate(s string, now time.Time) *time.Time {
	s = CleanText(s)
	if s == "" {
		return nil
	}

	low := strings.ToLower(s)
	switch low {
	case "today", "just posted", "just now":
		t := now
		return &t
	case "yesterday":
		t := now.AddDate(0, 0, -1)
		return &t
	}

	if m := relativeDateRe.FindStringSubmatch(low); m != nil {
		n, _ := strconv.Atoi(m[1])
		var t time.Time
		switch m[2] {
		case "hour":
			t = now.Add(-time.Duration(n) * time.Hour)
		case "day":
			t = now.AddDate(0, 0, -n)
		case "week":
			t = now.AddDate(0, 0, -7*n)
		case "month":
			t = now.AddDate(0, -n, 0)
		}
		return &t
	}

	if t, err := dateparse.ParseAny(s); err == nil {
		return &t
	}
	return nil
}
