// Package notify turns index snapshots into outbound messages on a
// fixed schedule: a morning digest that always reports, and interval
// alerts that only speak up when something new arrived.
package notify

import (
	"fmt"

	"jobradar-engine/internal/domain"
)

type TickKind int

const (
	// TickDigest is the once-a-day summary. It sends even when nothing
	// is new, so a silent day is distinguishable from a broken engine.
	TickDigest TickKind = iota
	// TickInterval is the repeating check between digests. Silence
	// means nothing new.
	TickInterval
)

func (k TickKind) String() string {
	if k == TickDigest {
		return "digest"
	}
	return "interval"
}

const (
	digestMaxEntries   = 15
	intervalMaxEntries = 10
)

// Snapshot is what the index looked like when a tick fired.
type Snapshot struct {
	Total int
	New   []domain.Entry
}

// Message is a formatted notification before length splitting. Blocks
// are indivisible: the splitter may distribute them across parts but
// never cuts inside one.
type Message struct {
	Header string
	Blocks []string
	Footer string
}

// Decide is the pure policy step: given a tick and a snapshot, either a
// message to send or nothing. All side effects live in the caller.
func Decide(kind TickKind, snap Snapshot) (Message, bool) {
	switch kind {
	case TickDigest:
		return digestMessage(snap), true
	case TickInterval:
		if len(snap.New) == 0 {
			return Message{}, false
		}
		return alertMessage(snap), true
	}
	return Message{}, false
}

func digestMessage(snap Snapshot) Message {
	if len(snap.New) == 0 {
		return Message{
			Header: fmt.Sprintf("Morning digest: no new roles. %d indexed in total.", snap.Total),
		}
	}
	m := Message{
		Header: fmt.Sprintf("Morning digest: %s since the last update", countRoles(len(snap.New))),
		Blocks: formatEntries(snap.New, digestMaxEntries),
	}
	if extra := len(snap.New) - digestMaxEntries; extra > 0 {
		m.Footer = fmt.Sprintf("... and %d more", extra)
	}
	return m
}

func alertMessage(snap Snapshot) Message {
	m := Message{
		Header: fmt.Sprintf("%s just in", countRoles(len(snap.New))),
		Blocks: formatEntries(snap.New, intervalMaxEntries),
	}
	if extra := len(snap.New) - intervalMaxEntries; extra > 0 {
		m.Footer = fmt.Sprintf("... and %d more", extra)
	}
	return m
}

func countRoles(n int) string {
	if n == 1 {
		return "1 new role"
	}
	return fmt.Sprintf("%d new roles", n)
}

func formatEntries(entries []domain.Entry, max int) []string {
	if len(entries) > max {
		entries = entries[:max]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, FormatBlock(e))
	}
	return out
}

// FormatBlock renders one listing as a message block.
func FormatBlock(e domain.Entry) string {
	s := "• " + e.Title
	if e.Employer != "" {
		s += " - " + e.Employer
	}
	line2 := e.Location
	if e.Salary != "" {
		if line2 != "" {
			line2 += " | "
		}
		line2 += e.Salary
	}
	if line2 != "" {
		s += "\n  " + line2
	}
	s += "\n  " + e.URL
	return s
}
