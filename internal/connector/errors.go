package connector

import (
	"errors"
	"fmt"
)

// Kind classifies a connector failure so the pipeline and scheduler can
// react per class: retry transport errors, skip drifted pages, and back
// off an actively blocking source for the rest of the cycle.
type Kind int

const (
	// KindNetwork is a transport-level failure, retried within the
	// connector's own backoff budget before surfacing.
	KindNetwork Kind = iota
	// KindParse means a page did not match the expected template. The
	// page is skipped rather than emitting half-guessed fields.
	KindParse
	// KindBlocked means every fallback tier was exhausted against an
	// active bot defense. Distinct from KindNetwork so the caller can
	// choose not to retry the whole connector this cycle.
	KindBlocked
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

type SourceError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func NetworkErr(op string, err error) *SourceError {
	return &SourceError{Kind: KindNetwork, Op: op, Err: err}
}

func ParseErr(op string, err error) *SourceError {
	return &SourceError{Kind: KindParse, Op: op, Err: err}
}

func BlockedErr(op string, err error) *SourceError {
	return &SourceError{Kind: KindBlocked, Op: op, Err: err}
}

func kindIs(err error, k Kind) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == k
}

func IsNetwork(err error) bool { return kindIs(err, KindNetwork) }
func IsParse(err error) bool   { return kindIs(err, KindParse) }
func IsBlocked(err error) bool { return kindIs(err, KindBlocked) }
