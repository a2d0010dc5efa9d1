package domain

import "time"

// Listing is the source-independent form of one job advert.
// URL is the canonical link and serves as the identity key across
// sources and repeated fetches; two listings sharing a URL are the
// same logical advert and must merge in the index, never duplicate.
type Listing struct {
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Employer       string     `json:"employer"`
	Location       string     `json:"location"`
	Salary         string     `json:"salary,omitempty"`
	PostedAt       *time.Time `json:"postedAt,omitempty"`
	ClosingAt      *time.Time `json:"closingAt,omitempty"`
	ContractType   string     `json:"contractType,omitempty"`
	WorkingPattern string     `json:"workingPattern,omitempty"`
	Description    string     `json:"description,omitempty"`
	JobRef         string     `json:"jobRef,omitempty"`
	Source         string     `json:"source"`
	FetchedAt      time.Time  `json:"fetchedAt"`
}

// Entry wraps a Listing with index bookkeeping. FirstSeen is set once on
// insert and never changes; LastSeen is refreshed on every upsert.
type Entry struct {
	Listing
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}
