// CLAUDE:SUMMARY Input record model for one statistic lookup: fields, statistic enum, validation.
// Package record defines the immutable input record consumed by one run,
// its statistic enum, and the two ingestion paths: the key=value string
// grammar and the six-column tabular form.
package record

import (
	"errors"
	"fmt"
	"strconv"
)

// Statistic is the computed value requested for a record.
type Statistic int

const (
	StatUnknown Statistic = iota
	Mean
	Median
	Percentile25
	Percentile75
	AllIncumbentAverage
)

var statisticTokens = map[Statistic]string{
	Mean:                "Mean",
	Median:              "Median",
	Percentile25:        "25th Percentile",
	Percentile75:        "75th Percentile",
	AllIncumbentAverage: "All Incumbent Average",
}

// String returns the grammar token for s.
func (s Statistic) String() string {
	if tok, ok := statisticTokens[s]; ok {
		return tok
	}
	return "Unknown"
}

// NeedsRow reports whether s is read from the experience table rather than
// the summary field.
func (s Statistic) NeedsRow() bool {
	return s != AllIncumbentAverage
}

// ParseStatistic maps a grammar token to a Statistic.
func ParseStatistic(tok string) (Statistic, error) {
	for s, t := range statisticTokens {
		if t == tok {
			return s, nil
		}
	}
	return StatUnknown, fmt.Errorf("%w: %q", ErrUnknownStatistic, tok)
}

// MarshalText implements encoding.TextMarshaler.
func (s Statistic) MarshalText() ([]byte, error) {
	if s == StatUnknown {
		return nil, ErrUnknownStatistic
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Statistic) UnmarshalText(b []byte) error {
	v, err := ParseStatistic(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

var (
	ErrUnknownStatistic   = errors.New("record: unknown statistic")
	ErrExperienceRequired = errors.New("record: years of experience required for this statistic")
	ErrMissingStatistic   = errors.New("record: statistic token missing")
)

// InputRecord is one lookup request. It is built once by Parse or ReadTable
// and never mutated afterwards.
type InputRecord struct {
	Code            string    `json:"code"`
	Location        string    `json:"location"`
	Revenue         int64     `json:"revenue"`
	Industry        string    `json:"industry"`
	ExperienceYears *int      `json:"experience_years,omitempty"`
	Statistic       Statistic `json:"statistic"`
}

// Validate checks the cross-field invariants. A record that fails with
// ErrExperienceRequired is still processable: the batch records it as an
// extraction failure instead of running it.
func (r InputRecord) Validate() error {
	if r.Statistic == StatUnknown {
		return ErrMissingStatistic
	}
	if r.Revenue < 0 {
		return fmt.Errorf("record: negative revenue %d", r.Revenue)
	}
	if r.ExperienceYears != nil && *r.ExperienceYears < 0 {
		return fmt.Errorf("record: negative years of experience %d", *r.ExperienceYears)
	}
	if r.Statistic.NeedsRow() && r.ExperienceYears == nil {
		return ErrExperienceRequired
	}
	return nil
}

// ExperienceKey is the string compared against the first table column.
// Empty when no experience is set.
func (r InputRecord) ExperienceKey() string {
	if r.ExperienceYears == nil {
		return ""
	}
	return strconv.Itoa(*r.ExperienceYears)
}

// ExperienceLabel renders the experience for tabular output, "N/A" when unset.
func (r InputRecord) ExperienceLabel() string {
	if r.ExperienceYears == nil {
		return NotApplicable
	}
	return strconv.Itoa(*r.ExperienceYears)
}

// RevenueDisplay formats the revenue with thousands separators, the form
// typed into the revenue field.
func (r InputRecord) RevenueDisplay() string {
	return groupThousands(r.Revenue)
}

// NotApplicable is the tabular sentinel for an absent experience value.
const NotApplicable = "N/A"

// Years returns a pointer to y, for building records in code.
func Years(y int) *int { return &y }

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
