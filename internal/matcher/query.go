package matcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CriterionState distinguishes a missing field from a placeholder and from a real value
type CriterionState int

const (
	// Absent means the caller did not supply the field
	Absent CriterionState = iota

	// Placeholder means the caller supplied a sentinel meaning "unknown".
	// It never constrains a search.
	Placeholder

	// Known means the caller supplied a value that constrains the search
	Known

	// Malformed means the caller supplied a value that could not be read.
	// It constrains the search to nothing.
	Malformed
)

// String returns the string representation of CriterionState
func (s CriterionState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Placeholder:
		return "placeholder"
	case Known:
		return "known"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Criterion is one optional filter value of a query
type Criterion[T any] struct {
	State CriterionState
	Value T
}

// Is returns a criterion holding a constraining value
func Is[T any](v T) Criterion[T] {
	return Criterion[T]{State: Known, Value: v}
}

// Constrains reports whether the criterion narrows the working set
func (c Criterion[T]) Constrains() bool {
	return c.State == Known || c.State == Malformed
}

// IsKnown reports whether the criterion holds a usable value
func (c Criterion[T]) IsKnown() bool {
	return c.State == Known
}

// Query is the normalized form of a lookup request
type Query struct {
	Date         Criterion[string]
	Time         Criterion[TimeOfDay]
	Amount       Criterion[decimal.Decimal]
	SenderLast4  Criterion[string]
	MaxResults   int
	FuzzyEnabled bool
}

// NewQuery returns an unconstrained query with fuzzy matching enabled
func NewQuery() Query {
	return Query{FuzzyEnabled: true}
}

// Fingerprint returns a canonical string identifying the query's semantics.
// Two requests that normalize to the same query share a fingerprint.
func (q Query) Fingerprint() string {
	parts := []string{
		"d=" + fingerprintPart(q.Date, func(v string) string { return v }),
		"t=" + fingerprintPart(q.Time, func(v TimeOfDay) string { return v.String() }),
		"a=" + fingerprintPart(q.Amount, func(v decimal.Decimal) string { return v.String() }),
		"l=" + fingerprintPart(q.SenderLast4, func(v string) string { return v }),
		"n=" + strconv.Itoa(q.MaxResults),
		"f=" + strconv.FormatBool(q.FuzzyEnabled),
	}
	return strings.Join(parts, "|")
}

func fingerprintPart[T any](c Criterion[T], format func(T) string) string {
	switch c.State {
	case Known:
		return format(c.Value)
	case Malformed:
		return "!"
	default:
		return "*"
	}
}

// Request is the caller-facing lookup request. Nil and empty fields are absent.
type Request struct {
	Date        *string          `json:"date,omitempty"`
	Time        *string          `json:"time,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	SenderLast4 *string          `json:"sender_last4,omitempty"`
	LastN       *int             `json:"last_n,omitempty"`
	FuzzySearch *bool            `json:"fuzzy_search,omitempty"`
}

// Query normalizes the request, resolving sentinels and defaults from cfg
func (r Request) Query(cfg *SearchConfig) Query {
	if cfg == nil {
		cfg = DefaultSearchConfig()
	}

	q := NewQuery()
	q.MaxResults = cfg.DefaultMaxResults

	if date := trimmed(r.Date); date != "" {
		q.Date = Is(date)
	}

	if last4 := trimmed(r.SenderLast4); last4 != "" {
		if last4 == cfg.UnknownLast4 {
			q.SenderLast4 = Criterion[string]{State: Placeholder}
		} else {
			q.SenderLast4 = Is(last4)
		}
	}

	if raw := trimmed(r.Time); raw != "" {
		q.Time = timeCriterion(raw, cfg.UnknownTime)
	}

	if r.Amount != nil {
		if r.Amount.IsPositive() {
			q.Amount = Is(*r.Amount)
		} else {
			q.Amount = Criterion[decimal.Decimal]{State: Placeholder}
		}
	}

	if r.LastN != nil && *r.LastN > 0 {
		q.MaxResults = *r.LastN
	}

	if r.FuzzySearch != nil {
		q.FuzzyEnabled = *r.FuzzySearch
	}

	return q
}

func timeCriterion(raw, unknown string) Criterion[TimeOfDay] {
	tod, err := ParseTimeOfDay(raw)
	if err != nil {
		return Criterion[TimeOfDay]{State: Malformed}
	}

	if sentinel, err := ParseTimeOfDay(unknown); err == nil && sentinel == tod {
		return Criterion[TimeOfDay]{State: Placeholder}
	}

	return Is(tod)
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// TimeOfDay is a wall-clock time expressed as seconds since midnight
type TimeOfDay int

var timeOfDayLayouts = []string{"15:04:05", "15:04"}

// ParseTimeOfDay reads HH:MM:SS or HH:MM (seconds default to zero).
// Stored record times and query times go through this same routine.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)

	var lastErr error
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
		lastErr = err
	}

	return 0, fmt.Errorf("invalid time of day %q: %w", s, lastErr)
}

// Distance returns the absolute same-day distance between two times.
// There is no wraparound: 23:50 and 00:10 are 23h40m apart.
func (t TimeOfDay) Distance(other TimeOfDay) time.Duration {
	diff := int(t) - int(other)
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff) * time.Second
}

// String formats the time as HH:MM:SS
func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
