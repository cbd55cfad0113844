// Package matcher implements the transaction lookup engine.
//
// A search runs a layered precision policy over an immutable record
// collection:
//  1. Exact cascade: date, sender last4, time window and amount band are
//     applied in that order, each narrowing the working set
//  2. Fuzzy cascade: only when the exact cascade is empty, re-scan the
//     full collection on date, time and amount while ignoring the last4
//  3. No match: report failure with a per-date diagnostic count
//
// Results never exceed the requested maximum and keep collection order.
// Fuzzy results always carry a warning so callers can ask the user to
// verify their account details.
//
// Example usage:
//
//	engine := matcher.New(matcher.DefaultSearchConfig())
//	date, clock := "2025-12-23", "18:18"
//	query := matcher.Request{Date: &date, Time: &clock}.Query(engine.Config)
//	result := engine.Search(records, query)
package matcher

import (
	"fmt"
	"time"

	"upi-transaction-lookup/internal/models"

	"github.com/shopspring/decimal"
)

// SearchConfig holds the tolerances and conventions used by a search
type SearchConfig struct {
	// TimeTolerance is the largest time-of-day distance still considered a match
	TimeTolerance time.Duration `json:"time_tolerance"`

	// AmountTolerance is the largest absolute amount difference still considered a match
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// DefaultMaxResults applies when a query does not carry a positive cap
	DefaultMaxResults int `json:"default_max_results"`

	// UnknownLast4 is the sentinel callers send when the account suffix is unknown
	UnknownLast4 string `json:"unknown_last4"`

	// UnknownTime is the sentinel callers send when the time of day is unknown
	UnknownTime string `json:"unknown_time"`
}

// DefaultSearchConfig returns a 30 minute time window, a 50 unit amount
// band and ten results.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		TimeTolerance:     30 * time.Minute,
		AmountTolerance:   decimal.NewFromInt(50),
		DefaultMaxResults: 10,
		UnknownLast4:      "0000",
		UnknownTime:       "00:00:00",
	}
}

// Validate checks if the search configuration is valid
func (c *SearchConfig) Validate() error {
	if c.TimeTolerance < 0 || c.TimeTolerance >= 24*time.Hour {
		return fmt.Errorf("time tolerance must be between 0 and 24h: %s", c.TimeTolerance)
	}

	if c.TimeTolerance%time.Second != 0 {
		return fmt.Errorf("time tolerance must be a whole number of seconds: %s", c.TimeTolerance)
	}

	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", c.AmountTolerance)
	}

	if c.DefaultMaxResults <= 0 {
		return fmt.Errorf("default max results must be positive: %d", c.DefaultMaxResults)
	}

	if !models.IsLast4(c.UnknownLast4) {
		return fmt.Errorf("unknown last4 sentinel must be 4 digits: %q", c.UnknownLast4)
	}

	if _, err := ParseTimeOfDay(c.UnknownTime); err != nil {
		return fmt.Errorf("unknown time sentinel is not a time of day: %w", err)
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *SearchConfig) Clone() *SearchConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Fingerprint identifies the settings that change search results.
// Matchers with equal fingerprints return equal results for the same query.
func (c *SearchConfig) Fingerprint() string {
	return fmt.Sprintf("tt=%d|at=%s|n=%d|ul=%s|ut=%s",
		int64(c.TimeTolerance/time.Second), c.AmountTolerance.String(),
		c.DefaultMaxResults, c.UnknownLast4, c.UnknownTime)
}

// String returns a human-readable description of the configuration
func (c *SearchConfig) String() string {
	return fmt.Sprintf("SearchConfig{TimeTolerance: %s, AmountTolerance: %s, DefaultMaxResults: %d}",
		c.TimeTolerance, c.AmountTolerance.String(), c.DefaultMaxResults)
}
