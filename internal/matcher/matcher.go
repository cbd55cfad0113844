package matcher

import (
	"fmt"

	"upi-transaction-lookup/internal/models"

	"github.com/shopspring/decimal"
)

// MatchTier represents the confidence level of a search result
type MatchTier string

const (
	// TierExact means every supplied criterion matched within tolerance
	TierExact MatchTier = "exact"

	// TierFuzzy means date, time and amount matched but the last4 was ignored.
	// Callers must ask the user to verify their account details.
	TierFuzzy MatchTier = "fuzzy"

	// TierNone means no record matched
	TierNone MatchTier = "none"

	// TierEmpty means there were no records to search at all
	TierEmpty MatchTier = "empty"
)

const (
	messageEmpty   = "No transactions found in database"
	messageNoMatch = "No transactions found matching the criteria."
	fuzzyWarning   = "Account number last 4 digits don't match. Please verify your account details."
)

// StageTrace records how many records survived one filtering stage
type StageTrace struct {
	Stage     string `json:"stage"`
	Remaining int    `json:"remaining"`
}

// SearchResult is the structured outcome of a search
type SearchResult struct {
	Success   bool                        `json:"success"`
	Count     int                         `json:"count"`
	Message   string                      `json:"message"`
	Records   []*models.TransactionRecord `json:"transactions"`
	Warning   string                      `json:"warning,omitempty"`
	DebugInfo string                      `json:"debug_info,omitempty"`
	Tier      MatchTier                   `json:"tier"`

	// Trace lists the surviving count after each stage, for diagnostics
	Trace []StageTrace `json:"-"`
}

// Matcher searches record collections with a fixed configuration.
// It holds no collection state and is safe for concurrent use.
type Matcher struct {
	Config *SearchConfig
}

// New creates a matcher with the specified configuration
func New(config *SearchConfig) *Matcher {
	if config == nil {
		config = DefaultSearchConfig()
	}
	return &Matcher{Config: config}
}

// Search runs the exact cascade, then the fuzzy cascade if nothing matched,
// and reports a no-match result with diagnostics otherwise.
func (m *Matcher) Search(records []*models.TransactionRecord, q Query) *SearchResult {
	if len(records) == 0 {
		return &SearchResult{
			Message: messageEmpty,
			Records: []*models.TransactionRecord{},
			Tier:    TierEmpty,
		}
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = m.Config.DefaultMaxResults
	}

	var trace []StageTrace

	exact, exactTrace := m.cascade(records, m.exactStages(q), limit)
	trace = append(trace, exactTrace...)
	if len(exact) > 0 {
		return &SearchResult{
			Success: true,
			Count:   len(exact),
			Message: fmt.Sprintf("Found %d transaction(s).", len(exact)),
			Records: exact,
			Tier:    TierExact,
			Trace:   trace,
		}
	}

	if m.fuzzyEligible(q) {
		fuzzy, fuzzyTrace := m.cascade(records, m.fuzzyStages(q), limit)
		trace = append(trace, fuzzyTrace...)
		if len(fuzzy) > 0 {
			return &SearchResult{
				Success: true,
				Count:   len(fuzzy),
				Message: fmt.Sprintf("No exact match found, but found %d transaction(s) with matching date, time, and amount. "+
					"The last 4 digits might be different - please verify.", len(fuzzy)),
				Records: fuzzy,
				Warning: fuzzyWarning,
				Tier:    TierFuzzy,
				Trace:   trace,
			}
		}
	}

	result := &SearchResult{
		Message: messageNoMatch,
		Records: []*models.TransactionRecord{},
		Tier:    TierNone,
		Trace:   trace,
	}

	if q.Date.IsKnown() {
		onDate := 0
		for _, r := range records {
			if r != nil && r.Date == q.Date.Value {
				onDate++
			}
		}
		result.DebugInfo = fmt.Sprintf("%d transactions on %s", onDate, q.Date.Value)
	}

	return result
}

// stage is one predicate of a filter cascade
type stage struct {
	name string
	keep func(r *models.TransactionRecord) bool
}

// exactStages builds the exact cascade in its fixed order, skipping
// criteria that do not constrain.
func (m *Matcher) exactStages(q Query) []stage {
	var stages []stage

	if q.Date.Constrains() {
		stages = append(stages, m.dateStage(q.Date))
	}
	if q.SenderLast4.Constrains() {
		last4 := q.SenderLast4.Value
		stages = append(stages, stage{
			name: "sender_last4",
			keep: func(r *models.TransactionRecord) bool { return r.SenderLast4 == last4 },
		})
	}
	if q.Time.Constrains() {
		stages = append(stages, m.timeStage(q.Time))
	}
	if q.Amount.Constrains() {
		stages = append(stages, m.amountStage(q.Amount))
	}

	return stages
}

// fuzzyStages drops the last4 constraint. Only used when date, time and
// amount are all known.
func (m *Matcher) fuzzyStages(q Query) []stage {
	stages := []stage{
		m.dateStage(q.Date),
		m.timeStage(q.Time),
		m.amountStage(q.Amount),
	}
	for i := range stages {
		stages[i].name = "fuzzy_" + stages[i].name
	}
	return stages
}

// fuzzyEligible requires date, time and amount to be known. Placeholders
// do not count as supplied.
func (m *Matcher) fuzzyEligible(q Query) bool {
	return q.FuzzyEnabled && q.Date.IsKnown() && q.Time.IsKnown() && q.Amount.IsKnown()
}

func (m *Matcher) dateStage(c Criterion[string]) stage {
	return stage{
		name: "date",
		keep: func(r *models.TransactionRecord) bool { return r.Date == c.Value },
	}
}

func (m *Matcher) timeStage(c Criterion[TimeOfDay]) stage {
	if c.State == Malformed {
		return stage{name: "time", keep: func(*models.TransactionRecord) bool { return false }}
	}

	tolerance := m.Config.TimeTolerance
	return stage{
		name: "time",
		keep: func(r *models.TransactionRecord) bool {
			stored, err := ParseTimeOfDay(r.Time)
			if err != nil {
				return false
			}
			return stored.Distance(c.Value) <= tolerance
		},
	}
}

func (m *Matcher) amountStage(c Criterion[decimal.Decimal]) stage {
	tolerance := m.Config.AmountTolerance
	return stage{
		name: "amount",
		keep: func(r *models.TransactionRecord) bool {
			return r.Amount.Sub(c.Value).Abs().LessThanOrEqual(tolerance)
		},
	}
}

// cascade applies the stages in order, each narrowing the previous working
// set, then truncates to limit in collection order.
func (m *Matcher) cascade(records []*models.TransactionRecord, stages []stage, limit int) ([]*models.TransactionRecord, []StageTrace) {
	working := withoutNil(records)
	trace := make([]StageTrace, 0, len(stages))

	for _, s := range stages {
		kept := make([]*models.TransactionRecord, 0, len(working))
		for _, r := range working {
			if s.keep(r) {
				kept = append(kept, r)
			}
		}
		working = kept
		trace = append(trace, StageTrace{Stage: s.name, Remaining: len(working)})
	}

	if len(working) > limit {
		working = working[:limit]
	}

	out := make([]*models.TransactionRecord, len(working))
	copy(out, working)
	return out, trace
}

// Search runs a search with the default configuration
func Search(records []*models.TransactionRecord, q Query) *SearchResult {
	return New(nil).Search(records, q)
}

// withoutNil returns records with nil entries dropped, reusing the slice
// when there are none
func withoutNil(records []*models.TransactionRecord) []*models.TransactionRecord {
	for i, r := range records {
		if r != nil {
			continue
		}
		kept := make([]*models.TransactionRecord, i, len(records))
		copy(kept, records[:i])
		for _, r := range records[i+1:] {
			if r != nil {
				kept = append(kept, r)
			}
		}
		return kept
	}
	return records
}
