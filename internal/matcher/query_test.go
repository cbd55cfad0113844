package matcher

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		expected TimeOfDay
		wantErr  bool
	}{
		{input: "18:18:44", expected: 18*3600 + 18*60 + 44},
		{input: "18:18", expected: 18*3600 + 18*60},
		{input: " 09:05 ", expected: 9*3600 + 5*60},
		{input: "00:00:00", expected: 0},
		{input: "23:59:59", expected: 86399},
		{input: "24:00:00", wantErr: true},
		{input: "18:61", wantErr: true},
		{input: "6pm", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTimeOfDay_DistanceAndString(t *testing.T) {
	a, _ := ParseTimeOfDay("23:50:00")
	b, _ := ParseTimeOfDay("00:10:00")

	if got := a.Distance(b); got != 23*time.Hour+40*time.Minute {
		t.Errorf("Expected same-day distance of 23h40m, got %s", got)
	}
	if a.Distance(b) != b.Distance(a) {
		t.Error("Expected distance to be symmetric")
	}
	if a.String() != "23:50:00" {
		t.Errorf("Unexpected formatting %q", a.String())
	}
}

func TestRequest_Query(t *testing.T) {
	cfg := DefaultSearchConfig()

	t.Run("empty request", func(t *testing.T) {
		q := Request{}.Query(cfg)
		if q.Date.State != Absent || q.Time.State != Absent || q.Amount.State != Absent || q.SenderLast4.State != Absent {
			t.Errorf("Expected all criteria absent, got %+v", q)
		}
		if q.MaxResults != cfg.DefaultMaxResults {
			t.Errorf("Expected default max results, got %d", q.MaxResults)
		}
		if !q.FuzzyEnabled {
			t.Error("Expected fuzzy search to default to enabled")
		}
	})

	t.Run("blank strings are absent", func(t *testing.T) {
		q := Request{Date: str("  "), Time: str(""), SenderLast4: str(" ")}.Query(cfg)
		if q.Date.State != Absent || q.Time.State != Absent || q.SenderLast4.State != Absent {
			t.Errorf("Expected blank fields to be absent, got %+v", q)
		}
	})

	t.Run("sentinels are placeholders", func(t *testing.T) {
		q := Request{Time: str("00:00"), SenderLast4: str("0000"), Amount: amount("-5")}.Query(cfg)
		if q.Time.State != Placeholder {
			t.Errorf("Expected time placeholder, got %s", q.Time.State)
		}
		if q.SenderLast4.State != Placeholder {
			t.Errorf("Expected last4 placeholder, got %s", q.SenderLast4.State)
		}
		if q.Amount.State != Placeholder {
			t.Errorf("Expected amount placeholder, got %s", q.Amount.State)
		}
	})

	t.Run("values are known", func(t *testing.T) {
		q := Request{
			Date:        str(" 2025-12-23 "),
			Time:        str("18:18"),
			Amount:      amount("2941.8"),
			SenderLast4: str("2006"),
			LastN:       intPtr(3),
			FuzzySearch: boolean(false),
		}.Query(cfg)

		if !q.Date.IsKnown() || q.Date.Value != "2025-12-23" {
			t.Errorf("Unexpected date %+v", q.Date)
		}
		if !q.Time.IsKnown() || q.Time.Value.String() != "18:18:00" {
			t.Errorf("Unexpected time %+v", q.Time)
		}
		if !q.Amount.IsKnown() || !q.Amount.Value.Equal(decimal.RequireFromString("2941.8")) {
			t.Errorf("Unexpected amount %+v", q.Amount)
		}
		if q.MaxResults != 3 || q.FuzzyEnabled {
			t.Errorf("Unexpected cap or fuzzy flag: %d %v", q.MaxResults, q.FuzzyEnabled)
		}
	})

	t.Run("unparseable time is malformed", func(t *testing.T) {
		q := Request{Time: str("half six")}.Query(cfg)
		if q.Time.State != Malformed {
			t.Errorf("Expected malformed time, got %s", q.Time.State)
		}
		if !q.Time.Constrains() || q.Time.IsKnown() {
			t.Error("Expected malformed time to constrain without being known")
		}
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		q := Request{SenderLast4: str("0000")}.Query(nil)
		if q.SenderLast4.State != Placeholder || q.MaxResults != 10 {
			t.Errorf("Expected default sentinels and cap, got %+v", q)
		}
	})
}

func TestQuery_Fingerprint(t *testing.T) {
	cfg := DefaultSearchConfig()

	a := Request{Date: str("2025-12-23"), Time: str("18:18"), Amount: amount("100.0")}.Query(cfg)
	b := Request{Date: str("2025-12-23 "), Time: str("18:18:00"), Amount: amount("100"), SenderLast4: str("0000")}.Query(cfg)

	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("Expected equivalent requests to share a fingerprint:\n%s\n%s", a.Fingerprint(), b.Fingerprint())
	}

	c := Request{Date: str("2025-12-23"), Time: str("18:18"), Amount: amount("100"), FuzzySearch: boolean(false)}.Query(cfg)
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("Expected the fuzzy flag to change the fingerprint")
	}

	malformed := Request{Time: str("nope")}.Query(cfg)
	absent := Request{}.Query(cfg)
	if malformed.Fingerprint() == absent.Fingerprint() {
		t.Error("Expected a malformed time to differ from an absent one")
	}
}

func TestSearchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *SearchConfig)
		wantErr bool
	}{
		{name: "default", mutate: func(c *SearchConfig) {}},
		{name: "zero tolerances", mutate: func(c *SearchConfig) { c.TimeTolerance = 0; c.AmountTolerance = decimal.Zero }},
		{name: "negative time tolerance", mutate: func(c *SearchConfig) { c.TimeTolerance = -time.Second }, wantErr: true},
		{name: "full day tolerance", mutate: func(c *SearchConfig) { c.TimeTolerance = 24 * time.Hour }, wantErr: true},
		{name: "sub-second tolerance", mutate: func(c *SearchConfig) { c.TimeTolerance = 1500 * time.Millisecond }, wantErr: true},
		{name: "negative amount tolerance", mutate: func(c *SearchConfig) { c.AmountTolerance = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "zero max results", mutate: func(c *SearchConfig) { c.DefaultMaxResults = 0 }, wantErr: true},
		{name: "bad last4 sentinel", mutate: func(c *SearchConfig) { c.UnknownLast4 = "000" }, wantErr: true},
		{name: "bad time sentinel", mutate: func(c *SearchConfig) { c.UnknownTime = "midnight" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSearchConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchConfig_Clone(t *testing.T) {
	original := DefaultSearchConfig()
	clone := original.Clone()
	clone.DefaultMaxResults = 99

	if original.DefaultMaxResults == 99 {
		t.Error("Expected clone to be independent of the original")
	}

	var nilConfig *SearchConfig
	if nilConfig.Clone() != nil {
		t.Error("Expected nil clone for nil config")
	}
}

func TestMatcher_ConcurrentSearches(t *testing.T) {
	engine := New(nil)
	records := createTestRecords()
	q := Request{Date: str("2025-12-23"), SenderLast4: str("2006")}.Query(engine.Config)

	var wg sync.WaitGroup
	errs := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := engine.Search(records, q)
			if result.Count != 2 {
				errs <- "unexpected count"
			}
		}()
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}

func TestSearchConfig_Fingerprint(t *testing.T) {
	base := DefaultSearchConfig()
	if got, want := base.Fingerprint(), "tt=1800|at=50|n=10|ul=0000|ut=00:00:00"; got != want {
		t.Errorf("Fingerprint() = %q, want %q", got, want)
	}

	if base.Fingerprint() != DefaultSearchConfig().Fingerprint() {
		t.Error("Expected equal configurations to share a fingerprint")
	}

	tests := []struct {
		name   string
		mutate func(*SearchConfig)
	}{
		{"time tolerance", func(c *SearchConfig) { c.TimeTolerance = 10 * time.Minute }},
		{"amount tolerance", func(c *SearchConfig) { c.AmountTolerance = decimal.NewFromInt(5) }},
		{"default max results", func(c *SearchConfig) { c.DefaultMaxResults = 3 }},
		{"unknown last4", func(c *SearchConfig) { c.UnknownLast4 = "9999" }},
		{"unknown time", func(c *SearchConfig) { c.UnknownTime = "23:59:59" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base.Clone()
			tt.mutate(cfg)
			if cfg.Fingerprint() == base.Fingerprint() {
				t.Errorf("Expected %s to change the fingerprint", tt.name)
			}
		})
	}
}
