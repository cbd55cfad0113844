// Package generator builds synthetic UPI transaction snapshots for local
// development and load testing.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"upi-transaction-lookup/internal/models"
	"upi-transaction-lookup/internal/snapshot"

	"github.com/shopspring/decimal"
)

const secondsPerDay = 24 * 60 * 60

// Banks are the bank names assigned to senders and receivers
var Banks = []string{"SBI", "HDFC", "ICICI", "AXIS", "PNB"}

var failureReasons = []string{
	"Insufficient balance",
	"Bank server timeout",
	"Incorrect UPI PIN",
	"Daily limit exceeded",
}

// Config controls the shape of a generated snapshot
type Config struct {
	Count     int
	Days      int
	Now       time.Time
	Seed      int64
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal

	// WithFailureReasons fills FailureReason on FAILED records
	WithFailureReasons bool
}

// DefaultConfig returns 200 transactions spread over the last 30 days
func DefaultConfig() *Config {
	return &Config{
		Count:     200,
		Days:      30,
		Now:       time.Now(),
		Seed:      time.Now().UnixNano(),
		MinAmount: decimal.NewFromInt(100),
		MaxAmount: decimal.NewFromInt(5000),
	}
}

// Validate checks that the configuration can produce Count unique timestamps
func (c *Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count must be non-negative, got %d", c.Count)
	}
	if c.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", c.Days)
	}
	if c.Count > c.Days*secondsPerDay {
		return fmt.Errorf("cannot place %d transactions at unique times within %d days", c.Count, c.Days)
	}
	if !c.MinAmount.IsPositive() {
		return fmt.Errorf("min amount must be positive, got %s", c.MinAmount)
	}
	if c.MaxAmount.LessThan(c.MinAmount) {
		return fmt.Errorf("max amount %s is below min amount %s", c.MaxAmount, c.MinAmount)
	}
	return nil
}

// Generator produces transaction records
type Generator struct {
	config *Config
	rng    *rand.Rand
}

// New creates a generator. A nil config uses DefaultConfig.
func New(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Now.IsZero() {
		config.Now = time.Now()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator configuration: %w", err)
	}

	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Generate returns Count records. No two records share a date and time.
func (g *Generator) Generate() []*models.TransactionRecord {
	records := make([]*models.TransactionRecord, 0, g.config.Count)
	used := make(map[string]struct{}, g.config.Count)
	y, m, d := g.config.Now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, g.config.Now.Location())

	for i := 1; i <= g.config.Count; i++ {
		var date, clock string
		for {
			day := today.AddDate(0, 0, -g.rng.Intn(g.config.Days))
			secs := g.rng.Intn(secondsPerDay)
			date = day.Format(models.DateLayout)
			clock = fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
			if _, dup := used[date+" "+clock]; !dup {
				used[date+" "+clock] = struct{}{}
				break
			}
		}

		status := models.AllStatuses[g.rng.Intn(len(models.AllStatuses))]
		record := &models.TransactionRecord{
			ID:                fmt.Sprintf("TXN%04d", i),
			Date:              date,
			Time:              clock,
			Amount:            g.amount(),
			SenderLast4:       fmt.Sprintf("%04d", 1000+g.rng.Intn(9000)),
			ReceiverAccountNo: fmt.Sprintf("%d", 7000000000+g.rng.Int63n(3000000000)),
			ReceiverBankName:  g.bank(),
			SenderBankName:    g.bank(),
			Status:            status,
			Description:       status.DefaultDescription(),
		}
		if g.config.WithFailureReasons && status == models.StatusFailed {
			record.FailureReason = failureReasons[g.rng.Intn(len(failureReasons))]
		}

		records = append(records, record)
	}

	return records
}

// WriteJSON writes records as an indented snapshot document
func WriteJSON(path string, records []*models.TransactionRecord) error {
	return snapshot.WriteJSON(path, records)
}

// amount is uniform in [MinAmount, MaxAmount] at paisa precision
func (g *Generator) amount() decimal.Decimal {
	lo := g.config.MinAmount.Shift(2).IntPart()
	hi := g.config.MaxAmount.Shift(2).IntPart()
	paise := lo + g.rng.Int63n(hi-lo+1)

	return decimal.New(paise, -2)
}

func (g *Generator) bank() string {
	return Banks[g.rng.Intn(len(Banks))]
}
