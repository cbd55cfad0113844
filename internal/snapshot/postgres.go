package snapshot

import (
	"context"
	"fmt"
	"regexp"

	"upi-transaction-lookup/internal/models"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DefaultTable is the table PostgresSource reads when none is configured
const DefaultTable = "upi_transactions"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// querier is the subset of *pgxpool.Pool used to read records
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresConfig configures a PostgresSource
type PostgresConfig struct {
	DSN              string `mapstructure:"dsn"`
	Table            string `mapstructure:"table"`
	OrderNewestFirst bool   `mapstructure:"order_newest_first"`
}

// Validate checks if the Postgres configuration is valid
func (c *PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres dsn cannot be empty")
	}
	if c.Table != "" && !tableNamePattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	return nil
}

// PostgresSource reads the snapshot from a Postgres table
type PostgresSource struct {
	db     querier
	pool   *pgxpool.Pool
	config PostgresConfig
	logger logger.Logger
}

// NewPostgresSource connects a pool for the configured DSN
func NewPostgresSource(ctx context.Context, config PostgresConfig) (*PostgresSource, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "postgres", config.Table, err)
	}

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "postgres", err)
	}

	source := newPostgresSource(pool, config)
	source.pool = pool
	return source, nil
}

func newPostgresSource(db querier, config PostgresConfig) *PostgresSource {
	if config.Table == "" {
		config.Table = DefaultTable
	}
	return &PostgresSource{
		db:     db,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("snapshot_postgres"),
	}
}

// Name returns the table the source reads
func (ps *PostgresSource) Name() string {
	return "postgres:" + ps.config.Table
}

// Close releases the connection pool
func (ps *PostgresSource) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

func (ps *PostgresSource) query() string {
	order := "ASC"
	if ps.config.OrderNewestFirst {
		order = "DESC"
	}
	return fmt.Sprintf(`SELECT txn_id, date::text, time::text, amount::text, sender_last4,
	COALESCE(receiver_account_no, ''), COALESCE(receiver_bank_name, ''), COALESCE(sender_bank_name, ''),
	status, COALESCE(description, ''), COALESCE(failure_reason, '')
FROM %s
ORDER BY date %s, time %s, txn_id %s`, ps.config.Table, order, order, order)
}

// Load selects every row of the table
func (ps *PostgresSource) Load(ctx context.Context) ([]*models.TransactionRecord, error) {
	rows, err := ps.db.Query(ctx, ps.query())
	if err != nil {
		ps.logger.WithError(err).WithField("table", ps.config.Table).Error("Failed to query transactions")
		return nil, errors.SourceError(errors.CodeSourceUnavailable, ps.Name(), err)
	}
	defer rows.Close()

	records := make([]*models.TransactionRecord, 0)
	for rows.Next() {
		var (
			r      models.TransactionRecord
			amount string
			status string
		)
		if err := rows.Scan(
			&r.ID, &r.Date, &r.Time, &amount, &r.SenderLast4,
			&r.ReceiverAccountNo, &r.ReceiverBankName, &r.SenderBankName,
			&status, &r.Description, &r.FailureReason,
		); err != nil {
			return nil, errors.SourceError(errors.CodeSourceCorrupted, ps.Name(), err)
		}

		// Unparseable amounts stay zero and are rejected by validation
		r.Amount, _ = decimal.NewFromString(amount)
		r.Status = models.TransactionStatus(status)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.SourceError(errors.CodeSourceUnavailable, ps.Name(), err)
	}

	ps.logger.WithFields(logger.Fields{
		"table":   ps.config.Table,
		"records": len(records),
	}).Debug("Loaded transactions from postgres")

	return records, nil
}
