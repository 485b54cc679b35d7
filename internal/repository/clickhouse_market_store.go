package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	applogger "GridPull/pkg/logger"
	"GridPull/pkg/timeseries"
)

// ClickHouseMarketStore implements MarketStore backed by ClickHouse.
type ClickHouseMarketStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseMarketStore creates ClickHouse market storage.
func NewClickHouseMarketStore(db *sql.DB, table string) *ClickHouseMarketStore {
	return &ClickHouseMarketStore{db: db, table: table}
}

// SetLogger injects a structured logger.
func (s *ClickHouseMarketStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseMarketStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

// GasPrices returns the day-ahead gas price series as a single "price" column.
func (s *ClickHouseMarketStore) GasPrices(ctx context.Context, from, to time.Time) (*timeseries.Frame, error) {
	start := time.Now()
	q := fmt.Sprintf(
		"SELECT datetime, price FROM %s WHERE name = 'gasPrice' AND datetime >= ? AND datetime <= ? ORDER BY datetime ASC",
		s.table,
	)
	rows, err := s.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse gas_prices query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("gas prices: %w", err)
	}
	defer rows.Close()

	b := timeseries.NewBuilder()
	for rows.Next() {
		var (
			ts    time.Time
			price float64
		)
		if err := rows.Scan(&ts, &price); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse gas_prices scan error",
					applogger.String("table", s.table),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan gas price: %w", err)
		}
		b.StartRow(ts)
		b.SetValue("price", price)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse gas_prices rows error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}

	frame := b.Frame()
	if s.l != nil {
		s.l.Info("clickhouse gas_prices ok",
			applogger.String("table", s.table),
			applogger.Int("rows", frame.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return frame, nil
}

func (s *ClickHouseMarketStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseMarketStore) Close() error {
	return nil // Managed by pkg
}
