package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/models"
)

// ClickHouse is the analytical RowStore backend. ReplacingMergeTree keyed by
// the natural row key collapses re-issued batches during merges, which gives
// the same duplicate tolerance the Postgres backend gets from its unique
// index.
type ClickHouse struct {
	DB *sql.DB
}

const clickhouseSchema = `CREATE TABLE IF NOT EXISTS ad_reports (
    file_id      String,
    upload_date  DateTime DEFAULT now(),
    data_date    Date,
    website      String,
    country      String,
    device       String,
    browser      String,
    ad_format    String,
    ad_unit      String,
    advertiser   String,
    domain       String,
    requests                Nullable(Int64),
    impressions             Nullable(Int64),
    clicks                  Nullable(Int64),
    ctr                     Nullable(Float64),
    ecpm                    Nullable(Float64),
    revenue                 Nullable(Float64),
    viewable_impressions    Nullable(Int64),
    viewability_rate        Nullable(Float64),
    measurable_impressions  Nullable(Int64),
    fill_rate               Nullable(Float64),
    arpu                    Nullable(Float64)
) ENGINE = ReplacingMergeTree(upload_date)
  ORDER BY (data_date, website, country, device, browser, ad_format, ad_unit, advertiser, domain)`

// InitClickHouse connects to ClickHouse and ensures the row table exists.
func InitClickHouse(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*ClickHouse, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), clickhouseSchema); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &ClickHouse{DB: db}, nil
}

// WriteBatch inserts one batch through a prepared statement inside a
// transaction, which the ClickHouse driver turns into a single block insert.
func (c *ClickHouse) WriteBatch(ctx context.Context, fileID string, recs []*models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clickhouse begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ad_reports (
        file_id, data_date, website, country, device, browser,
        ad_format, ad_unit, advertiser, domain,
        requests, impressions, clicks, ctr, ecpm, revenue,
        viewable_impressions, viewability_rate, measurable_impressions,
        fill_rate, arpu
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clickhouse prepare: %w", err)
	}

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			fileID, rec.Date, rec.Website, rec.Country, rec.Device, rec.Browser,
			rec.AdFormat, rec.AdUnit, rec.Advertiser, rec.Domain,
			rec.Requests, rec.Impressions, rec.Clicks, rec.CTR, rec.ECPM, rec.Revenue,
			rec.ViewableImpressions, rec.ViewabilityRate, rec.MeasurableImpressions,
			rec.FillRate, rec.ARPU,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clickhouse insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clickhouse commit %d rows: %w", len(recs), err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (c *ClickHouse) Close() {
	if c != nil && c.DB != nil {
		if err := c.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
