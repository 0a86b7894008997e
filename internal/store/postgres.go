package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/models"
)

// Postgres is the relational RowStore backend.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the row table if it doesn't exist. The unique index on
// the natural row key is what makes WriteBatch idempotent: a re-issued batch
// hits ON CONFLICT DO NOTHING instead of duplicating rows.
const schemaSQL = `CREATE TABLE IF NOT EXISTS ad_reports (
    id BIGSERIAL PRIMARY KEY,
    file_id TEXT NOT NULL,
    upload_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    data_date DATE NOT NULL,
    website TEXT NOT NULL,
    country TEXT NOT NULL DEFAULT 'Unknown',
    device TEXT NOT NULL DEFAULT 'Unknown',
    browser TEXT NOT NULL DEFAULT 'Unknown',
    ad_format TEXT NOT NULL DEFAULT 'Unknown',
    ad_unit TEXT NOT NULL DEFAULT 'Unknown',
    advertiser TEXT NOT NULL DEFAULT 'Unknown',
    domain TEXT NOT NULL DEFAULT 'Unknown',
    requests BIGINT,
    impressions BIGINT,
    clicks BIGINT,
    ctr DOUBLE PRECISION,
    ecpm DOUBLE PRECISION,
    revenue DOUBLE PRECISION,
    viewable_impressions BIGINT,
    viewability_rate DOUBLE PRECISION,
    measurable_impressions BIGINT,
    fill_rate DOUBLE PRECISION,
    arpu DOUBLE PRECISION
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ad_reports_natural_key
    ON ad_reports (data_date, website, country, device, browser, ad_format, ad_unit, advertiser, domain);
CREATE INDEX IF NOT EXISTS idx_ad_reports_file_id ON ad_reports (file_id);
`

// insertColumns is the column list WriteBatch fills, in placeholder order.
var insertColumns = []string{
	"file_id", "data_date", "website", "country", "device", "browser",
	"ad_format", "ad_unit", "advertiser", "domain",
	"requests", "impressions", "clicks", "ctr", "ecpm", "revenue",
	"viewable_impressions", "viewability_rate", "measurable_impressions",
	"fill_rate", "arpu",
}

// InitPostgres connects to Postgres with connection pooling configuration
// and ensures the row schema exists.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		return nil, fmt.Errorf("postgres ensure schema: %w", err)
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns))
	return p, nil
}

// WriteBatch bulk-inserts one batch as a single multi-row statement with
// ON CONFLICT DO NOTHING on the natural key.
func (p *Postgres) WriteBatch(ctx context.Context, fileID string, recs []*models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	nCols := len(insertColumns)
	var sb strings.Builder
	sb.WriteString("INSERT INTO ad_reports (")
	sb.WriteString(strings.Join(insertColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(recs)*nCols)
	for i, rec := range recs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < nCols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*nCols+c+1)
		}
		sb.WriteByte(')')

		args = append(args,
			fileID, rec.Date, rec.Website, rec.Country, rec.Device, rec.Browser,
			rec.AdFormat, rec.AdUnit, rec.Advertiser, rec.Domain,
			rec.Requests, rec.Impressions, rec.Clicks, rec.CTR, rec.ECPM, rec.Revenue,
			rec.ViewableImpressions, rec.ViewabilityRate, rec.MeasurableImpressions,
			rec.FillRate, rec.ARPU,
		)
	}
	sb.WriteString(" ON CONFLICT (data_date, website, country, device, browser, ad_format, ad_unit, advertiser, domain) DO NOTHING")

	if _, err := p.DB.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk insert %d rows: %w", len(recs), err)
	}
	return nil
}

// RowCount returns the number of stored rows for a file identifier.
func (p *Postgres) RowCount(ctx context.Context, fileID string) (int64, error) {
	var n int64
	err := p.DB.QueryRowContext(ctx, `SELECT count(*) FROM ad_reports WHERE file_id = $1`, fileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// DeleteFile removes every stored row for a file identifier. Partial
// ingestions stay visible until an operator clears them explicitly; this is
// that operation.
func (p *Postgres) DeleteFile(ctx context.Context, fileID string) (int64, error) {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM ad_reports WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close terminates the Postgres connection pool.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}
