package projectconfig

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DefaultAttributeQuery selects name/value pairs for one project. Both drivers
// accept the $1 placeholder.
const DefaultAttributeQuery = `SELECT a.name, pa.value
FROM project_attribute pa
JOIN attribute a ON a.id = pa.attribute_id
WHERE pa.project_id = $1`

// OpenDB is replaced in tests.
var OpenDB = sql.Open

// OpenSQL opens a database handle and waits, with exponential backoff bounded
// by maxWait (30s when non-positive), until it answers a ping.
func OpenSQL(ctx context.Context, driver, dsn string, maxWait time.Duration) (*sql.DB, error) {
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnsupportedSQLDriver, driver)
	}

	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond
	expBackoff.MaxElapsedTime = maxWait

	operation := func() error {
		return db.PingContext(ctx)
	}
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("project config database unreachable: %w", err)
	}
	return db, nil
}

// SQLOption configures a SQLProvider.
type SQLOption func(*SQLProvider)

// WithQuery overrides DefaultAttributeQuery. The query must take the project
// id as its only argument and return (name, value) rows.
func WithQuery(query string) SQLOption {
	return func(p *SQLProvider) { p.query = query }
}

// WithTimeout bounds every lookup.
func WithTimeout(timeout time.Duration) SQLOption {
	return func(p *SQLProvider) { p.timeout = timeout }
}

// SQLProvider reads project attributes from a relational store.
type SQLProvider struct {
	db      *sql.DB
	query   string
	timeout time.Duration
}

// NewSQLProvider wraps an open database handle.
func NewSQLProvider(db *sql.DB, opts ...SQLOption) *SQLProvider {
	p := &SQLProvider{db: db, query: DefaultAttributeQuery}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SQLProvider) Provide(ctx context.Context, projectID int64) (map[string]string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	rows, err := p.db.QueryContext(ctx, p.query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query attributes of project %d: %w", projectID, err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan attribute of project %d: %w", projectID, err)
		}
		attrs[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attributes of project %d: %w", projectID, err)
	}
	return attrs, nil
}
