package cluster

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// SQLStore persists clusters in the reporting database. Statements use $n
// placeholders, which both lib/pq and go-sqlite3 accept.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DeleteLaunchClusters(ctx context.Context, launchID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM clusters_test_item WHERE cluster_id IN (SELECT id FROM clusters WHERE launch_id = $1)`,
			launchID); err != nil {
			return fmt.Errorf("delete cluster items of launch %d: %w", launchID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE launch_id = $1`, launchID); err != nil {
			return fmt.Errorf("delete clusters of launch %d: %w", launchID, err)
		}
		return nil
	})
}

func (s *SQLStore) SaveClusters(ctx context.Context, data Data) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range data.Clusters {
			var id int64
			err := tx.QueryRowContext(ctx,
				`INSERT INTO clusters (index_id, project_id, launch_id, message) VALUES ($1, $2, $3, $4) RETURNING id`,
				c.Index, data.ProjectID, data.LaunchID, c.Message,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("save cluster %d of launch %d: %w", c.Index, data.LaunchID, err)
			}
			for _, itemID := range c.ItemIDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO clusters_test_item (cluster_id, item_id) VALUES ($1, $2)`, id, itemID); err != nil {
					return fmt.Errorf("link item %d to cluster %d: %w", itemID, c.Index, err)
				}
			}
		}
		return nil
	})
}

func (s *SQLStore) SaveLastRun(ctx context.Context, launchID int64, at time.Time) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	res, err := s.db.ExecContext(ctx,
		`UPDATE item_attribute SET value = $1 WHERE launch_id = $2 AND key = $3 AND system = $4`,
		value, launchID, LastRunAttributeKey, false)
	if err != nil {
		return fmt.Errorf("update last run of launch %d: %w", launchID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO item_attribute (key, value, launch_id, system) VALUES ($1, $2, $3, $4)`,
		LastRunAttributeKey, value, launchID, false); err != nil {
		return fmt.Errorf("insert last run of launch %d: %w", launchID, err)
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
