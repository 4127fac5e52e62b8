package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PutMark records that a notification key was delivered, suppressing
// repeats until the given instant. Used by the notifier so "one digest
// per day" survives a restart.
func (s *Store) PutMark(ctx context.Context, key string, until time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notify_marks(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil {
		s.maybePruneMarks()
	}
	return err
}

func (s *Store) GetMark(ctx context.Context, key string) (time.Time, bool, error) {
	if err := s.ready(); err != nil {
		return time.Time{}, false, err
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM notify_marks WHERE key = ?`, key).Scan(&ms)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// maybePruneMarks expires old rows on a fixed write cadence, keeping the
// table bounded without a dedicated sweeper goroutine.
func (s *Store) maybePruneMarks() {
	if s.opCount.Add(1)%s.pruneEvery != 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _ = s.db.ExecContext(ctx, `DELETE FROM notify_marks WHERE until < ?`, time.Now().UnixMilli())
}
