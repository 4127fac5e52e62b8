package storage

import (
	"context"
	"database/sql"

	"purrbot/internal/agenda"
	logx "purrbot/pkg/logx"
)

// AddEvent stores a calendar entry and returns its id. An empty Time is
// stored as NULL (all-day).
func (s *Store) AddEvent(ctx context.Context, e agenda.Event) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events(user_id, title, description, event_date, event_time)
		 VALUES(?,?,?,?,?)`,
		e.UserID, e.Title, nullStr(e.Description), e.Date.Storage(), nullStr(e.Time),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEventsOn returns the user's events for one date, all-day entries
// first (NULL times sort ahead of clock strings).
func (s *Store) ListEventsOn(ctx context.Context, userID int64, day agenda.Date) ([]agenda.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, event_date, event_time, created_at
		 FROM events WHERE user_id = ? AND event_date = ?
		 ORDER BY event_time, id`,
		userID, day.Storage())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectEvents(rows)
}

// ListEventsBetween returns the user's events with from <= date <= to in
// chronological order. ISO date strings compare lexicographically, so the
// range runs in SQL.
func (s *Store) ListEventsBetween(ctx context.Context, userID int64, from, to agenda.Date) ([]agenda.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, event_date, event_time, created_at
		 FROM events WHERE user_id = ? AND event_date >= ? AND event_date <= ?
		 ORDER BY event_date, event_time, id`,
		userID, from.Storage(), to.Storage())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectEvents(rows)
}

// ListRecentEvents returns the user's newest entries, latest date first.
func (s *Store) ListRecentEvents(ctx context.Context, userID int64, limit int) ([]agenda.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, event_date, event_time, created_at
		 FROM events WHERE user_id = ?
		 ORDER BY event_date DESC, event_time DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectEvents(rows)
}

// collectEvents decodes rows, skipping records whose stored date or time
// fails to parse. A bad row is that row's problem only, never the batch's.
func (s *Store) collectEvents(rows *sql.Rows) ([]agenda.Event, error) {
	var out []agenda.Event
	for rows.Next() {
		var (
			e          agenda.Event
			desc       sql.NullString
			dateRaw    string
			timeRaw    sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &desc, &dateRaw, &timeRaw, &createdRaw); err != nil {
			return nil, err
		}
		d, err := agenda.ParseStorageDate(dateRaw)
		if err != nil {
			s.log.Warn("skipping event with malformed date",
				logx.Int64("event_id", e.ID), logx.Int64("user_id", e.UserID), logx.Err(err))
			continue
		}
		e.Date = d
		if timeRaw.Valid && timeRaw.String != "" {
			clock, err := agenda.ParseStorageClock(timeRaw.String)
			if err != nil {
				s.log.Warn("skipping event with malformed time",
					logx.Int64("event_id", e.ID), logx.Int64("user_id", e.UserID), logx.Err(err))
				continue
			}
			e.Time = clock
		}
		e.Description = desc.String
		e.CreatedAt = parseTimestamp(createdRaw.String)
		out = append(out, e)
	}
	return out, rows.Err()
}
