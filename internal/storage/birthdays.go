package storage

import (
	"context"
	"database/sql"

	"purrbot/internal/agenda"
	logx "purrbot/pkg/logx"
)

func (s *Store) AddBirthday(ctx context.Context, b agenda.Birthday) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO birthdays(user_id, name, birth_date) VALUES(?,?,?)`,
		b.UserID, b.Name, b.Date.Storage(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListBirthdays returns the user's birthdays in name order. Recurrence
// matching happens in the agenda package, so this always returns the full
// set; rows with malformed dates are skipped with a warning.
func (s *Store) ListBirthdays(ctx context.Context, userID int64) ([]agenda.Birthday, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, birth_date, created_at
		 FROM birthdays WHERE user_id = ? ORDER BY name, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agenda.Birthday
	for rows.Next() {
		var (
			b          agenda.Birthday
			dateRaw    string
			createdRaw sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &dateRaw, &createdRaw); err != nil {
			return nil, err
		}
		d, err := agenda.ParseStorageDate(dateRaw)
		if err != nil {
			s.log.Warn("skipping birthday with malformed date",
				logx.Int64("birthday_id", b.ID), logx.Int64("user_id", b.UserID), logx.Err(err))
			continue
		}
		b.Date = d
		b.CreatedAt = parseTimestamp(createdRaw.String)
		out = append(out, b)
	}
	return out, rows.Err()
}
