package storage

import (
	"context"
	"database/sql"
	"errors"

	"purrbot/internal/agenda"
)

// UpsertUser registers a chat identity, refreshing only the display name
// and handle on repeat contact. Timezone and morning_time keep whatever the
// user configured; the column defaults apply on first insert.
func (s *Store) UpsertUser(ctx context.Context, id int64, firstName, username string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, first_name, username) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   first_name = excluded.first_name,
		   username   = excluded.username`,
		id, nullStr(firstName), nullStr(username),
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (agenda.User, bool, error) {
	if err := s.ready(); err != nil {
		return agenda.User{}, false, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, username, timezone, morning_time, created_at
		 FROM users WHERE user_id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return agenda.User{}, false, nil
	}
	if err != nil {
		return agenda.User{}, false, err
	}
	return u, true, nil
}

// ListUsers returns every registered user in ascending id order.
func (s *Store) ListUsers(ctx context.Context) ([]agenda.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, first_name, username, timezone, morning_time, created_at
		 FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agenda.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SetUserTimezone(ctx context.Context, id int64, tz string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET timezone = ? WHERE user_id = ?`, tz, id)
	return err
}

func (s *Store) SetUserMorningTime(ctx context.Context, id int64, hhmm string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET morning_time = ? WHERE user_id = ?`, hhmm, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (agenda.User, error) {
	var (
		u          agenda.User
		first      sql.NullString
		username   sql.NullString
		tz         sql.NullString
		morning    sql.NullString
		createdRaw sql.NullString
	)
	if err := r.Scan(&u.ID, &first, &username, &tz, &morning, &createdRaw); err != nil {
		return agenda.User{}, err
	}
	u.FirstName = first.String
	u.Username = username.String
	u.Timezone = tz.String
	if u.Timezone == "" {
		u.Timezone = agenda.DefaultTimezone
	}
	u.MorningTime = morning.String
	if u.MorningTime == "" {
		u.MorningTime = agenda.DefaultMorningTime
	}
	u.CreatedAt = parseTimestamp(createdRaw.String)
	return u, nil
}
