package storage

import (
	"context"
	"database/sql"

	"purrbot/internal/agenda"
	logx "purrbot/pkg/logx"
)

func (s *Store) AddPhoto(ctx context.Context, p agenda.Photo) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO photos(user_id, file_id, caption, photo_date) VALUES(?,?,?,?)`,
		p.UserID, p.FileID, nullStr(p.Caption), p.Date.Storage(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRecentPhotos returns the user's latest saved photos, newest first.
func (s *Store) ListRecentPhotos(ctx context.Context, userID int64, limit int) ([]agenda.Photo, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, file_id, caption, photo_date, created_at
		 FROM photos WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agenda.Photo
	for rows.Next() {
		var (
			p          agenda.Photo
			caption    sql.NullString
			dateRaw    sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.FileID, &caption, &dateRaw, &createdRaw); err != nil {
			return nil, err
		}
		if dateRaw.Valid && dateRaw.String != "" {
			d, err := agenda.ParseStorageDate(dateRaw.String)
			if err != nil {
				s.log.Warn("skipping photo with malformed date",
					logx.Int64("photo_id", p.ID), logx.Int64("user_id", p.UserID), logx.Err(err))
				continue
			}
			p.Date = d
		}
		p.Caption = caption.String
		p.CreatedAt = parseTimestamp(createdRaw.String)
		out = append(out, p)
	}
	return out, rows.Err()
}
