package storage

import (
	"context"
	"testing"
	"time"

	"purrbot/internal/agenda"
	logx "purrbot/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open(disabled) = (%v, %v), want (nil, nil)", st, err)
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("Open with unknown driver succeeded, want error")
	}
}

func TestUpsertUserPreservesSettings(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, 42, "Mia", "mia"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	u, ok, err := st.GetUser(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("GetUser = (%v, %v, %v)", u, ok, err)
	}
	if u.Timezone != agenda.DefaultTimezone || u.MorningTime != agenda.DefaultMorningTime {
		t.Fatalf("defaults = %q/%q, want %q/%q", u.Timezone, u.MorningTime, agenda.DefaultTimezone, agenda.DefaultMorningTime)
	}

	if err := st.SetUserTimezone(ctx, 42, "Europe/Berlin"); err != nil {
		t.Fatalf("SetUserTimezone: %v", err)
	}
	if err := st.SetUserMorningTime(ctx, 42, "09:00"); err != nil {
		t.Fatalf("SetUserMorningTime: %v", err)
	}

	// Repeat contact must refresh the name but keep the settings.
	if err := st.UpsertUser(ctx, 42, "Mia Updated", "mia2"); err != nil {
		t.Fatalf("UpsertUser again: %v", err)
	}
	u, _, err = st.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.FirstName != "Mia Updated" || u.Username != "mia2" {
		t.Fatalf("identity = %q/%q, want refreshed values", u.FirstName, u.Username)
	}
	if u.Timezone != "Europe/Berlin" || u.MorningTime != "09:00" {
		t.Fatalf("settings after upsert = %q/%q, want preserved %q/%q", u.Timezone, u.MorningTime, "Europe/Berlin", "09:00")
	}
}

func TestListUsersOrder(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		if err := st.UpsertUser(ctx, id, "u", ""); err != nil {
			t.Fatalf("UpsertUser(%d): %v", id, err)
		}
	}
	users, err := st.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 || users[0].ID != 10 || users[1].ID != 20 || users[2].ID != 30 {
		t.Fatalf("ListUsers order = %+v, want ascending ids", users)
	}
}

func TestEventQueries(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, 1, "u", ""); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	day := agenda.Date{Year: 2024, Month: time.December, Day: 25}

	add := func(title, clock string, d agenda.Date) int64 {
		t.Helper()
		id, err := st.AddEvent(ctx, agenda.Event{UserID: 1, Title: title, Date: d, Time: clock})
		if err != nil {
			t.Fatalf("AddEvent(%s): %v", title, err)
		}
		return id
	}
	add("Dentist", "15:30:00", day)
	add("Conference", "", day)
	add("Standup", "09:30:00", day)
	add("Elsewhere", "12:00:00", day.AddDays(1))

	got, err := st.ListEventsOn(ctx, 1, day)
	if err != nil {
		t.Fatalf("ListEventsOn: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListEventsOn returned %d events, want 3", len(got))
	}
	// NULL time sorts first, then clock order.
	if got[0].Title != "Conference" || got[1].Title != "Standup" || got[2].Title != "Dentist" {
		t.Fatalf("order = [%s %s %s], want all-day first then by time", got[0].Title, got[1].Title, got[2].Title)
	}
	if !got[0].AllDay() || got[2].Time != "15:30:00" {
		t.Fatalf("decoded times wrong: %+v", got)
	}

	// Other users see nothing.
	if other, _ := st.ListEventsOn(ctx, 2, day); len(other) != 0 {
		t.Fatalf("foreign user sees %d events, want 0", len(other))
	}

	week, err := st.ListEventsBetween(ctx, 1, day, day.AddDays(6))
	if err != nil {
		t.Fatalf("ListEventsBetween: %v", err)
	}
	if len(week) != 4 {
		t.Fatalf("ListEventsBetween returned %d events, want 4", len(week))
	}

	recent, err := st.ListRecentEvents(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(recent) != 2 || recent[0].Title != "Elsewhere" {
		t.Fatalf("ListRecentEvents = %+v, want newest date first, limit 2", recent)
	}
}

func TestEventMalformedRowSkipped(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, 1, "u", ""); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	day := agenda.Date{Year: 2024, Month: time.December, Day: 25}
	if _, err := st.AddEvent(ctx, agenda.Event{UserID: 1, Title: "Good", Date: day, Time: "10:00:00"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	// Corrupt a second row behind the codec's back.
	if _, err := st.db.ExecContext(ctx,
		`INSERT INTO events(user_id, title, event_date, event_time) VALUES(1, 'Bad', ?, 'nonsense')`,
		day.Storage()); err != nil {
		t.Fatalf("inject bad row: %v", err)
	}

	got, err := st.ListEventsOn(ctx, 1, day)
	if err != nil {
		t.Fatalf("ListEventsOn: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Good" {
		t.Fatalf("ListEventsOn = %+v, want only the well-formed row", got)
	}
}

func TestBirthdayQueries(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if err := st.UpsertUser(ctx, id, "u", ""); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}
	if _, err := st.AddBirthday(ctx, agenda.Birthday{UserID: 1, Name: "Mia", Date: agenda.Date{Year: 1995, Month: time.March, Day: 15}}); err != nil {
		t.Fatalf("AddBirthday: %v", err)
	}
	if _, err := st.AddBirthday(ctx, agenda.Birthday{UserID: 2, Name: "Leo", Date: agenda.Date{Year: 2000, Month: time.April, Day: 2}}); err != nil {
		t.Fatalf("AddBirthday: %v", err)
	}

	// Each owner sees only their own rows.
	mine, err := st.ListBirthdays(ctx, 1)
	if err != nil {
		t.Fatalf("ListBirthdays: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Mia" {
		t.Fatalf("ListBirthdays(1) = %+v, want only Mia", mine)
	}
	theirs, err := st.ListBirthdays(ctx, 2)
	if err != nil {
		t.Fatalf("ListBirthdays: %v", err)
	}
	if len(theirs) != 1 || theirs[0].Name != "Leo" {
		t.Fatalf("ListBirthdays(2) = %+v, want only Leo", theirs)
	}
}

func TestPhotoQueries(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, 1, "u", ""); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	day := agenda.Date{Year: 2024, Month: time.June, Day: 1}
	for i := 0; i < 7; i++ {
		if _, err := st.AddPhoto(ctx, agenda.Photo{UserID: 1, FileID: "f", Caption: "c", Date: day}); err != nil {
			t.Fatalf("AddPhoto: %v", err)
		}
	}
	got, err := st.ListRecentPhotos(ctx, 1, 5)
	if err != nil {
		t.Fatalf("ListRecentPhotos: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("ListRecentPhotos returned %d, want 5", len(got))
	}
	// Newest first by id when created_at ties.
	if got[0].ID < got[4].ID {
		t.Fatalf("ListRecentPhotos order = %v..%v, want newest first", got[0].ID, got[4].ID)
	}
	if !got[0].Date.Equal(day) {
		t.Fatalf("photo date = %v, want %v", got[0].Date, day)
	}
}

func TestMarksRoundTrip(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if err := st.PutMark(ctx, "morning|1|2024-12-25", until); err != nil {
		t.Fatalf("PutMark: %v", err)
	}
	got, ok, err := st.GetMark(ctx, "morning|1|2024-12-25")
	if err != nil || !ok {
		t.Fatalf("GetMark = (%v, %v, %v), want hit", got, ok, err)
	}
	if !got.Equal(until) {
		t.Fatalf("GetMark until = %v, want %v", got, until)
	}
	if _, ok, _ := st.GetMark(ctx, "missing"); ok {
		t.Fatalf("GetMark(missing) reported a hit")
	}

	// Upsert replaces the deadline.
	later := until.Add(time.Hour)
	if err := st.PutMark(ctx, "morning|1|2024-12-25", later); err != nil {
		t.Fatalf("PutMark update: %v", err)
	}
	got, _, _ = st.GetMark(ctx, "morning|1|2024-12-25")
	if !got.Equal(later) {
		t.Fatalf("updated until = %v, want %v", got, later)
	}
}
