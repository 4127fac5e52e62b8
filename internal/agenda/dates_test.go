package agenda

import (
	"testing"
	"time"
)

func TestParseUserDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"15.03.1995", Date{1995, time.March, 15}, false},
		{"5.3.1995", Date{1995, time.March, 5}, false},
		{" 01.01.2030 ", Date{2030, time.January, 1}, false},
		{"29.02.2024", Date{2024, time.February, 29}, false},
		{"29.02.2023", Date{}, true},
		{"31.02.2020", Date{}, true},
		{"2024-12-25", Date{}, true},
		{"tomorrow", Date{}, true},
		{"", Date{}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseUserDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUserDate(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Fatalf("ParseUserDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStorageDate(t *testing.T) {
	t.Parallel()

	got, err := ParseStorageDate("2024-12-25")
	if err != nil {
		t.Fatalf("ParseStorageDate: %v", err)
	}
	if want := (Date{2024, time.December, 25}); !got.Equal(want) {
		t.Fatalf("ParseStorageDate = %v, want %v", got, want)
	}
	if _, err := ParseStorageDate("25.12.2024"); err == nil {
		t.Fatalf("ParseStorageDate accepted user-facing form")
	}
	if _, err := ParseStorageDate("not-a-date"); err == nil {
		t.Fatalf("ParseStorageDate accepted garbage")
	}
}

func TestDateRoundTrips(t *testing.T) {
	t.Parallel()

	d := Date{1995, time.March, 5}
	if got := d.Storage(); got != "1995-03-05" {
		t.Fatalf("Storage() = %q, want %q", got, "1995-03-05")
	}
	if got := d.User(); got != "05.03.1995" {
		t.Fatalf("User() = %q, want %q", got, "05.03.1995")
	}
	back, err := ParseStorageDate(d.Storage())
	if err != nil || !back.Equal(d) {
		t.Fatalf("storage round-trip = %v (%v), want %v", back, err, d)
	}
	back, err = ParseUserDate(d.User())
	if err != nil || !back.Equal(d) {
		t.Fatalf("user round-trip = %v (%v), want %v", back, err, d)
	}
}

func TestParseUserClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08:00", "08:00", false},
		{"8:00", "08:00", false},
		{"9:5", "09:05", false},
		{"23:59", "23:59", false},
		{"00:00", "00:00", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"12", "", true},
		{"12:00:00", "", true},
		{"noon", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseUserClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUserClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Fatalf("ParseUserClock(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStorageClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"15:30:00", "15:30:00", false},
		{"15:30", "15:30:00", false},
		{"9:05:07", "09:05:07", false},
		{"15:30:60", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStorageClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStorageClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Fatalf("ParseStorageClock(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClockShort(t *testing.T) {
	t.Parallel()

	if got := ClockShort("15:30:00"); got != "15:30" {
		t.Fatalf("ClockShort = %q, want %q", got, "15:30")
	}
	if got := ClockShort("15:30"); got != "15:30" {
		t.Fatalf("ClockShort passthrough = %q, want %q", got, "15:30")
	}
}

func TestValidMorningTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"08:00", true},
		{"disabled", true},
		{"8:00", false},
		{"08:00:00", false},
		{"25:00", false},
		{"DISABLED", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := ValidMorningTime(tt.in); got != tt.want {
				t.Fatalf("ValidMorningTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
