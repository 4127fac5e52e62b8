package tgui

import (
	"testing"
)

func TestDataFormats(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ns      string
		action  string
		payload string
		want    string
	}{
		{"no payload", "menu", "today", "", "menu:today"},
		{"payload", "settings", "tz", "Europe/Kiev", "settings:tz:Europe/Kiev"},
		{"trims parts", " menu ", " main ", "", "menu:main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Data(tt.ns, tt.action, tt.payload); got != tt.want {
				t.Fatalf("Data = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDataFitsTelegramLimit(t *testing.T) {
	t.Parallel()
	// Longest canonical zone id that could ride in a settings button.
	got := Data("settings", "tz", "America/Argentina/ComodRivadavia")
	if len(got) > MaxCallbackDataLen {
		t.Fatalf("len(Data) = %d, want <= %d", len(got), MaxCallbackDataLen)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short stays", "niño", 10, "niño"},
		{"exact stays", "niño", 4, "niño"},
		{"cut gets ellipsis", "crème brûlée", 5, "crème…"},
		{"zero empties", "niño", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncRunes(tt.in, tt.n); got != tt.want {
				t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestBuilderEscapesLines(t *testing.T) {
	t.Parallel()
	b := New()
	b.Line("a <b> & c")
	if got := b.Build().Text; got != "a &lt;b&gt; &amp; c" {
		t.Fatalf("Text = %q", got)
	}
}

func TestBuilderTitle(t *testing.T) {
	t.Parallel()
	b := New()
	b.Title("📅", "15.05 (Wednesday)")
	if got := b.Build().Text; got != "📅 <b>15.05 (Wednesday)</b>" {
		t.Fatalf("Text = %q", got)
	}
}

func TestBuildTrimsEdgeBlanks(t *testing.T) {
	t.Parallel()
	b := New()
	b.Blank()
	b.Line("x")
	b.Blank()
	if got := b.Build().Text; got != "x" {
		t.Fatalf("Text = %q, want %q", got, "x")
	}
}

func TestBuildDefaultsAndKeyboard(t *testing.T) {
	t.Parallel()
	msg := New().Line("hi").Inline(NewInline().Row(Btn("ok", Data("menu", "main", "")))).Build()
	if msg.Opt.ParseMode != "HTML" || !msg.Opt.DisablePreview {
		t.Fatalf("options = %+v", msg.Opt)
	}
	if msg.Opt.ReplyMarkupAdapter == nil {
		t.Fatalf("keyboard not attached")
	}
}
