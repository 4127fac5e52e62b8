package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 100, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected chunks: %#v", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("aaaa\nbbbb\ncccc", 10, "")
	want := []string{"aaaa\nbbbb", "cccc"}
	if len(got) != len(want) {
		t.Fatalf("chunks = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitTelegramTextHardSplit(t *testing.T) {
	t.Parallel()
	got := splitTelegramText(strings.Repeat("a", 15), 10, "")
	if len(got) != 2 || got[0] != strings.Repeat("a", 10) || got[1] != strings.Repeat("a", 5) {
		t.Fatalf("unexpected chunks: %#v", got)
	}
}

func TestSplitTelegramTextAvoidsTagSplit(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("aaaaaaaa<b>bold</b>", 10, "HTML")
	for _, chunk := range got {
		if strings.Count(chunk, "<") > 0 && !strings.Contains(chunk, ">") {
			t.Fatalf("chunk %q ends inside a tag", chunk)
		}
	}
	if got[0] != "aaaaaaaa" {
		t.Fatalf("chunk[0] = %q, want %q", got[0], "aaaaaaaa")
	}
}

func TestMessageFromText(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:       12,
		Chat:     &tele.Chat{ID: 77, Type: tele.ChatPrivate},
		Sender:   &tele.User{ID: 77, FirstName: "Mila", Username: "mila_cat"},
		Text:     "/start",
		ThreadID: 0,
	}
	got := messageFrom(m)
	if got.ChatID != 77 || got.FromID != 77 {
		t.Fatalf("ids = chat %d from %d, want 77/77", got.ChatID, got.FromID)
	}
	if got.FromName != "Mila" || got.FromUsername != "mila_cat" {
		t.Fatalf("sender = %q/%q", got.FromName, got.FromUsername)
	}
	if got.IsGroup {
		t.Fatal("private chat mapped as group")
	}
	if got.HasPhoto() {
		t.Fatal("text message reported a photo")
	}
}

func TestMessageFromPhoto(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:      13,
		Chat:    &tele.Chat{ID: 77, Type: tele.ChatPrivate},
		Sender:  &tele.User{ID: 77, FirstName: "Mila"},
		Photo:   &tele.Photo{File: tele.File{FileID: "AgACAgIAAxk"}},
		Caption: "Monday schedule",
	}
	got := messageFrom(m)
	if !got.HasPhoto() {
		t.Fatal("photo message not detected")
	}
	if got.PhotoFileID != "AgACAgIAAxk" {
		t.Fatalf("PhotoFileID = %q", got.PhotoFileID)
	}
	if got.PhotoCaption != "Monday schedule" {
		t.Fatalf("PhotoCaption = %q", got.PhotoCaption)
	}
}
