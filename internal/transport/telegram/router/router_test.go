package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"purrbot/internal/config"
	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []string
	answered []string
	sentCh   chan string
	answerCh chan string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{sentCh: make(chan string, 16), answerCh: make(chan string, 16)}
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	select {
	case f.sentCh <- text:
	default:
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) SendPhoto(ctx context.Context, to kit.ChatTarget, fileID, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	f.answered = append(f.answered, text)
	f.mu.Unlock()
	select {
	case f.answerCh <- text:
	default:
	}
	return nil
}

type fakeUsers struct {
	mu    sync.Mutex
	seen  []int64
	names map[int64]string
}

func (f *fakeUsers) UpsertUser(ctx context.Context, id int64, firstName, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	if f.names == nil {
		f.names = map[int64]string{}
	}
	f.names[id] = firstName
	return nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func testRouter(ad kit.Adapter, users UserSync) *Router {
	cfgm := config.NewConfigManager("")
	cfgm.Commit(&config.Config{})
	return New(logx.Nop(), ad, cfgm, users)
}

func startRouter(t *testing.T, r *Router) chan kit.Update {
	t.Helper()
	updates := make(chan kit.Update, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.DispatchLoop(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("dispatch loop did not stop")
		}
	})
	return updates
}

func textUpdate(chatID, fromID int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ID: 1, ChatID: chatID, FromID: fromID, FromName: "Olena", FromUsername: "olena", Text: text,
	}}
}

func callbackUpdate(fromID int64, data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cbid", FromID: fromID, ChatID: fromID, MessageID: 2, Data: data,
	}}
}

func waitReq(t *testing.T, ch chan *Request) *Request {
	t.Helper()
	select {
	case req := <-ch:
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a handler call")
		return nil
	}
}

func TestRouteCommand(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := testRouter(ad, nil)
	got := make(chan *Request, 1)
	r.SetRegistry([]Command{{
		Name:        "start",
		Description: "greet and show the menu",
		Handle: func(ctx context.Context, req *Request) error {
			got <- req
			return nil
		},
	}}, nil, nil, nil)
	updates := startRouter(t, r)

	updates <- textUpdate(10, 10, "/start")
	req := waitReq(t, got)
	if req.Command != "start" {
		t.Fatalf("Command = %q, want start", req.Command)
	}
	if req.Chat.ChatID != 10 || req.FromID != 10 {
		t.Fatalf("chat/from = %d/%d, want 10/10", req.Chat.ChatID, req.FromID)
	}

	// Bot-suffixed form routes the same.
	updates <- textUpdate(10, 10, "/START@purr_bot extra")
	req = waitReq(t, got)
	if req.Command != "start" || len(req.Args) != 1 || req.Args[0] != "extra" {
		t.Fatalf("req = %q %v, want start [extra]", req.Command, req.Args)
	}
}

func TestUnknownCommandReplies(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := testRouter(ad, nil)
	r.SetRegistry(nil, nil, nil, nil)
	updates := startRouter(t, r)

	updates <- textUpdate(10, 10, "/nope")
	select {
	case text := <-ad.sentCh:
		if !strings.Contains(text, "Unknown command") {
			t.Fatalf("reply = %q, want unknown-command hint", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply to unknown command")
	}
}

func TestRouteCallback(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := testRouter(ad, nil)
	got := make(chan *Request, 1)
	payloads := make(chan string, 1)
	r.SetRegistry(nil, []CallbackRoute{{
		Namespace: "settings",
		Action:    "tz",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			got <- req
			payloads <- payload
			return nil
		},
	}}, nil, nil)
	updates := startRouter(t, r)

	updates <- callbackUpdate(7, "settings:tz:Europe/Warsaw")
	req := waitReq(t, got)
	if req.Command != "cb:settings:tz" {
		t.Fatalf("Command = %q, want cb:settings:tz", req.Command)
	}
	if p := <-payloads; p != "Europe/Warsaw" {
		t.Fatalf("payload = %q, want Europe/Warsaw", p)
	}

	// The callback is answered after the handler to stop the spinner.
	select {
	case <-ad.answerCh:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never answered")
	}
}

func TestStaleCallbackAnswered(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := testRouter(ad, nil)
	r.SetRegistry(nil, nil, nil, nil)
	updates := startRouter(t, r)

	updates <- callbackUpdate(7, "gone:action")
	select {
	case <-ad.answerCh:
	case <-time.After(5 * time.Second):
		t.Fatal("stale callback never answered")
	}
}

func TestFreeTextAndPhotoHooks(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := testRouter(ad, nil)
	texts := make(chan *Request, 1)
	photos := make(chan *Request, 1)
	r.SetRegistry(nil, nil,
		func(ctx context.Context, req *Request) error { texts <- req; return nil },
		func(ctx context.Context, req *Request) error { photos <- req; return nil },
	)
	updates := startRouter(t, r)

	updates <- textUpdate(10, 10, "hello there")
	req := waitReq(t, texts)
	if req.Command != "text" || req.Update.Message.Text != "hello there" {
		t.Fatalf("text req = %q %q", req.Command, req.Update.Message.Text)
	}

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: 10, FromID: 10, PhotoFileID: "file123", PhotoCaption: "our cat",
	}}
	req = waitReq(t, photos)
	if req.Command != "photo" || req.Update.Message.PhotoFileID != "file123" {
		t.Fatalf("photo req = %q %q", req.Command, req.Update.Message.PhotoFileID)
	}
}

func TestUserSyncOnMessagesOnly(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	users := &fakeUsers{}
	r := testRouter(ad, users)
	got := make(chan *Request, 2)
	r.SetRegistry(
		[]Command{{Name: "start", Handle: func(ctx context.Context, req *Request) error { got <- req; return nil }}},
		[]CallbackRoute{{Namespace: "menu", Action: "today", Handle: func(ctx context.Context, req *Request, _ string) error { got <- req; return nil }}},
		nil, nil)
	updates := startRouter(t, r)

	updates <- textUpdate(10, 10, "/start")
	waitReq(t, got)
	if users.count() != 1 {
		t.Fatalf("upserts after message = %d, want 1", users.count())
	}
	if users.names[10] != "Olena" {
		t.Fatalf("stored name = %q, want Olena", users.names[10])
	}

	updates <- callbackUpdate(10, "menu:today")
	waitReq(t, got)
	if users.count() != 1 {
		t.Fatalf("upserts after callback = %d, want still 1", users.count())
	}
}

func TestMenuCommands(t *testing.T) {
	t.Parallel()
	r := testRouter(newFakeAdapter(), nil)
	noop := func(ctx context.Context, req *Request) error { return nil }
	r.SetRegistry([]Command{
		{Name: "start", Description: "greet and show the menu", Handle: noop},
		{Name: "help", Description: "how the assistant works", Handle: noop},
		{Name: "hidden", Handle: noop}, // no description: kept routable, left off the menu
	}, nil, nil, nil)

	menu := r.menuCommands()
	if len(menu) != 2 {
		t.Fatalf("menu size = %d, want 2", len(menu))
	}
	if menu[0].Command != "help" || menu[1].Command != "start" {
		t.Fatalf("menu order = %v, want help then start", menu)
	}
}

func TestValidMenuCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"start", true},
		{"my_events2", true},
		{"", false},
		{"Start", false},
		{"with space", false},
		{strings.Repeat("a", 33), false},
	}
	for _, tt := range tests {
		if got := validMenuCommand(tt.in); got != tt.want {
			t.Fatalf("validMenuCommand(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
