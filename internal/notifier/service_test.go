package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

type sentText struct {
	to   kit.ChatTarget
	text string
}

type fakeAdapter struct {
	mu    sync.Mutex
	fails int // fail this many sends before succeeding
	calls int
	sent  []sentText
	ch    chan sentText
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{ch: make(chan sentText, 16)}
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return kit.MessageRef{}, errors.New("send failed")
	}
	s := sentText{to: to, text: text}
	f.sent = append(f.sent, s)
	select {
	case f.ch <- s:
	default:
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) SendPhoto(ctx context.Context, to kit.ChatTarget, fileID, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitSent(t *testing.T, f *fakeAdapter) sentText {
	t.Helper()
	select {
	case s := <-f.ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a send")
		return sentText{}
	}
}

func stopCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func TestNotifyDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, newFakeAdapter(), logx.Nop(), nil, nil)
	err := s.Notify(context.Background(), kit.Notification{Channel: "telegram", Text: "hi"})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Notify error = %v, want ErrDisabled", err)
	}
}

func TestNotifyBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, newFakeAdapter(), logx.Nop(), nil, nil)
	err := s.Notify(context.Background(), kit.Notification{Channel: "telegram", Text: "hi"})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Notify error = %v, want ErrStopped", err)
	}
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	s := New(Config{Enabled: true, Workers: 1}, ad, logx.Nop(), nil, nil)
	s.Start(context.Background())

	n := kit.Notification{
		Channel: "telegram",
		Target:  kit.ChatTarget{ChatID: 42},
		Text:    "Good morning! 😸",
	}
	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	got := waitSent(t, ad)
	if got.to.ChatID != 42 {
		t.Fatalf("ChatID = %d, want 42", got.to.ChatID)
	}
	if got.text != "Good morning! 😸" {
		t.Fatalf("text = %q", got.text)
	}

	ctx, cancel := stopCtx()
	defer cancel()
	s.Stop(ctx)
}

func TestNotifyRetriesTransientFailure(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	ad.fails = 1
	cfg := Config{
		Enabled:       true,
		Workers:       1,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
	s := New(cfg, ad, logx.Nop(), nil, nil)
	s.Start(context.Background())

	if err := s.Notify(context.Background(), kit.Notification{Channel: "telegram", Target: kit.ChatTarget{ChatID: 1}, Text: "retry me"}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	waitSent(t, ad)
	if got := ad.callCount(); got != 2 {
		t.Fatalf("adapter calls = %d, want 2", got)
	}

	ctx, cancel := stopCtx()
	defer cancel()
	s.Stop(ctx)
}

func TestNotifySuppressesExplicitKey(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	s := New(Config{Enabled: true, Workers: 1}, ad, logx.Nop(), nil, nil)
	s.Start(context.Background())

	n := kit.Notification{
		Channel: "telegram",
		Target:  kit.ChatTarget{ChatID: 7},
		Text:    "Digest for today",
		Key:     "morning|7|2024-05-01",
		Once:    time.Now().Add(time.Hour),
	}
	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("first Notify error: %v", err)
	}
	// Duplicate with the same key is swallowed without error.
	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("second Notify error: %v", err)
	}

	waitSent(t, ad)
	ctx, cancel := stopCtx()
	defer cancel()
	s.Stop(ctx)

	if got := ad.sentCount(); got != 1 {
		t.Fatalf("sends = %d, want 1 (duplicate suppressed)", got)
	}
}

func TestDedupAllowOnceWindow(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, newFakeAdapter(), logx.Nop(), nil, nil)

	once := time.Now().Add(time.Hour)
	if !s.dedupAllow(context.Background(), "k1", once, 0, 100, false, nil, nil) {
		t.Fatal("first dedupAllow = false, want true")
	}
	if s.dedupAllow(context.Background(), "k1", once, 0, 100, false, nil, nil) {
		t.Fatal("second dedupAllow = true, want suppressed")
	}

	// An already-expired instant does not suppress anything.
	past := time.Now().Add(-time.Minute)
	if !s.dedupAllow(context.Background(), "k2", past, 0, 100, false, nil, nil) {
		t.Fatal("dedupAllow(k2) = false, want true")
	}
	if !s.dedupAllow(context.Background(), "k2", past, 0, 100, false, nil, nil) {
		t.Fatal("expired mark suppressed a send")
	}
}

type fakeMarkStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func (f *fakeMarkStore) PutMark(ctx context.Context, key string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marks == nil {
		f.marks = map[string]time.Time{}
	}
	f.marks[key] = until
	return nil
}

func (f *fakeMarkStore) GetMark(ctx context.Context, key string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.marks[key]
	return until, ok, nil
}

func TestDedupAllowConsultsPersistedMarks(t *testing.T) {
	t.Parallel()
	st := &fakeMarkStore{marks: map[string]time.Time{
		"persisted": time.Now().Add(time.Hour),
	}}
	s := New(Config{Enabled: true, PersistDedup: true}, newFakeAdapter(), logx.Nop(), nil, st)

	// Memory is cold, but the persisted mark still suppresses.
	if s.dedupAllow(context.Background(), "persisted", time.Time{}, time.Minute, 100, true, st, nil) {
		t.Fatal("persisted mark did not suppress")
	}
}
