package assistant

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"purrbot/internal/agenda"
	"purrbot/internal/storage"
	"purrbot/internal/transport/telegram/router"
	logx "purrbot/pkg/logx"
	"purrbot/pkg/tgui"
)

// Config tunes the interactive views.
type Config struct {
	RecentEvents  int      // "my events" list length, default 10
	RecentPhotos  int      // photo album resend length, default 5
	LookaheadDays int      // birthday list window, default 30
	Keywords      []string // free-text phrases that answer with today's plan
}

func (c Config) withDefaults() Config {
	if c.RecentEvents <= 0 {
		c.RecentEvents = 10
	}
	if c.RecentPhotos <= 0 {
		c.RecentPhotos = 5
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 30
	}
	if len(c.Keywords) == 0 {
		c.Keywords = []string{"schedule", "plan", "today", "tomorrow", "agenda"}
	}
	return c
}

var catReplies = []string{
	"Meow! 😺 Pick an action from the menu:",
	"Purrr... not sure I got that 😿 Try the menu:",
	"*flicks tail* Use the menu buttons 🐱",
	"Meow-meow! Here is the menu:",
}

// Service drives the interactive side of the bot. All Telegram traffic
// goes through the request's adapter; state kept here is only the per-chat
// intake flow.
type Service struct {
	store *storage.Store
	log   logx.Logger

	mu    sync.Mutex
	cfg   Config
	flows map[int64]flow

	now  func() time.Time
	pick func(n int) int
}

func New(cfg Config, store *storage.Store, log logx.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
		cfg:   cfg.withDefaults(),
		flows: map[int64]flow{},
		now:   time.Now,
		pick:  rand.Intn,
	}
}

// Apply swaps the runtime configuration on hot-reload.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Register installs the full routing table: slash commands, one callback
// route per menu surface, and the free-text / photo hooks.
func (s *Service) Register(r *router.Router) {
	cmds := []router.Command{
		{Name: "start", Description: "greet and show the menu", Handle: s.handleStart},
		{Name: "help", Description: "how the assistant works", Handle: s.handleHelp},
	}
	cbs := []router.CallbackRoute{
		{Namespace: "menu", Action: "main", Handle: s.cbMenuMain},
		{Namespace: "menu", Action: "today", Handle: s.cbToday},
		{Namespace: "menu", Action: "week", Handle: s.cbWeek},
		{Namespace: "menu", Action: "add_event", Handle: s.cbAddEvent},
		{Namespace: "menu", Action: "add_birthday", Handle: s.cbAddBirthday},
		{Namespace: "menu", Action: "my_events", Handle: s.cbMyEvents},
		{Namespace: "menu", Action: "birthdays", Handle: s.cbBirthdays},
		{Namespace: "menu", Action: "photos", Handle: s.cbPhotos},
		{Namespace: "menu", Action: "settings", Handle: s.cbSettings},
		{Namespace: "menu", Action: "help", Handle: s.cbHelp},
		{Namespace: "menu", Action: "cancel", Handle: s.cbCancel},
		{Namespace: "settings", Action: "tz", Handle: s.cbSettingsTimezone},
		{Namespace: "settings", Action: "morning", Handle: s.cbSettingsMorning},
		{Namespace: "photos", Action: "list", Handle: s.cbPhotosList},
	}
	r.SetRegistry(cmds, cbs, s.onText, s.onPhoto)
}

func (s *Service) handleStart(ctx context.Context, req *router.Request) error {
	s.clearFlow(req.Chat.ChatID)
	name := strings.TrimSpace(req.Update.Message.FromName)
	if name == "" {
		name = "friend"
	}
	b := tgui.New()
	b.Line(fmt.Sprintf("Hi, %s! 😺", name))
	b.Blank()
	b.Line("I am your cat planner assistant!")
	b.Blank()
	b.Line("What I can do:")
	b.Line("📅 Remind you about events")
	b.Line("🎂 Remember birthdays")
	b.Line("📷 Keep your photos")
	b.Blank()
	b.Line("Pick an action from the menu below:")
	b.Inline(menuKeyboard())
	_, err := b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}

func (s *Service) handleHelp(ctx context.Context, req *router.Request) error {
	_, err := helpView().Send(ctx, req.Adapter, req.Chat)
	return err
}

// onText feeds an active intake flow first; otherwise free text either
// matches a plan keyword or earns a cat reply with the menu attached.
func (s *Service) onText(ctx context.Context, req *router.Request) error {
	text := strings.TrimSpace(req.Update.Message.Text)
	chatID := req.Chat.ChatID

	if fl, ok := s.activeFlow(chatID); ok {
		return s.continueFlow(ctx, req, fl, text)
	}

	if s.matchesKeyword(text) {
		msg, err := s.todayView(ctx, req.FromID)
		if err != nil {
			return err
		}
		_, err = msg.Send(ctx, req.Adapter, req.Chat)
		return err
	}

	b := tgui.New()
	b.Line(catReplies[s.pick(len(catReplies))])
	b.Inline(menuKeyboard())
	_, err := b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}

func (s *Service) matchesKeyword(text string) bool {
	low := strings.ToLower(text)
	for _, k := range s.config().Keywords {
		if k != "" && strings.Contains(low, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// onPhoto stores the image reference and confirms. The adapter already
// picked the largest size of the photo.
func (s *Service) onPhoto(ctx context.Context, req *router.Request) error {
	msg := req.Update.Message
	_, err := s.store.AddPhoto(ctx, agenda.Photo{
		UserID:  req.FromID,
		FileID:  msg.PhotoFileID,
		Caption: msg.PhotoCaption,
		Date:    agenda.DateOf(s.now()),
	})
	if err != nil {
		return fmt.Errorf("save photo: %w", err)
	}
	s.log.Debug("photo saved", logx.Int64("user", req.FromID))
	b := tgui.New()
	b.Line("📷 Photo saved! Meow! 😺")
	b.Inline(tgui.NewInline().Row(backBtn()))
	_, err = b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}
