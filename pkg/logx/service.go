package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "purrbot/internal/transport"
)

// Config selects the active sinks and the minimum level for all of
// them. Any combination of sinks may be on at once.
type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

// FileConfig enables the append-only log file sink.
type FileConfig struct {
	Enabled bool
	Path    string // defaults to ./purrbot.log
}

// TelegramConfig enables mirroring selected records into a group chat.
// The chat itself comes from SetTelegramTarget, not from here.
type TelegramConfig struct {
	Enabled    bool
	ThreadID   int
	MinLevel   string // defaults to WARN
	RatePerSec int    // messages per second, minimum 1
}

// Service owns the configured sinks and lets the app swap them at
// runtime. Loggers created from it pick up every Apply without being
// rebuilt.
type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // zerolog.Logger

	file *os.File

	sender       kit.Adapter
	notes        chan tgNote
	workerOnce   sync.Once
	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup

	// telegram sink state, guarded by mu
	chatID   int64
	threadID int
	tgLimit  *rate.Limiter
	tgMin    zerolog.Level
}

// New creates the logging service, applies the initial config
// immediately, and returns both the Service and a root Logger.
func New(cfg Config, sender kit.Adapter) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat

	s := &Service{
		cfg:      cfg,
		sender:   sender,
		notes:    make(chan tgNote, 256),
		threadID: cfg.Telegram.ThreadID,
	}

	// Console root until Apply settles the real sinks.
	s.root.Store(consoleRoot(parseLevel(cfg.Level, zerolog.InfoLevel)))
	s.Apply(cfg)

	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl, ok := s.root.Load().(zerolog.Logger); ok {
		return zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetTelegramTarget aims the telegram sink at a chat. Zero chatID parks
// the sink until a target arrives; zero threadID keeps the current one.
func (s *Service) SetTelegramTarget(chatID int64, threadID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = chatID
	if threadID != 0 {
		s.threadID = threadID
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	cancel := s.workerCancel
	s.file = nil
	s.workerCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.workerWG.Wait()
	}
	if f != nil {
		_ = f.Close()
	}
	return nil
}

// Apply swaps logger outputs and levels at runtime. Safe to call
// concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg

	s.tgMin = parseLevel(cfg.Telegram.MinLevel, zerolog.WarnLevel)
	rps := max(1, cfg.Telegram.RatePerSec)
	s.tgLimit = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.Telegram.ThreadID != 0 {
		s.threadID = cfg.Telegram.ThreadID
	}

	writers := s.rebuildSinksLocked(cfg)
	mw := zerolog.MultiLevelWriter(writers...)
	lvl := parseLevel(cfg.Level, zerolog.InfoLevel)
	s.root.Store(zerolog.New(mw).Level(lvl).With().Timestamp().Logger())
}

// rebuildSinksLocked closes the previous log file, reopens sinks per the
// new config and guarantees at least one writer remains.
func (s *Service) rebuildSinksLocked(cfg Config) []io.Writer {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	writers := make([]io.Writer, 0, 3)
	if cfg.Console {
		writers = append(writers, consoleWriter())
	}
	if cfg.File.Enabled {
		if f := openLogFile(cfg.File.Path); f != nil {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Telegram.Enabled {
		s.startTelegramWorker()
		writers = append(writers, &telegramWriter{svc: s})
		if s.chatID == 0 {
			fmt.Fprintln(os.Stderr, "logx: telegram logging enabled but no group target is set (chat_id missing)")
		}
	}

	// A config with every sink off still logs somewhere.
	if len(writers) == 0 {
		writers = append(writers, consoleWriter())
	}
	return writers
}

func (s *Service) startTelegramWorker() {
	s.workerOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.workerCancel = cancel
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			s.telegramWorker(ctx)
		}()
	})
}

func openLogFile(path string) *os.File {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "./purrbot.log"
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", path, err)
		return nil
	}
	return f
}

func consoleRoot(lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(consoleWriter()).Level(lvl).With().Timestamp().Logger()
}

func consoleWriter() io.Writer {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	cw.FormatCaller = func(i interface{}) string {
		s, _ := i.(string)
		return s
	}
	return cw
}
