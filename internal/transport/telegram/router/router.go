package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"purrbot/internal/config"
	rtsup "purrbot/internal/runtime/supervisor"
	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

// Command is a single slash command, e.g. "/start".
type Command struct {
	Name        string // lowercase, no slash
	Description string // shown in the Telegram command menu
	Timeout     time.Duration
	Handle      HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackRoute handles inline-button presses whose data is
// "namespace:action" or "namespace:action:payload".
type CallbackRoute struct {
	Namespace string
	Action    string
	Timeout   time.Duration
	Handle    CallbackHandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string   // route key: command name, "cb:ns:action", "text" or "photo"
	Args    []string // tokens after the command word
	Payload string   // raw callback payload
	ReqID   string

	Adapter kit.Adapter
	Config  *config.Config
	Logger  logx.Logger
}

// UserSync records message senders so the reminder checks know every chat.
// Callback updates are skipped: they carry no username and would clobber
// the stored one with an empty string.
type UserSync interface {
	UpsertUser(ctx context.Context, id int64, firstName, username string) error
}

const busyReply = "Busy right now, try again 😿"

// Routes that do not set their own Timeout get this bound.
const defaultHandlerTimeout = 30 * time.Second

func handlerTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultHandlerTimeout
	}
	return d
}

// Router dispatches adapter updates to registered handlers through a
// bounded worker pool. Slash commands, inline callbacks, free text and
// photo messages each get their own route.
type Router struct {
	mu        sync.RWMutex
	commands  map[string]Command
	callbacks map[string]map[string]CallbackRoute // namespace -> action -> route
	onText    HandlerFunc
	onPhoto   HandlerFunc

	log     logx.Logger
	adapter kit.Adapter
	cfgm    *config.ConfigManager
	users   UserSync

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, cfgm *config.ConfigManager, users UserSync) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		commands:  map[string]Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log,
		adapter:   adapter,
		cfgm:      cfgm,
		users:     users,
		jobs:      make(chan func(), 256),
	}
}

// SetRegistry replaces the full routing table. Safe to call again on
// hot-reload; the Telegram command menu is re-synced best-effort.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute, onText, onPhoto HandlerFunc) {
	commands := map[string]Command{}
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || strings.ContainsAny(name, " /") || c.Handle == nil {
			continue
		}
		c.Name = name
		commands[name] = c
	}

	callbacks := map[string]map[string]CallbackRoute{}
	for _, cb := range cbs {
		ns := strings.TrimSpace(cb.Namespace)
		act := strings.TrimSpace(cb.Action)
		if ns == "" || act == "" || cb.Handle == nil {
			continue
		}
		if callbacks[ns] == nil {
			callbacks[ns] = map[string]CallbackRoute{}
		}
		callbacks[ns][act] = cb
	}

	r.mu.Lock()
	r.commands = commands
	r.callbacks = callbacks
	r.onText = onText
	r.onPhoto = onPhoto
	r.mu.Unlock()

	r.kickMenuSync()
}

// Supervisor returns the router's internal supervisor (nil if not running).
func (r *Router) Supervisor() *rtsup.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.running {
		return nil
	}
	return r.sup
}

func (r *Router) setSupervisor(sup *rtsup.Supervisor, running bool) {
	r.runMu.Lock()
	r.sup = sup
	r.running = running
	r.runMu.Unlock()
}

// tryEnqueue is a panic-safe enqueue helper (handles the jobs channel being closed).
func (r *Router) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop consumes adapter updates until ctx is canceled or the
// channel closes. Handlers run on a bounded worker pool so one slow
// conversation cannot stall the rest.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	r.setSupervisor(sup, true)
	r.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			// Mark as not running before closing so enqueue degrades gracefully.
			r.setSupervisor(sup, false)
			close(r.jobs)
		})
	}

	for i := 0; i < workers; i++ {
		idx := i
		name := "router.worker." + strconv.Itoa(idx)
		sup.GoRestart(name, func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					if job == nil {
						continue
					}
					// Middleware already recovers handler panics; this keeps
					// the worker alive if the job wrapper itself blows up.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in router job",
									logx.Int("worker", idx),
									logx.Any("panic", rec),
									logx.Stack(string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	sup.Go("telegram.menu.update", func(c context.Context) error {
		r.syncMenu(c)
		return nil
	})

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.setSupervisor(nil, false)
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("dispatcher stopped (updates channel closed)")
				return nil
			}
			r.routeUpdate(ctx, up)
		}
	}
}

func (r *Router) routeUpdate(root context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(root, up)
	case kit.UpdateCallback:
		r.routeCallback(root, up)
	}
}

func (r *Router) routeMessage(root context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/"):
		r.routeCommand(root, up, text)
	case msg.HasPhoto():
		r.mu.RLock()
		h := r.onPhoto
		r.mu.RUnlock()
		if h != nil {
			r.enqueueMessage(root, up, "photo", nil, h, 0)
		}
	case text != "":
		r.mu.RLock()
		h := r.onText
		r.mu.RUnlock()
		if h != nil {
			r.enqueueMessage(root, up, "text", nil, h, 0)
		}
	}
}

func (r *Router) routeCommand(root context.Context, up kit.Update, text string) {
	msg := up.Message
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)

	r.mu.RLock()
	cmd, ok := r.commands[word]
	r.mu.RUnlock()
	if !ok {
		to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
		_, _ = r.adapter.SendText(root, to, "Unknown command. Try /help 😿", nil)
		return
	}
	r.enqueueMessage(root, up, cmd.Name, parts[1:], cmd.Handle, cmd.Timeout)
}

func (r *Router) enqueueMessage(root context.Context, up kit.Update, route string, args []string, h HandlerFunc, timeout time.Duration) {
	msg := up.Message
	rid := newReqID()
	reqLog := r.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", route),
	)

	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		Command: route,
		Args:    args,
		ReqID:   rid,
		Adapter: r.adapter,
		Config:  r.cfgm.Get(),
		Logger:  reqLog,
	}

	final := Chain(
		h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(handlerTimeout(timeout)),
	)

	if !r.tryEnqueue(func() {
		r.syncUser(root, msg)
		_ = final(root, req)
	}) {
		_, _ = r.adapter.SendText(root, req.Chat, busyReply, nil)
	}
}

func (r *Router) routeCallback(root context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	ns, action := parts[0], parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	r.mu.RLock()
	route, ok := r.callbacks[ns][action]
	r.mu.RUnlock()
	if !ok {
		// Stale button from an old keyboard: clear the loading spinner.
		r.log.Debug("unknown callback route", logx.String("ns", ns), logx.String("action", action))
		_ = r.adapter.AnswerCallback(root, cb.ID, "")
		return
	}

	rid := newReqID()
	key := "cb:" + ns + ":" + action
	reqLog := r.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", cb.ChatID),
		logx.Int64("from_id", cb.FromID),
		logx.String("cmd", key),
	)
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		Command: key,
		Payload: payload,
		ReqID:   rid,
		Adapter: r.adapter,
		Config:  r.cfgm.Get(),
		Logger:  reqLog,
	}

	h := func(ctx context.Context, rq *Request) error { return route.Handle(ctx, rq, payload) }
	final := Chain(
		h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(handlerTimeout(route.Timeout)),
	)

	if !r.tryEnqueue(func() {
		_ = final(root, req)
		// best-effort to stop the "loading" UI
		_ = r.adapter.AnswerCallback(root, cb.ID, "")
	}) {
		_ = r.adapter.AnswerCallback(root, cb.ID, busyReply)
	}
}

func (r *Router) syncUser(ctx context.Context, msg *kit.Message) {
	if r.users == nil || msg == nil || msg.FromID == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.users.UpsertUser(cctx, msg.FromID, msg.FromName, msg.FromUsername); err != nil {
		r.log.Warn("user upsert failed", logx.Int64("user", msg.FromID), logx.Err(err))
	}
}

func (r *Router) kickMenuSync() {
	r.runMu.Lock()
	sup := r.sup
	running := r.running
	r.runMu.Unlock()
	if !running || sup == nil {
		return // DispatchLoop syncs on start
	}
	sup.Go("telegram.menu.update", func(ctx context.Context) error {
		r.syncMenu(ctx)
		return nil
	})
}

func (r *Router) syncMenu(parent context.Context) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := r.menuCommands()
	if len(menu) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(ctx, menu); err != nil {
		r.log.Debug("menu update skipped", logx.Err(err))
	}
}

func (r *Router) menuCommands() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(r.commands))
	for _, c := range r.commands {
		if c.Description == "" || !validMenuCommand(c.Name) {
			continue
		}
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Telegram restricts menu command names to [a-z0-9_]{1,32}.
func validMenuCommand(s string) bool {
	if len(s) == 0 || len(s) > 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			continue
		}
		return false
	}
	return true
}
