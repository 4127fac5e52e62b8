package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "purrbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that mws[0] is the outermost middleware.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// reqLogger prefers the per-request logger (carries rid/chat/cmd fields)
// and falls back to the router's own.
func reqLogger(fallback logx.Logger, req *Request) logx.Logger {
	if req != nil && !req.Logger.IsZero() {
		return req.Logger
	}
	return fallback
}

// MWTimeout bounds handler execution. d <= 0 leaves the context alone.
func MWTimeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// MWPanicRecover converts a handler panic into an error so one bad
// update cannot take down the dispatch worker.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					reqLogger(log, req).Error("panic recovered",
						logx.Any("panic", rec),
						logx.Stack(string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", rec)
				}
			}()
			return next(ctx, req)
		}
	}
}

// Successful requests under this threshold log at DEBUG so INFO stays
// readable under chat load.
const slowRequest = 750 * time.Millisecond

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			l := reqLogger(log, req)
			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("from_id", req.FromID),
				logx.String("cmd", req.Command),
				logx.Duration("dur", took),
			}
			switch {
			case err != nil:
				l.Warn("request failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				l.Info("request ok", fields...)
			default:
				l.Debug("request ok", fields...)
			}
			return err
		}
	}
}
