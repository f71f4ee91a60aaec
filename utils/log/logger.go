package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type ctxKey string

const (
	sessionIDKey  ctxKey = "session_id"
	remoteAddrKey ctxKey = "remote_addr"
)

var logger *zap.Logger

func init() {
	Configure(os.Getenv("DEBUG") == "true")
}

// Configure swaps the global logger. It is called again once the
// configuration (and .env) has been loaded.
func Configure(debug bool) {
	var l *zap.Logger
	if debug {
		l, _ = zap.NewDevelopment()
	} else {
		l, _ = zap.NewProduction()
	}
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// WithSession stores the session id and remote address for WithCtx.
func WithSession(ctx context.Context, sessionID, remoteAddr string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	if remoteAddr != "" {
		ctx = context.WithValue(ctx, remoteAddrKey, remoteAddr)
	}
	return ctx
}

// SessionID returns the session id stored by WithSession.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v := ctx.Value(sessionIDKey); v != nil {
		fields = append(fields, zap.Any("session_id", v))
	}
	if v := ctx.Value(remoteAddrKey); v != nil {
		fields = append(fields, zap.Any("remote_addr", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

func Sync() {
	_ = logger.Sync()
}
