package log

import (
	"context"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/spaceflake/internal/appcontext"
	"github.com/pbinitiative/spaceflake/internal/profile"
	"go.uber.org/zap"
)

var logger = zap.NewNop().Sugar()

// Init builds the process logger for the current profile: JSON in PROD, console otherwise.
func Init() {
	var (
		l   *zap.Logger
		err error
	)
	if profile.IsProd() {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	SetLogger(l)
}

func SetLogger(l *zap.Logger) {
	logger = l.Sugar()
}

func Sync() {
	_ = logger.Sync()
}

func Info(msg string, args ...any) {
	logger.Infof(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warnf(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Errorf(msg, args...)
}

func Debug(msg string, args ...any) {
	logger.Debugf(msg, args...)
}

func Infof(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).Infof(msg, args...)
}

func Warnf(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).Warnf(msg, args...)
}

func Errorf(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).Errorf(msg, args...)
}

func Debugf(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).Debugf(msg, args...)
}

func fromContext(ctx context.Context) *zap.SugaredLogger {
	if id, ok := appcontext.RequestIDFromContext(ctx); ok {
		return logger.With("request_id", id)
	}
	return logger
}

// Component returns an hclog logger for library components that log through hclog.
func Component(name string) hclog.Logger {
	level := hclog.Debug
	if profile.IsProd() {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: profile.IsProd(),
	})
}
