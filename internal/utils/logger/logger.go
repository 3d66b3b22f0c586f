// Package logger настраивает slog под окружение приложения.
package logger

import (
	"io"
	"os"

	"clubsync/internal/config"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	out  io.Writer
	file string
}

type Option func(*options)

// WithFile пишет JSON-логи в файл с ротацией вместо stdout.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithOutput подменяет поток вывода.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

func New(env string, opts ...Option) *slog.Logger {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	if o.file != "" {
		o.out = &lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
	}

	switch env {
	case config.EnvLocal:
		if o.file == "" {
			return setupPrettySlog(o.out)
		}
		return slog.New(slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

func setupPrettySlog(out io.Writer) *slog.Logger {
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	return slog.New(opts.NewPrettyHandler(out))
}

// Discard логгер, который ничего не пишет.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
