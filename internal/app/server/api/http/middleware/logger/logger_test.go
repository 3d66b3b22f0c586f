package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{200, slog.LevelInfo},
		{202, slog.LevelInfo},
		{404, slog.LevelWarn},
		{409, slog.LevelWarn},
		{500, slog.LevelError},
		{503, slog.LevelError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, level(tt.status), "status %d", tt.status)
	}
}
