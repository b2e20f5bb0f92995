package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			for _, format := range []string{"text", "json"} {
				logger := setupLogger(tt.level, format)
				assert.True(t, logger.Enabled(context.Background(), tt.want))
				if tt.want > slog.LevelDebug {
					assert.False(t, logger.Enabled(context.Background(), tt.want-1))
				}
			}
		})
	}
}
