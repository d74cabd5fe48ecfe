package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rfqgateway/pkg/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTrace(trace.WithContext(context.Background(), "t-1"), base).Info("hello")
	WithTrace(context.Background(), base).Info("no trace")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "t-1", entries[0].ContextMap()["trace_id"])
		_, ok := entries[1].ContextMap()["trace_id"]
		assert.False(t, ok)
	}
}
