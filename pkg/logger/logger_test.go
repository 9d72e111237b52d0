package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithFormat(logger.FormatJSON),
		logger.WithOutput(&buf),
	)

	log.Info("test message", slog.String("key", "value"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "test message", record["msg"])
	assert.Equal(t, "value", record["key"])
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithFormat(logger.FormatText),
		logger.WithOutput(&buf),
	)

	log.Info("test message")
	assert.Contains(t, buf.String(), "msg=\"test message\"")
}

func TestNew_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithLevel(slog.LevelWarn),
		logger.WithOutput(&buf),
	)

	log.Info("filtered")
	log.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "filtered")
	assert.Contains(t, out, "visible")
}

func TestNew_StaticAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "notifykit")),
	)

	log.Info("test")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "notifykit", record["service"])
}

func TestNew_ProductionPreset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithProduction("notifykit"),
		logger.WithOutput(&buf),
	)

	log.Debug("too verbose")
	log.Info("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "production", record["env"])
	assert.Equal(t, "notifykit", record["service"])
}

func TestWithFormat_PanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat("yaml"))
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
	}{
		{name: "user id", attr: logger.UserID("user-1"), key: "user_id"},
		{name: "notification id", attr: logger.NotificationID("n-1"), key: "notification_id"},
		{name: "event type", attr: logger.EventType("NEW_COMMENT"), key: "event_type"},
		{name: "channel", attr: logger.Channel("email"), key: "channel"},
		{name: "handler", attr: logger.Handler("notifier.new_comment"), key: "handler"},
		{name: "component", attr: logger.Component("outbox"), key: "component"},
		{name: "retry count", attr: logger.RetryCount(2), key: "retry_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.key, tt.attr.Key)
		})
	}

	assert.Empty(t, logger.Error(nil).Key)
	assert.Empty(t, logger.UserID(nil).Key)
}
