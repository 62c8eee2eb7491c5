package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.With("component", "ws").WithGroup("req").Info("http.request", "method", "get", "status", 404, "path", "/api/chat/x y")
	log.Debug("hidden")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "[INFO] http.request")
	assert.Contains(t, out, " component=ws")
	assert.Contains(t, out, " req.method=GET")
	assert.Contains(t, out, " req.status=404")
	assert.Contains(t, out, ` req.path="/api/chat/x y"`)
	assert.NotContains(t, out, "\x1b[")
}

func TestPrettyHandler_Color(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))

	log.Error("boom", "status", 503)

	out := buf.String()
	assert.Contains(t, out, ansiRed+"[ERROR]"+ansiReset)
	assert.Contains(t, out, "status="+ansiRed+"503"+ansiReset)
}

func TestQuoteIfNeeded(t *testing.T) {
	assert.Equal(t, `""`, quoteIfNeeded(""))
	assert.Equal(t, "plain", quoteIfNeeded("plain"))
	assert.Equal(t, `"a=b"`, quoteIfNeeded("a=b"))
}
