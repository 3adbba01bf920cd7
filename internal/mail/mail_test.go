package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookMailerPostsJSON(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewWebhookMailer(srv.URL)
	msg := Message{To: "ana@example.com", Subject: "Reset your password", Body: "https://example.com/reset?code=x"}
	require.NoError(t, m.Send(context.Background(), msg))
	assert.Equal(t, msg, got)
}

func TestWebhookMailerReportsRelayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhookMailer(srv.URL).Send(context.Background(), Message{To: "ana@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestLogMailerKeepsMessages(t *testing.T) {
	m := &LogMailer{}
	require.NoError(t, m.Send(context.Background(), Message{To: "a@example.com", Subject: "one"}))
	require.NoError(t, m.Send(context.Background(), Message{To: "b@example.com", Subject: "two"}))

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "b@example.com", sent[1].To)
}

func TestLogMailerKeepsBodiesOutOfInfoLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	m := &LogMailer{}
	require.NoError(t, m.Send(context.Background(), Message{
		To:      "ana@example.com",
		Subject: "Reset your password",
		Body:    "https://najdeno.example.com/reset?code=secret-reset-code",
	}))

	out := buf.String()
	assert.Contains(t, out, "ana@example.com")
	assert.Contains(t, out, "Reset your password")
	assert.NotContains(t, out, "secret-reset-code")
}
