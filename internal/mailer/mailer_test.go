package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestSendGridMailer_Send(t *testing.T) {
	t.Parallel()

	var (
		gotAuth string
		gotPath string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	m := NewSendGridWithHost("SG.test-key", srv.URL, "noreply@taglink.test", "Taglink")
	err := m.Send(context.Background(), PasswordReset("alice@example.com", "alice", "http://localhost/reset_password/tok"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.test-key", gotAuth)
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, PasswordResetSubject, gotBody["subject"])

	from, ok := gotBody["from"].(map[string]any)
	require.True(t, ok, "from should be an object")
	assert.Equal(t, "noreply@taglink.test", from["email"])
}

func TestSendGridMailer_RejectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	t.Cleanup(srv.Close)

	m := NewSendGridWithHost("SG.bad", srv.URL, "noreply@taglink.test", "Taglink")
	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "t", HTML: "<p>t</p>"})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestThrottled(t *testing.T) {
	t.Parallel()

	rec := &recordingMailer{}
	m := NewThrottled(rec, 0.001, 2)

	msg := Message{To: "a@example.com", Subject: "s"}
	require.NoError(t, m.Send(context.Background(), msg))
	require.NoError(t, m.Send(context.Background(), msg))
	assert.ErrorIs(t, m.Send(context.Background(), msg), ErrThrottled)
	assert.Len(t, rec.sent, 2)
}

func TestThrottled_PropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("smtp down")
	m := NewThrottled(&recordingMailer{err: boom}, 10, 1)

	err := m.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, boom)
}

func TestLogMailer(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewLogMailer(logger).Send(context.Background(), Message{To: "a@example.com", Subject: "hello"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "email_logged")
	assert.Contains(t, buf.String(), "a@example.com")
}

func TestPasswordReset_Template(t *testing.T) {
	t.Parallel()

	link := "https://t.example/reset_password/v4.local.abc?x=1&y=2"
	msg := PasswordReset("alice@example.com", "alice", link)

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Password Reset Request", msg.Subject)
	assert.Contains(t, msg.Text, "To reset your password, visit the following link:\n"+link)
	assert.Contains(t, msg.Text, "If you did not make this request then simply ignore this email")
	assert.Contains(t, msg.HTML, "x=1&amp;y=2")
}
