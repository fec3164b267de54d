package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher records published messages.
type mockPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, payload)
	if m.err != nil {
		return nil, m.err
	}
	return &jetstream.PubAck{Stream: "CART", Sequence: uint64(len(m.payloads))}, nil
}

// recorder is a notifier that keeps what it receives.
type recorder struct {
	got []domain.Notification
}

func (r *recorder) Notify(_ context.Context, n domain.Notification) {
	r.got = append(r.got, n)
}

var stockExceeded = domain.Notification{
	Kind:      domain.NotificationStockExceeded,
	Message:   "Requested quantity exceeds available stock",
	ProductID: 4,
}

func TestNATSNotifier_Notify(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		publisher  *mockPublisher
		expectLogs string
	}{
		{
			name:      "Success - published",
			publisher: &mockPublisher{},
		},
		{
			name:       "Error - publish failure is only logged",
			publisher:  &mockPublisher{err: errors.New("no responders")},
			expectLogs: "Failed to publish notification",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			logs.Reset()
			notifier := NewNATSNotifier(tc.publisher, "cart.notifications", logger)
			notifier.now = func() time.Time { return at }
			// when
			notifier.Notify(t.Context(), stockExceeded)
			// then
			require.Len(t, tc.publisher.payloads, 1)
			assert.Equal(t, []string{"cart.notifications"}, tc.publisher.subjects)
			assert.JSONEq(t,
				`{"kind":"stock_exceeded","message":"Requested quantity exceeds available stock","product_id":4,"occurred_at":"2026-10-18T12:00:00Z"}`,
				string(tc.publisher.payloads[0]))

			if tc.expectLogs != "" {
				assert.Contains(t, logs.String(), tc.expectLogs)
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}

func TestLogNotifier_Notify(t *testing.T) {
	var logs bytes.Buffer
	notifier := NewLogNotifier(slog.New(slog.NewJSONHandler(&logs, nil)))

	notifier.Notify(t.Context(), stockExceeded)

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, stockExceeded.Message, record["msg"])
	assert.Equal(t, "stock_exceeded", record["kind"])
	assert.Equal(t, float64(4), record["product_id"])
	assert.Equal(t, "notify", record["component"])
}

func TestFanout(t *testing.T) {
	first, second := &recorder{}, &recorder{}

	Fanout(first, second).Notify(t.Context(), stockExceeded)

	assert.Equal(t, []domain.Notification{stockExceeded}, first.got)
	assert.Equal(t, []domain.Notification{stockExceeded}, second.got)
}
