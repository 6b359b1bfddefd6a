package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"urna/internal/shared/events"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewKafkaLogsBrokers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	bus, err := NewKafka([]string{"broker-1:9092", "broker-2:9092"}, logger)
	require.NoError(t, err)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, bus.Brokers())

	var line struct {
		Event   string   `json:"event"`
		Brokers []string `json:"brokers"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kafka_bus_ready", line.Event)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, line.Brokers)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus, err := NewKafka(nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan events.Envelope, 1)
	require.NoError(t, bus.Subscribe(ctx, "ballot.cast", "audit-cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "ballot.cast", events.Envelope{EventID: "evt-1", EventType: "ballot.cast"}))
	require.NoError(t, bus.Publish(ctx, "voter.voted", events.Envelope{EventID: "evt-2", EventType: "voter.voted"}))

	select {
	case event := <-received:
		require.Equal(t, "evt-1", event.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
	cancel()
	bus.Wait()
}
