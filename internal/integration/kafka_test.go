//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/sqlstore"
	"github.com/couchcryptid/fcst-grid-ingest/internal/config"
	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

const testCompletionTopic = "fcst-grid-completions"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("fcst-test"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestCompletionNotification ingests a file into SQLite and checks that its
// completion event arrives on the topic.
func TestCompletionNotification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testCompletionTopic)

	store, err := sqlstore.Open(ctx, config.DriverSQLite, t.TempDir()+"/fcst.db", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	notifier := kafka.NewNotifier([]string{broker}, testCompletionTopic, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	job := writeJob(t)
	report, err := newRunner(store, notifier).Run(ctx, job)
	require.NoError(t, err)
	require.Equal(t, 1, report.Count("ingested"))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testCompletionTopic,
		StartOffset: kafkago.FirstOffset,
	})
	defer consumer.Close()

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read completion")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "grid_ingested", headers["event_type"])
	assert.Equal(t, report.BatchID, headers["batch_id"])
	assert.Equal(t, "WRF_A", string(msg.Key))

	var c domain.Completion
	require.NoError(t, json.Unmarshal(msg.Value, &c))
	assert.Equal(t, "2019-03-23", c.RunDate)
	assert.Equal(t, 4, c.Cells)
	assert.Equal(t, 8, c.Points)
}
