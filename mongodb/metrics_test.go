package mongodb_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/event"

	"github.com/get-eventually/go-eventually-snapshot/mongodb"
)

func TestCommandMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := mongodb.NewCommandMetrics("app")

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(metrics))

	monitor := metrics.Monitor()

	for range 2 {
		monitor.Succeeded(ctx, &event.CommandSucceededEvent{
			CommandFinishedEvent: event.CommandFinishedEvent{CommandName: "find", Duration: 10 * time.Millisecond},
		})
	}

	monitor.Failed(ctx, &event.CommandFailedEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{CommandName: "delete", Duration: time.Millisecond},
	})

	expected := `
# HELP app_mongodb_commands_total The total number of commands sent to MongoDB.
# TYPE app_mongodb_commands_total counter
app_mongodb_commands_total{command="delete",status="failed"} 1
app_mongodb_commands_total{command="find",status="success"} 2
`

	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "app_mongodb_commands_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics, "app_mongodb_command_duration_seconds"))
}
