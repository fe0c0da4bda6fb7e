package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/mongodb"
)

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected command
		err      bool
	}{
		{name: "missing command", args: nil, err: true},
		{name: "unknown command", args: []string{"compact"}, err: true},
		{name: "get without id", args: []string{"get", "Order"}, err: true},
		{name: "prune with extra arguments", args: []string{"prune", "Order", "1", "2"}, err: true},
		{
			name:     "get",
			args:     []string{"get", "Order", "1"},
			expected: getCommand{aggregateType: "Order", aggregateID: "1"},
		},
		{
			name:     "prune",
			args:     []string{"prune", "Order", "1"},
			expected: pruneCommand{aggregateType: "Order", aggregateID: "1"},
		},
		{
			name:     "delete by id",
			args:     []string{"delete", "Order", "1"},
			expected: deleteCommand{aggregateType: "Order", aggregateID: "1"},
		},
		{
			name:     "delete by type",
			args:     []string{"delete", "Order"},
			expected: deleteCommand{aggregateType: "Order"},
		},
		{
			name:     "create indexes",
			args:     []string{"create-indexes", "orders"},
			expected: createIndexesCommand{buckets: []string{"orders"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := parseCommand(tc.args)
			if tc.err {
				assert.ErrorIs(t, err, errUsage)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, cmd)
		})
	}
}

func TestCreateIndexesCommand_Buckets(t *testing.T) {
	config := mongodb.Config{
		DefaultBucket: "snapshots",
		Buckets:       map[string]string{"Order": "orders", "Invoice": "invoices", "Cart": "snapshots"},
	}

	assert.Equal(t, []string{"invoices", "orders", "snapshots"}, createIndexesCommand{}.bucketsFor(config))
	assert.Equal(t, []string{"custom"}, createIndexesCommand{buckets: []string{"custom"}}.bucketsFor(config))
}

func TestRun_InvalidUsage(t *testing.T) {
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"compact"}, &stdout)
	assert.ErrorIs(t, err, errUsage)
	assert.Empty(t, stdout.String())
}
