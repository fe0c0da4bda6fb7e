package snapshot_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/snapshot/snapshottest"
)

func TestInMemoryStore(t *testing.T) {
	snapshottest.StoreSuite(snapshot.NewInMemoryStore[snapshottest.Counter]())(t)
}

func TestInMemoryStore_MarshalJSON(t *testing.T) {
	store := snapshot.NewInMemoryStore[snapshottest.Counter]()
	require.NoError(t, store.Save(context.Background(), snapshottest.NewCounterSnapshot(t, "counter", "id", 3, 3)))

	byt, err := json.Marshal(store)
	require.NoError(t, err)

	var state map[string]map[string]struct {
		AggregateRoot snapshottest.Counter
		LastVersion   uint32
	}

	require.NoError(t, json.Unmarshal(byt, &state))
	assert.Equal(t, snapshottest.Counter{Name: "id", Count: 3}, state["counter"]["id"].AggregateRoot)
	assert.Equal(t, uint32(3), state["counter"]["id"].LastVersion)
}
