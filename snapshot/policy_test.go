package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/version"
)

func TestPolicies(t *testing.T) {
	t.Run("never and always", func(t *testing.T) {
		assert.False(t, NeverPolicy{}.ShouldRecord(10))
		assert.True(t, AlwaysPolicy{}.ShouldRecord(10))
	})

	t.Run("every version increment", func(t *testing.T) {
		policy := EveryVersionIncrementPolicy(10)

		assert.False(t, policy.ShouldRecord(9))
		assert.True(t, policy.ShouldRecord(10))
		assert.False(t, policy.ShouldRecord(11))
		assert.True(t, policy.ShouldRecord(20))
		assert.False(t, EveryVersionIncrementPolicy(0).ShouldRecord(10))
	})

	t.Run("at fixed intervals", func(t *testing.T) {
		now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

		policy := NewAtFixedIntervalsPolicy(time.Hour)
		policy.now = func() time.Time { return now }

		assert.True(t, policy.ShouldRecord(1))
		policy.Record(1)

		now = now.Add(30 * time.Minute)
		assert.False(t, policy.ShouldRecord(2))

		now = now.Add(30 * time.Minute)
		assert.True(t, policy.ShouldRecord(3))
		policy.Record(3)
		assert.False(t, policy.ShouldRecord(4))
	})
}

type recordingSaver struct {
	saved []version.Version
	err   error
}

func (s *recordingSaver) Save(_ context.Context, snapshot Snapshot[int]) error {
	if s.err != nil {
		return s.err
	}

	s.saved = append(s.saved, snapshot.LastVersion)

	return nil
}

func TestPolicySaver(t *testing.T) {
	ctx := context.Background()

	t.Run("only matching versions are saved", func(t *testing.T) {
		saver := &recordingSaver{}
		policySaver := PolicySaver[int]{Saver: saver, Policy: EveryVersionIncrementPolicy(2)}

		for v := version.Version(1); v <= 5; v++ {
			snap, err := New("counter", "id", int(v), v, time.Now())
			require.NoError(t, err)
			require.NoError(t, policySaver.Save(ctx, snap))
		}

		assert.Equal(t, []version.Version{2, 4}, saver.saved)
	})

	t.Run("failed saves are not recorded by the policy", func(t *testing.T) {
		errSave := errors.New("save failed")
		saver := &recordingSaver{err: errSave}
		policy := NewAtFixedIntervalsPolicy(time.Hour)
		policySaver := PolicySaver[int]{Saver: saver, Policy: policy}

		snap, err := New("counter", "id", 1, 1, time.Now())
		require.NoError(t, err)

		assert.ErrorIs(t, policySaver.Save(ctx, snap), errSave)
		assert.True(t, policy.ShouldRecord(2))

		saver.err = nil
		require.NoError(t, policySaver.Save(ctx, snap))
		assert.False(t, policy.ShouldRecord(2))
	})
}
