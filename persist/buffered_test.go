package persist_test

import (
	"testing"

	"github.com/firmkit/nvvar"
	"github.com/firmkit/nvvar/persist"
	"github.com/stretchr/testify/require"
)

func TestBufferedFirstBootSeeding(t *testing.T) {
	layout, device := newDirectLayout(t, 64, persist.Config{})

	buffered, err := persist.NewBuffered[int32](layout, "counter", 5)
	require.NoError(t, err)
	require.Equal(t, int32(5), buffered.Get())

	// The persisted copy was seeded as well
	reopened := reopenDirectLayout(t, device, persist.Config{})
	unbuffered, err := persist.NewVar[int32](reopened, "counter", 0)
	require.NoError(t, err)
	require.Equal(t, buffered.Address(), unbuffered.Address())

	persisted, err := unbuffered.Load()
	require.NoError(t, err)
	require.Equal(t, int32(5), persisted)
}

func TestBufferedMutationsStayInMemoryUntilSave(t *testing.T) {
	layout, device := newDirectLayout(t, 64, persist.Config{})

	buffered, err := persist.NewBuffered[int32](layout, "counter", 5)
	require.NoError(t, err)

	buffered.Set(41)
	buffered.Update(func(value *int32) {
		*value++
	})
	require.Equal(t, int32(42), buffered.Get())

	// In-memory mutation is invisible to an unbuffered handle at the same address
	reopened := reopenDirectLayout(t, device, persist.Config{})
	unbuffered, err := persist.NewVar[int32](reopened, "counter", 5)
	require.NoError(t, err)

	persisted, err := unbuffered.Load()
	require.NoError(t, err)
	require.Equal(t, int32(5), persisted)

	// Save makes the mutation durable
	require.NoError(t, buffered.Save())
	persisted, err = unbuffered.Load()
	require.NoError(t, err)
	require.Equal(t, int32(42), persisted)
}

func TestBufferedLoadDiscardsUnsavedMutations(t *testing.T) {
	layout, _ := newDirectLayout(t, 64, persist.Config{})

	buffered, err := persist.NewBuffered[int32](layout, "counter", 5)
	require.NoError(t, err)

	buffered.Set(99)
	require.NoError(t, buffered.Load())
	require.Equal(t, int32(5), buffered.Get())
}

func TestBufferedLoadsPersistedValueOnLaterBoots(t *testing.T) {
	layout, device := newDirectLayout(t, 64, persist.Config{})

	buffered, err := persist.NewBuffered[int32](layout, "counter", 5)
	require.NoError(t, err)

	buffered.Set(77)
	require.NoError(t, buffered.Save())

	reopened := reopenDirectLayout(t, device, persist.Config{})
	revived, err := persist.NewBuffered[int32](reopened, "counter", 5)
	require.NoError(t, err)
	require.Equal(t, int32(77), revived.Get())
}

func TestBufferedReadsCostNoBackendAccess(t *testing.T) {
	layout, device := newDirectLayout(t, 64, persist.Config{})

	buffered, err := persist.NewBuffered[int32](layout, "counter", 5)
	require.NoError(t, err)

	device.ClearAccessStatistics()
	for i := 0; i < 100; i++ {
		require.Equal(t, int32(5), buffered.Get())
	}
	require.Equal(t, nvvar.AccessStatistics{}, device.AccessStatistics())
}
