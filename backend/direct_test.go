package backend_test

import (
	"io"
	"testing"

	"github.com/firmkit/nvvar"
	"github.com/firmkit/nvvar/backend"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestDirectRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryByteDevice(64)
	require.NoError(t, err)

	direct, err := backend.NewDirect(logger, device)
	require.NoError(t, err)
	require.Equal(t, 64, direct.Capacity())
	require.NoError(t, direct.Validate())

	payload := []byte{0x10, 0x20, 0x30, 0x40, 0x50}
	require.NoError(t, direct.WriteRange(10, payload))

	readBack := make([]byte, len(payload))
	require.NoError(t, direct.ReadRange(10, readBack))
	require.Equal(t, payload, readBack)

	// Reads have no side effects
	again := make([]byte, len(payload))
	require.NoError(t, direct.ReadRange(10, again))
	require.Equal(t, payload, again)
}

func TestDirectWritesOnlyChangedBytes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryByteDevice(32)
	require.NoError(t, err)

	direct, err := backend.NewDirect(logger, device)
	require.NoError(t, err)

	payload := []byte{1, 2, 3, 4}
	require.NoError(t, direct.WriteRange(0, payload))

	device.ClearAccessStatistics()
	require.NoError(t, direct.WriteRange(0, payload))
	require.Equal(t, 0, device.AccessStatistics().Writes)

	// Only the one differing byte is programmed
	device.ClearAccessStatistics()
	require.NoError(t, direct.WriteRange(0, []byte{1, 2, 9, 4}))
	require.Equal(t, 1, device.AccessStatistics().Writes)

	readBack := make([]byte, 4)
	require.NoError(t, direct.ReadRange(0, readBack))
	require.Equal(t, []byte{1, 2, 9, 4}, readBack)
}

func TestDirectFlushIsANoOp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryByteDevice(32)
	require.NoError(t, err)

	direct, err := backend.NewDirect(logger, device)
	require.NoError(t, err)

	require.NoError(t, direct.WriteRange(4, []byte{0xAA}))
	require.NoError(t, direct.Flush())
	require.Equal(t, 0, device.AccessStatistics().Erases)
}

func TestDirectOutOfRange(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryByteDevice(16)
	require.NoError(t, err)

	direct, err := backend.NewDirect(logger, device)
	require.NoError(t, err)

	err = direct.WriteRange(12, make([]byte, 8))
	require.ErrorIs(t, err, nvvar.ErrOutOfRange)

	err = direct.ReadRange(-1, make([]byte, 4))
	require.ErrorIs(t, err, nvvar.ErrOutOfRange)

	// Nothing was programmed by the rejected write
	require.Equal(t, 0, device.AccessStatistics().Writes)
}

func TestNewDirectRequiresDevice(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	_, err := backend.NewDirect(logger, nil)
	require.Error(t, err)
}
