package backend_test

import (
	"io"
	"testing"

	"github.com/firmkit/nvvar"
	"github.com/firmkit/nvvar/backend"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestPagedRoundTripAcrossPages(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryPageDevice(16, 4)
	require.NoError(t, err)

	paged, err := backend.NewPaged(logger, device)
	require.NoError(t, err)
	require.Equal(t, 64, paged.Capacity())
	require.NoError(t, paged.Validate())

	// Spans pages 0, 1 and 2
	payload := make([]byte, 36)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	require.NoError(t, paged.WriteRange(8, payload))

	readBack := make([]byte, len(payload))
	require.NoError(t, paged.ReadRange(8, readBack))
	require.Equal(t, payload, readBack)

	require.NoError(t, paged.Flush())

	// A fresh backend over the same device sees the committed bytes
	reopened, err := backend.NewPaged(logger, device)
	require.NoError(t, err)

	readBack = make([]byte, len(payload))
	require.NoError(t, reopened.ReadRange(8, readBack))
	require.Equal(t, payload, readBack)
}

func TestPagedBatchesWritesWithinAPage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryPageDevice(16, 4)
	require.NoError(t, err)

	paged, err := backend.NewPaged(logger, device)
	require.NoError(t, err)

	// Many writes into page 1, no erase until the explicit flush
	for i := 0; i < 16; i++ {
		require.NoError(t, paged.WriteRange(16+i, []byte{byte(i)}))
	}
	require.Equal(t, 0, device.AccessStatistics().Erases)

	require.NoError(t, paged.Flush())
	stats := device.AccessStatistics()
	require.Equal(t, 1, stats.Erases)
	require.Equal(t, 1, stats.Writes)

	// A repeated flush with a clean buffer commits nothing
	require.NoError(t, paged.Flush())
	require.Equal(t, 1, device.AccessStatistics().Erases)
}

func TestPagedCommitsDirtyPageOnPageSwitch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryPageDevice(16, 4)
	require.NoError(t, err)

	paged, err := backend.NewPaged(logger, device)
	require.NoError(t, err)

	require.NoError(t, paged.WriteRange(0, []byte{0xAB}))
	require.Equal(t, 0, device.AccessStatistics().Erases)

	// Touching page 2 flushes page 0 first
	require.NoError(t, paged.WriteRange(40, []byte{0xCD}))
	stats := device.AccessStatistics()
	require.Equal(t, 1, stats.Erases)
	require.Equal(t, 1, stats.Writes)

	readBack := make([]byte, 1)
	require.NoError(t, paged.ReadRange(0, readBack))
	require.Equal(t, []byte{0xAB}, readBack)
}

func TestPagedReadsBackUnflushedWrites(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryPageDevice(32, 2)
	require.NoError(t, err)

	paged, err := backend.NewPaged(logger, device)
	require.NoError(t, err)

	require.NoError(t, paged.WriteRange(4, []byte{7, 8, 9}))

	readBack := make([]byte, 3)
	require.NoError(t, paged.ReadRange(4, readBack))
	require.Equal(t, []byte{7, 8, 9}, readBack)

	// The device itself has not been touched by a commit yet
	require.Equal(t, 0, device.AccessStatistics().Erases)
	require.Equal(t, 0, device.AccessStatistics().Writes)
}

func TestPagedDestroyCommits(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryPageDevice(16, 2)
	require.NoError(t, err)

	paged, err := backend.NewPaged(logger, device)
	require.NoError(t, err)

	require.NoError(t, paged.WriteRange(3, []byte{0x5A}))
	require.NoError(t, paged.Destroy())
	require.Equal(t, 1, device.AccessStatistics().Erases)

	page := make([]byte, 16)
	require.NoError(t, device.ReadPage(0, page))
	require.Equal(t, byte(0x5A), page[3])
}

func TestPagedOutOfRange(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	device, err := backend.NewMemoryPageDevice(16, 2)
	require.NoError(t, err)

	paged, err := backend.NewPaged(logger, device)
	require.NoError(t, err)

	err = paged.WriteRange(30, make([]byte, 4))
	require.ErrorIs(t, err, nvvar.ErrOutOfRange)

	err = paged.ReadRange(32, make([]byte, 1))
	require.ErrorIs(t, err, nvvar.ErrOutOfRange)
}

type oddPageDevice struct {
	backend.PageDevice
}

func (d oddPageDevice) PageSize() int  { return 24 }
func (d oddPageDevice) PageCount() int { return 4 }

func TestNewPagedRejectsOddPageSize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	_, err := backend.NewPaged(logger, oddPageDevice{})
	require.ErrorIs(t, err, nvvar.PowerOfTwoError)
}
