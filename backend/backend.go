package backend

import (
	"github.com/cockroachdb/errors"
	"github.com/firmkit/nvvar"
)

// Backend provides uniform byte-range access to a non-volatile medium. It hides whether the medium
// is natively byte-addressable or is erase-block flash that must be staged through a page buffer.
type Backend interface {
	// Capacity retrieves the total number of addressable bytes on the underlying device
	Capacity() int
	// ReadRange fills p with the bytes stored at [address, address+len(p))
	ReadRange(address int, p []byte) error
	// WriteRange persists p at [address, address+len(p)). Implementations are free to defer the
	// physical commit until Flush in order to amortize erase cycles.
	WriteRange(address int, p []byte) error
	// Flush commits any deferred writes to the physical medium. Implementations that write through
	// immediately may treat this as a no-op.
	Flush() error
}

func checkByteRange(address int, length int, capacity int) error {
	if address < 0 || length < 0 || address+length > capacity {
		return errors.Wrapf(nvvar.ErrOutOfRange, "range [%d, %d) on a device with capacity %d", address, address+length, capacity)
	}

	return nil
}
