package backend

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Direct is a Backend for byte-addressable media. Writes go straight to the device, but each byte
// is programmed only if it differs from the byte currently stored, to reduce physical write cycles
// on media with limited endurance.
type Direct struct {
	logger *slog.Logger
	device ByteDevice
}

var _ Backend = &Direct{}

// NewDirect creates a Direct backend over the provided ByteDevice
func NewDirect(logger *slog.Logger, device ByteDevice) (*Direct, error) {
	if device == nil {
		return nil, errors.New("attempted to create a Direct backend with no device")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Direct{
		logger: logger,
		device: device,
	}, nil
}

// Capacity retrieves the total number of addressable bytes on the underlying device
func (b *Direct) Capacity() int {
	return b.device.Capacity()
}

// ReadRange fills p with the bytes stored at [address, address+len(p))
func (b *Direct) ReadRange(address int, p []byte) error {
	err := checkByteRange(address, len(p), b.device.Capacity())
	if err != nil {
		return err
	}

	return b.device.ReadAt(address, p)
}

// WriteRange persists p at [address, address+len(p)). Each byte is compared against the currently
// stored byte and programmed only when it differs.
func (b *Direct) WriteRange(address int, p []byte) error {
	err := checkByteRange(address, len(p), b.device.Capacity())
	if err != nil {
		return err
	}

	current := make([]byte, len(p))
	err = b.device.ReadAt(address, current)
	if err != nil {
		return err
	}

	for i := 0; i < len(p); i++ {
		if current[i] == p[i] {
			continue
		}

		err = b.device.WriteAt(address+i, p[i:i+1])
		if err != nil {
			return errors.Wrapf(err, "failed to program byte at address %d", address+i)
		}
	}

	return nil
}

// Flush is a no-op: the Direct backend writes through on every WriteRange.
func (b *Direct) Flush() error {
	return nil
}

// Validate performs internal consistency checks on the backend
func (b *Direct) Validate() error {
	if b.device == nil {
		return errors.New("no valid device for this backend")
	}
	if b.device.Capacity() < 1 {
		return errors.New("this backend's device has an invalid capacity")
	}

	return nil
}
