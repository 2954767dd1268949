package backend

import (
	"github.com/cockroachdb/errors"
	"github.com/firmkit/nvvar"
)

// erasedByte is the value every byte of a simulated device holds before it is first programmed
const erasedByte byte = 0xFF

// MemoryByteDevice is a ByteDevice backed by a plain byte slice. It simulates a byte-addressable
// EEPROM part for host-side tests and examples, and counts the physical operations issued to it.
type MemoryByteDevice struct {
	data  []byte
	stats nvvar.AccessStatistics
}

var _ ByteDevice = &MemoryByteDevice{}

// NewMemoryByteDevice creates a simulated byte-addressable device holding capacity bytes, all in
// the erased state
func NewMemoryByteDevice(capacity int) (*MemoryByteDevice, error) {
	if capacity < 1 {
		return nil, errors.Newf("a device cannot have a capacity of %d bytes", capacity)
	}

	device := &MemoryByteDevice{
		data: make([]byte, capacity),
	}
	device.Erase()
	return device, nil
}

// Capacity retrieves the total number of addressable bytes on the device
func (d *MemoryByteDevice) Capacity() int {
	return len(d.data)
}

// ReadAt fills p with the bytes stored at [address, address+len(p))
func (d *MemoryByteDevice) ReadAt(address int, p []byte) error {
	err := checkByteRange(address, len(p), len(d.data))
	if err != nil {
		return err
	}

	d.stats.Reads++
	copy(p, d.data[address:address+len(p)])
	return nil
}

// WriteAt programs p at [address, address+len(p))
func (d *MemoryByteDevice) WriteAt(address int, p []byte) error {
	err := checkByteRange(address, len(p), len(d.data))
	if err != nil {
		return err
	}

	d.stats.Writes++
	copy(d.data[address:address+len(p)], p)
	return nil
}

// Erase resets every byte on the device to the erased state, simulating a blank part fresh from
// the factory
func (d *MemoryByteDevice) Erase() {
	for i := range d.data {
		d.data[i] = erasedByte
	}
}

// AccessStatistics retrieves the physical operation counts accumulated since the device was
// created or the counters were last cleared
func (d *MemoryByteDevice) AccessStatistics() nvvar.AccessStatistics {
	return d.stats
}

// ClearAccessStatistics resets the physical operation counters
func (d *MemoryByteDevice) ClearAccessStatistics() {
	d.stats.Clear()
}

// MemoryPageDevice is a PageDevice backed by a byte slice per page. It simulates erase-block flash
// for host-side tests and examples, and counts the physical operations issued to it.
type MemoryPageDevice struct {
	pages    [][]byte
	pageSize int
	stats    nvvar.AccessStatistics
}

var _ PageDevice = &MemoryPageDevice{}

// NewMemoryPageDevice creates a simulated flash device with pageCount pages of pageSize bytes,
// all in the erased state. The page size must be a power of two.
func NewMemoryPageDevice(pageSize int, pageCount int) (*MemoryPageDevice, error) {
	if pageSize < 1 {
		return nil, errors.Newf("a device cannot have a page size of %d bytes", pageSize)
	}
	err := nvvar.CheckPow2(pageSize, "page size")
	if err != nil {
		return nil, err
	}
	if pageCount < 1 {
		return nil, errors.Newf("a device cannot have %d pages", pageCount)
	}

	pages := make([][]byte, pageCount)
	for i := 0; i < pageCount; i++ {
		pages[i] = make([]byte, pageSize)
		for j := range pages[i] {
			pages[i][j] = erasedByte
		}
	}

	return &MemoryPageDevice{
		pages:    pages,
		pageSize: pageSize,
	}, nil
}

// PageSize retrieves the size in bytes of a single erase page
func (d *MemoryPageDevice) PageSize() int {
	return d.pageSize
}

// PageCount retrieves the number of erase pages on the device
func (d *MemoryPageDevice) PageCount() int {
	return len(d.pages)
}

// ReadPage fills p, which must be PageSize bytes long, with the contents of the page at index
func (d *MemoryPageDevice) ReadPage(index int, p []byte) error {
	err := d.checkPage(index, p)
	if err != nil {
		return err
	}

	d.stats.Reads++
	copy(p, d.pages[index])
	return nil
}

// ErasePage resets the page at index to the erased state
func (d *MemoryPageDevice) ErasePage(index int) error {
	if index < 0 || index >= len(d.pages) {
		return errors.Wrapf(nvvar.ErrOutOfRange, "page index %d on a device with %d pages", index, len(d.pages))
	}

	d.stats.Erases++
	for i := range d.pages[index] {
		d.pages[index][i] = erasedByte
	}
	return nil
}

// ProgramPage writes p, which must be PageSize bytes long, into the page at index
func (d *MemoryPageDevice) ProgramPage(index int, p []byte) error {
	err := d.checkPage(index, p)
	if err != nil {
		return err
	}

	d.stats.Writes++
	copy(d.pages[index], p)
	return nil
}

// AccessStatistics retrieves the physical operation counts accumulated since the device was
// created or the counters were last cleared
func (d *MemoryPageDevice) AccessStatistics() nvvar.AccessStatistics {
	return d.stats
}

// ClearAccessStatistics resets the physical operation counters
func (d *MemoryPageDevice) ClearAccessStatistics() {
	d.stats.Clear()
}

func (d *MemoryPageDevice) checkPage(index int, p []byte) error {
	if index < 0 || index >= len(d.pages) {
		return errors.Wrapf(nvvar.ErrOutOfRange, "page index %d on a device with %d pages", index, len(d.pages))
	}
	if len(p) != d.pageSize {
		return errors.Newf("the provided buffer is %d bytes, but the device's page size is %d", len(p), d.pageSize)
	}

	return nil
}
