package backend

import (
	"github.com/cockroachdb/errors"
	"github.com/firmkit/nvvar"
	"golang.org/x/exp/slog"
)

// Paged is a Backend that emulates byte addressing on top of erase-block flash. It stages all
// access through a single page-sized buffer: reads and writes that touch a page other than the one
// currently cached first commit the dirty cached page (erase, then program the whole page) and
// then load the requested page. Writes land in the buffer and are not durable until the page is
// committed, either by a subsequent page switch or by an explicit Flush.
//
// Flash parts amortize poorly on single-byte writes and require a whole-page erase before rewrite,
// so batching by page is mandatory for acceptable wear and latency.
type Paged struct {
	logger *slog.Logger
	device PageDevice

	buffer     []byte
	cachedPage int
	dirty      bool
}

var _ Backend = &Paged{}

// NewPaged creates a Paged backend over the provided PageDevice. The device's page size must be a
// power of two.
func NewPaged(logger *slog.Logger, device PageDevice) (*Paged, error) {
	if device == nil {
		return nil, errors.New("attempted to create a Paged backend with no device")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pageSize := device.PageSize()
	if pageSize < 1 {
		return nil, errors.Newf("the device reports an invalid page size %d", pageSize)
	}
	err := nvvar.CheckPow2(pageSize, "page size")
	if err != nil {
		return nil, err
	}
	if device.PageCount() < 1 {
		return nil, errors.Newf("the device reports an invalid page count %d", device.PageCount())
	}

	return &Paged{
		logger:     logger,
		device:     device,
		buffer:     make([]byte, pageSize),
		cachedPage: -1,
	}, nil
}

// Capacity retrieves the total number of addressable bytes on the underlying device
func (b *Paged) Capacity() int {
	return b.device.PageSize() * b.device.PageCount()
}

// ReadRange fills p with the bytes stored at [address, address+len(p)). Bytes that live in the
// cached page are served from the page buffer, so unflushed writes read back correctly.
func (b *Paged) ReadRange(address int, p []byte) error {
	err := checkByteRange(address, len(p), b.Capacity())
	if err != nil {
		return err
	}

	pageSize := b.device.PageSize()
	for len(p) > 0 {
		pageStart := nvvar.AlignDown(address, uint(pageSize))
		offset := address - pageStart

		count := pageSize - offset
		if count > len(p) {
			count = len(p)
		}

		err = b.loadPage(pageStart / pageSize)
		if err != nil {
			return err
		}

		copy(p[:count], b.buffer[offset:offset+count])
		address += count
		p = p[count:]
	}

	return nil
}

// WriteRange stores p at [address, address+len(p)) in the page buffer. The affected page is not
// committed to the device until the buffer moves to a different page or Flush is called.
func (b *Paged) WriteRange(address int, p []byte) error {
	err := checkByteRange(address, len(p), b.Capacity())
	if err != nil {
		return err
	}

	pageSize := b.device.PageSize()
	for len(p) > 0 {
		pageStart := nvvar.AlignDown(address, uint(pageSize))
		offset := address - pageStart

		count := pageSize - offset
		if count > len(p) {
			count = len(p)
		}

		err = b.loadPage(pageStart / pageSize)
		if err != nil {
			return err
		}

		copy(b.buffer[offset:offset+count], p[:count])
		b.dirty = true
		address += count
		p = p[count:]
	}

	return nil
}

// Flush commits the cached page to the device if it holds uncommitted writes
func (b *Paged) Flush() error {
	if !b.dirty {
		return nil
	}

	err := b.device.ErasePage(b.cachedPage)
	if err != nil {
		return errors.Wrapf(err, "failed to erase page %d", b.cachedPage)
	}

	err = b.device.ProgramPage(b.cachedPage, b.buffer)
	if err != nil {
		return errors.Wrapf(err, "failed to program page %d", b.cachedPage)
	}

	b.dirty = false
	b.logger.Debug("committed page", slog.Int("page", b.cachedPage))
	return nil
}

// Destroy commits any uncommitted writes and releases the backend. The backend must not be used
// after it has been destroyed.
func (b *Paged) Destroy() error {
	if b.device == nil {
		panic("attempting to destroy a paged backend that was already destroyed")
	}

	if b.dirty {
		b.logger.Debug("destroying a paged backend with uncommitted writes", slog.Int("page", b.cachedPage))
	}

	err := b.Flush()
	if err != nil {
		b.logger.Error("error attempting to commit the cached page during destroy", slog.Any("error", err))
		return err
	}

	b.device = nil
	b.buffer = nil
	return nil
}

func (b *Paged) loadPage(index int) error {
	if index == b.cachedPage {
		return nil
	}

	err := b.Flush()
	if err != nil {
		return err
	}

	err = b.device.ReadPage(index, b.buffer)
	if err != nil {
		return errors.Wrapf(err, "failed to read page %d", index)
	}

	b.cachedPage = index
	return nil
}

// Validate performs internal consistency checks on the backend
func (b *Paged) Validate() error {
	if b.device == nil {
		return errors.New("no valid device for this backend")
	}
	if len(b.buffer) != b.device.PageSize() {
		return errors.Newf("the page buffer is %d bytes, but the device's page size is %d", len(b.buffer), b.device.PageSize())
	}
	if b.cachedPage < -1 || b.cachedPage >= b.device.PageCount() {
		return errors.Newf("the cached page index %d does not identify a page on the device", b.cachedPage)
	}
	if b.dirty && b.cachedPage < 0 {
		return errors.New("the page buffer is dirty, but no page is cached")
	}

	return nil
}
