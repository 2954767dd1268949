package backend

// ByteDevice is implemented by non-volatile media that can be read and programmed at single-byte
// granularity, such as a discrete EEPROM part or an MCU's data EEPROM region. Implementations
// report their capacity from platform capability data fixed at build time.
type ByteDevice interface {
	// Capacity retrieves the total number of addressable bytes on the device
	Capacity() int
	// ReadAt fills p with the bytes stored at [address, address+len(p))
	ReadAt(address int, p []byte) error
	// WriteAt programs p at [address, address+len(p))
	WriteAt(address int, p []byte) error
}

// PageDevice is implemented by erase-block flash media that can only be rewritten a whole page at
// a time, after erasing that page. The Paged backend emulates byte addressing on top of this
// interface through a single page buffer.
type PageDevice interface {
	// PageSize retrieves the size in bytes of a single erase page. It must be a power of two.
	PageSize() int
	// PageCount retrieves the number of erase pages on the device
	PageCount() int
	// ReadPage fills p, which must be PageSize bytes long, with the contents of the page at index
	ReadPage(index int, p []byte) error
	// ErasePage resets the page at index to the erased state
	ErasePage(index int) error
	// ProgramPage writes p, which must be PageSize bytes long, into the previously erased page at index
	ProgramPage(index int, p []byte) error
}
