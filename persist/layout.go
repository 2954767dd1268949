// Package persist gives firmware-style applications persistent variables over non-volatile
// storage, without manual byte-offset bookkeeping. A Layout hands out non-overlapping byte ranges
// in declaration order and detects the first boot of a freshly programmed device, and the handle
// types (Var, Buffered, Text) read and write their reserved ranges through a backend.Backend.
//
// The package is single-threaded by design: declare every variable before performing any load or
// store, and before starting any concurrent tasks. Nothing protects the allocation cursor or the
// backend's page buffer from concurrent access.
package persist

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/firmkit/nvvar"
	"github.com/firmkit/nvvar/backend"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

const (
	// sentinelSize is the width in bytes of the boot magic stored at the start of the address space
	sentinelSize = 2
	// fingerprintSize is the width in bytes of the layout fingerprint stored after the boot magic
	// when Config.LayoutCheck is enabled
	fingerprintSize = 4

	// defaultBootMagic is the value used for first-boot detection when none is provided via
	// Config.BootMagic
	defaultBootMagic uint16 = 0xA55A
)

// Config contains optional settings when creating a Layout
type Config struct {
	// BootMagic overrides the sentinel value used for first-boot detection. Deploying a firmware
	// image with a different BootMagic forces the next boot to be treated as a first boot, which
	// reinitializes every variable. Leaving it zero selects the package default.
	BootMagic uint16

	// LayoutCheck reserves four additional bytes after the boot sentinel for a fingerprint of the
	// declared variable layout, maintained by VerifyLayout. It allows a firmware image whose
	// declarations shifted to detect that the persisted bytes belong to a different layout instead
	// of silently reinterpreting them.
	LayoutCheck bool
}

// Reservation describes a byte range handed out by a Layout
type Reservation struct {
	Name    string
	Address int
	Size    int
}

// Layout is a bump allocator over a backend's address space. It hands out non-overlapping byte
// ranges in the exact order Reserve is called, owns the reserved prefix used for first-boot
// detection, and never reclaims an address within a process run.
type Layout struct {
	logger *slog.Logger
	store  backend.Backend

	bootMagic   uint16
	layoutCheck bool

	cursor int

	firstBootKnown bool
	firstBoot      bool

	reservations []Reservation
	reservedName *swiss.Map[string, int]
}

// New creates a Layout over the provided backend
func New(logger *slog.Logger, store backend.Backend, config Config) (*Layout, error) {
	if store == nil {
		return nil, errors.New("attempted to create a layout with no backend")
	}
	if logger == nil {
		logger = slog.Default()
	}

	bootMagic := config.BootMagic
	if bootMagic == 0 {
		bootMagic = defaultBootMagic
	}

	prefix := sentinelSize
	if config.LayoutCheck {
		prefix += fingerprintSize
	}
	if prefix > store.Capacity() {
		return nil, errors.Wrapf(nvvar.ErrOutOfSpace, "the device's capacity %d cannot hold the %d-byte reserved prefix", store.Capacity(), prefix)
	}

	return &Layout{
		logger:       logger,
		store:        store,
		bootMagic:    bootMagic,
		layoutCheck:  config.LayoutCheck,
		cursor:       prefix,
		reservedName: swiss.NewMap[string, int](42),
	}, nil
}

// Reserve returns the address of the next free byte range of the requested size and advances the
// allocation cursor past it. It must be called exactly once per variable, before any load or store
// on that variable. Addresses depend only on the order of Reserve calls and the requested sizes,
// never on stored content, so a firmware image reproduces the same layout on every run.
//
// Reserve returns an error wrapping nvvar.ErrOutOfSpace when the declared variables collectively
// exceed the device's capacity, and an error wrapping nvvar.ErrDuplicateName when the name has
// already been reserved.
func (l *Layout) Reserve(name string, size int) (int, error) {
	if name == "" {
		return 0, errors.New("attempted to reserve a byte range with no name")
	}
	if size < 1 {
		return 0, errors.Newf("attempted to reserve %d bytes for %q", size, name)
	}
	if _, ok := l.reservedName.Get(name); ok {
		return 0, errors.Wrapf(nvvar.ErrDuplicateName, "%q", name)
	}
	if size > l.store.Capacity()-l.cursor {
		return 0, errors.Wrapf(nvvar.ErrOutOfSpace,
			"reserving %d bytes for %q at address %d, but the device's capacity is %d",
			size, name, l.cursor, l.store.Capacity())
	}

	address := l.cursor
	l.cursor += size
	l.reservedName.Put(name, len(l.reservations))
	l.reservations = append(l.reservations, Reservation{
		Name:    name,
		Address: address,
		Size:    size,
	})

	nvvar.DebugValidate(l)
	return address, nil
}

// FirstBoot reports whether this is the first boot against the current backing store. On the first
// call it reads the boot sentinel from the backend: a mismatch against the configured magic means
// either a genuinely blank device or a deliberately changed magic, and in that case the magic is
// written back immediately so the next run reports false. Subsequent calls within the same run
// return the cached result without touching the backend.
func (l *Layout) FirstBoot() (bool, error) {
	if l.firstBootKnown {
		return l.firstBoot, nil
	}

	var sentinel [sentinelSize]byte
	err := l.store.ReadRange(0, sentinel[:])
	if err != nil {
		return false, errors.Wrap(err, "failed to read the boot sentinel")
	}

	stored := binary.LittleEndian.Uint16(sentinel[:])
	if stored == l.bootMagic {
		l.firstBoot = false
		l.firstBootKnown = true
		return false, nil
	}

	binary.LittleEndian.PutUint16(sentinel[:], l.bootMagic)
	err = l.store.WriteRange(0, sentinel[:])
	if err != nil {
		return false, errors.Wrap(err, "failed to write the boot sentinel")
	}

	l.logger.Debug("first boot detected",
		slog.Int("storedSentinel", int(stored)),
		slog.Int("bootMagic", int(l.bootMagic)))

	l.firstBoot = true
	l.firstBootKnown = true
	return true, nil
}

// VerifyLayout compares the fingerprint of the declared reservations against the fingerprint
// persisted by the previous firmware image, and persists the current fingerprint when the store is
// on its first boot. It must be called after every variable has been declared, and only when the
// Layout was created with Config.LayoutCheck.
//
// An error wrapping nvvar.ErrStaleLayout means the persisted bytes were laid out by different
// declarations (a variable was inserted, removed, or resized somewhere other than the end) and
// must not be reinterpreted. The caller decides the recovery policy, typically forcing a first
// boot by deploying a new BootMagic.
func (l *Layout) VerifyLayout() error {
	if !l.layoutCheck {
		return errors.New("the layout was created without Config.LayoutCheck")
	}

	first, err := l.FirstBoot()
	if err != nil {
		return err
	}

	declared := l.fingerprint()
	var buf [fingerprintSize]byte
	if first {
		binary.LittleEndian.PutUint32(buf[:], declared)
		err = l.store.WriteRange(sentinelSize, buf[:])
		if err != nil {
			return errors.Wrap(err, "failed to write the layout fingerprint")
		}

		return nil
	}

	err = l.store.ReadRange(sentinelSize, buf[:])
	if err != nil {
		return errors.Wrap(err, "failed to read the layout fingerprint")
	}

	stored := binary.LittleEndian.Uint32(buf[:])
	if stored != declared {
		return errors.Wrapf(nvvar.ErrStaleLayout, "stored fingerprint is %#08x, but the declared variables fingerprint to %#08x", stored, declared)
	}

	return nil
}

func (l *Layout) fingerprint() uint32 {
	hash := crc32.NewIEEE()
	var size [4]byte
	for _, reservation := range l.reservations {
		_, _ = hash.Write([]byte(reservation.Name))
		binary.LittleEndian.PutUint32(size[:], uint32(reservation.Size))
		_, _ = hash.Write(size[:])
	}

	return hash.Sum32()
}

// Capacity retrieves the total number of addressable bytes on the underlying device
func (l *Layout) Capacity() int {
	return l.store.Capacity()
}

// UsedBytes retrieves the number of bytes consumed so far, including the reserved prefix
func (l *Layout) UsedBytes() int {
	return l.cursor
}

// FreeBytes retrieves the number of bytes still available for reservations
func (l *Layout) FreeBytes() int {
	return l.store.Capacity() - l.cursor
}

// Flush commits any writes the backend has deferred. Paged backends require a flush before
// power-off for the final dirty page to become durable.
func (l *Layout) Flush() error {
	return l.store.Flush()
}

// Reservations retrieves a copy of every byte range handed out so far, in declaration order
func (l *Layout) Reservations() []Reservation {
	reservations := make([]Reservation, len(l.reservations))
	copy(reservations, l.reservations)
	return reservations
}

// Lookup retrieves the reservation declared under the provided name, if any
func (l *Layout) Lookup(name string) (Reservation, bool) {
	index, ok := l.reservedName.Get(name)
	if !ok {
		return Reservation{}, false
	}

	return l.reservations[index], true
}

// AddDetailedStatistics sums this layout's reservation statistics into the statistics currently
// present in the provided nvvar.DetailedStatistics object
func (l *Layout) AddDetailedStatistics(stats *nvvar.DetailedStatistics) {
	stats.SystemBytes += l.reservedPrefix()
	stats.CapacityBytes += l.store.Capacity()
	for _, reservation := range l.reservations {
		stats.AddReservation(reservation.Size)
	}
}

// BuildStatsString builds a JSON string containing details about the current state of this layout.
// If detailed is true, the string will include a record for every reservation.
func (l *Layout) BuildStatsString(detailed bool) string {
	writer := jwriter.NewWriter()

	obj := writer.Object()
	obj.Name("Capacity").Int(l.store.Capacity())
	obj.Name("SystemBytes").Int(l.reservedPrefix())
	obj.Name("UsedBytes").Int(l.cursor)
	obj.Name("FreeBytes").Int(l.FreeBytes())
	obj.Name("Reservations").Int(len(l.reservations))
	if l.firstBootKnown {
		obj.Name("FirstBoot").Bool(l.firstBoot)
	}

	if detailed {
		arrState := obj.Name("Variables").Array()
		for _, reservation := range l.reservations {
			resObj := arrState.Object()
			resObj.Name("Name").String(reservation.Name)
			resObj.Name("Address").Int(reservation.Address)
			resObj.Name("Size").Int(reservation.Size)
			resObj.End()
		}
		arrState.End()
	}

	obj.End()
	return string(writer.Bytes())
}

// Validate performs internal consistency checks on the layout. When the layout is functioning
// correctly, it should not be possible for this method to return an error, but it may assist in
// diagnosing issues.
func (l *Layout) Validate() error {
	if l.store == nil {
		return errors.New("no valid backend for this layout")
	}
	if l.cursor < l.reservedPrefix() {
		return errors.Newf("the allocation cursor %d lies inside the %d-byte reserved prefix", l.cursor, l.reservedPrefix())
	}
	if l.cursor > l.store.Capacity() {
		return errors.Newf("the allocation cursor %d exceeds the device's capacity %d", l.cursor, l.store.Capacity())
	}

	expected := l.reservedPrefix()
	for i, reservation := range l.reservations {
		if reservation.Address != expected {
			return errors.Newf("reservation %d (%q) begins at address %d, but the previous reservation ended at %d", i, reservation.Name, reservation.Address, expected)
		}
		if reservation.Size < 1 {
			return errors.Newf("reservation %d (%q) has an invalid size %d", i, reservation.Name, reservation.Size)
		}

		expected += reservation.Size
	}

	if expected != l.cursor {
		return errors.Newf("the reservations end at address %d, but the allocation cursor is %d", expected, l.cursor)
	}

	return nil
}

func (l *Layout) reservedPrefix() int {
	prefix := sentinelSize
	if l.layoutCheck {
		prefix += fingerprintSize
	}
	return prefix
}
