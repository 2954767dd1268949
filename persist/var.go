package persist

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/firmkit/nvvar"
)

// Var is a persistent variable holding a fixed-size plain value. Every Load and Store touches the
// backend; nothing is cached in memory. Use Buffered for values that are read frequently.
//
// Only self-contained value types with a fixed byte representation are supported: sized integers,
// floats, booleans, arrays, and structs composed of these. Slices, maps, strings, pointers, and
// plain int/uint are rejected at construction, since the stored byte image must be meaningful
// across reboots without any live pointers.
type Var[T any] struct {
	layout  *Layout
	address int
	size    int
}

// NewVar declares a persistent variable under the provided name, reserving the next free byte
// range for it. If and only if the store is on its first boot, the initial value is persisted
// immediately; on every later boot the bytes already on the device are left untouched.
func NewVar[T any](layout *Layout, name string, initial T) (*Var[T], error) {
	if layout == nil {
		return nil, errors.New("attempted to declare a variable with no layout")
	}

	size := binary.Size(initial)
	if size < 0 {
		return nil, errors.Wrapf(nvvar.ErrNotFixedSize, "%T", initial)
	}

	address, err := layout.Reserve(name, size)
	if err != nil {
		return nil, err
	}

	variable := &Var[T]{
		layout:  layout,
		address: address,
		size:    size,
	}

	first, err := layout.FirstBoot()
	if err != nil {
		return nil, err
	}
	if first {
		err = variable.Store(initial)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to persist the initial value of %q", name)
		}
	}

	return variable, nil
}

// Store serializes the value to its fixed-size little-endian representation and persists it
func (v *Var[T]) Store(value T) error {
	buffer := bytes.NewBuffer(make([]byte, 0, v.size))
	err := binary.Write(buffer, binary.LittleEndian, value)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize a %d-byte value", v.size)
	}

	return v.layout.store.WriteRange(v.address, buffer.Bytes())
}

// Load reads the persisted bytes and deserializes them into a value
func (v *Var[T]) Load() (T, error) {
	var value T

	raw := make([]byte, v.size)
	err := v.layout.store.ReadRange(v.address, raw)
	if err != nil {
		return value, err
	}

	err = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &value)
	if err != nil {
		return value, errors.Wrapf(err, "failed to deserialize a %d-byte value", v.size)
	}

	return value, nil
}

// Get is a convenience alias for Load
func (v *Var[T]) Get() (T, error) {
	return v.Load()
}

// Address retrieves the first byte of the range reserved for this variable
func (v *Var[T]) Address() int {
	return v.address
}

// Size retrieves the width in bytes of the range reserved for this variable
func (v *Var[T]) Size() int {
	return v.size
}
