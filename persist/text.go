package persist

import (
	"math"

	"github.com/cockroachdb/errors"
)

// textLenSize is the width in bytes of the length field stored before a Text variable's bytes
const textLenSize = 1

// Text is a persistent variable holding character data of up to a fixed maximum length. The
// reserved range holds a one-byte length field followed by maxLen bytes of character data; unused
// trailing bytes are undefined and never read back as part of the value.
//
// Store silently truncates over-length input to maxLen bytes. Callers that need round-trip
// fidelity must check the input length themselves.
type Text struct {
	layout  *Layout
	address int
	maxLen  int
}

// NewText declares a persistent text variable under the provided name, holding at most maxLen
// bytes. maxLen must fit the one-byte length field, so it cannot exceed 255. First-boot seeding
// follows NewVar: the initial text is persisted once, on the store's first boot only.
func NewText(layout *Layout, name string, maxLen int, initial string) (*Text, error) {
	if layout == nil {
		return nil, errors.New("attempted to declare a variable with no layout")
	}
	if maxLen < 1 || maxLen > math.MaxUint8 {
		return nil, errors.Newf("a text variable must hold between 1 and %d bytes, but %q was declared with %d", math.MaxUint8, name, maxLen)
	}

	address, err := layout.Reserve(name, textLenSize+maxLen)
	if err != nil {
		return nil, err
	}

	text := &Text{
		layout:  layout,
		address: address,
		maxLen:  maxLen,
	}

	first, err := layout.FirstBoot()
	if err != nil {
		return nil, err
	}
	if first {
		err = text.Store(initial)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to persist the initial value of %q", name)
		}
	}

	return text, nil
}

// Store persists the provided text, silently truncating it to the variable's maximum length
func (t *Text) Store(value string) error {
	if len(value) > t.maxLen {
		value = value[:t.maxLen]
	}

	raw := make([]byte, textLenSize+len(value))
	raw[0] = byte(len(value))
	copy(raw[textLenSize:], value)

	return t.layout.store.WriteRange(t.address, raw)
}

// Load reads the persisted text. A corrupted or never-initialized length field is clamped to the
// variable's maximum length, so a load never reads outside the reserved range.
func (t *Text) Load() (string, error) {
	var lengthField [textLenSize]byte
	err := t.layout.store.ReadRange(t.address, lengthField[:])
	if err != nil {
		return "", err
	}

	length := int(lengthField[0])
	if length > t.maxLen {
		length = t.maxLen
	}
	if length == 0 {
		return "", nil
	}

	raw := make([]byte, length)
	err = t.layout.store.ReadRange(t.address+textLenSize, raw)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// Get is a convenience alias for Load
func (t *Text) Get() (string, error) {
	return t.Load()
}

// Address retrieves the first byte of the range reserved for this variable
func (t *Text) Address() int {
	return t.address
}

// MaxLen retrieves the maximum number of bytes this variable can hold
func (t *Text) MaxLen() int {
	return t.maxLen
}

// Size retrieves the width in bytes of the range reserved for this variable, including the length
// field
func (t *Text) Size() int {
	return textLenSize + t.maxLen
}
