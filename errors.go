package nvvar

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrOutOfRange is the error returned from backend reads and writes that touch bytes outside the
// device's address space. Correct use of a Layout never produces such a range, so receiving this
// error indicates a programming error in the consumer.
var ErrOutOfRange error = errors.New("byte range lies outside the device's address space")

// ErrOutOfSpace is the error returned from Layout.Reserve when the declared variables collectively
// exceed the device's capacity. This is a fatal configuration error: the firmware declares more
// persistent state than the part can hold.
var ErrOutOfSpace error = errors.New("reserved variables exceed the device's capacity")

// ErrDuplicateName is the error returned from Layout.Reserve when two variables are declared with
// the same name
var ErrDuplicateName error = errors.New("a variable with this name has already been reserved")

// ErrNotFixedSize is the error returned when a variable is declared with a value type that does not
// have a fixed byte representation (slices, maps, strings, pointers, or plain int/uint)
var ErrNotFixedSize error = errors.New("value type does not have a fixed byte size")

// ErrStaleLayout is the error returned from Layout.VerifyLayout when the fingerprint persisted by a
// previous firmware image does not match the current set of reservations. The bytes on the device
// were laid out by different declarations and must not be reinterpreted.
var ErrStaleLayout error = errors.New("persisted layout fingerprint does not match the declared variables")
