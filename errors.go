// errors.go - Sentinel error kinds shared across the emulation core.
//
// The core distinguishes errors by behavior, not by type: recoverable
// errors (InvalidArgument, InvalidNumber, IOError) bubble up to a
// user-facing boundary and are reported in place. ErrInvalidAddress names
// the InvalidAddress kind, but nothing in this package returns it:
// AddressSpace masks every address into range and panics when a bank has
// no device mapped, and RAM ignores out-of-range offsets, so no error
// reaches the Clock. InternalError conditions (invariant violations) are not
// returned as errors at all - they panic, consistent with "terminates the
// process with a diagnostic".

package core

import "errors"

// ErrInvalidAddress names the error kind for an address outside the bounds
// a Device declared for itself. No function in this package returns it.
var ErrInvalidAddress = errors.New("invalid address")

// ErrInvalidArgument is returned by monitor command parsing when a value
// or register name does not match any recognized form.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidNumber is returned when a numeric literal fails to parse in
// its indicated base.
var ErrInvalidNumber = errors.New("invalid number")

// ErrIO is returned when a palette, binary load, or binary save file
// cannot be opened, read, written, or is malformed.
var ErrIO = errors.New("i/o error")
