// device.go - Uniform contract for any bus-mapped unit.
//
// Grounded on memory_bus.go's MemoryDevice interface shape, generalized per
// spec.md §4.1 and cross-checked against original_source/src/core/device.hpp:
// peek is a distinct, non-mutating entry point from read, used by the
// monitor and by AddressSpace.peek so that inspecting a device never
// perturbs its state (e.g. a collision register that clears on read must
// not clear when a debugger merely peeks it).

package core

import "io"

// ReadMode distinguishes a normal bus read from a non-mutating peek.
// Devices whose read has side effects (clear-on-read registers) must check
// this and suppress the side effect when mode is Peek.
type ReadMode int

const (
	Read ReadMode = iota
	Peek
)

// Device is the uniform contract every bus-mapped unit implements.
type Device interface {
	// Read returns the byte at the device-local address addr. If mode is
	// Peek the device must not mutate any state as a result of the call.
	Read(addr uint16, mode ReadMode) uint8

	// Write stores value at the device-local address addr.
	Write(addr uint16, value uint8)

	// Size returns the number of addressable bytes this device declares.
	Size() uint16

	// Name returns a short label used by AddressSpace.Dump.
	Name() string

	// Dump writes a human-readable description of the device's state to w.
	Dump(w io.Writer)
}
