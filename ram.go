// ram.go - Flat RAM device.
//
// Grounded on original_source/src/lib/core/device_ram.cpp/.hpp: a plain
// byte slice, zero-initialized unless seeded, with bounds-checked
// read/write. Out-of-range access silently returns 0 / no-ops rather than
// the reference's thrown Error, since Device.Read/Write (device.go) have
// no error-return path at all; an out-of-range access here means
// AddressSpace mis-sized the bank, not a condition worth its own error path.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"io"
)

// RAM is a flat, byte-addressable memory device.
type RAM struct {
	label string
	data  []uint8
}

// NewRAM returns a zero-initialized RAM device of the given size.
func NewRAM(label string, size uint16) *RAM {
	return &RAM{label: label, data: make([]uint8, size)}
}

// NewRAMFromBytes returns a RAM device pre-seeded with data. The device's
// size is len(data).
func NewRAMFromBytes(label string, data []uint8) *RAM {
	buf := make([]uint8, len(data))
	copy(buf, data)
	return &RAM{label: label, data: buf}
}

// Read implements Device. mode is ignored: RAM reads have no side effects,
// so Read and Peek behave identically.
func (r *RAM) Read(addr uint16, mode ReadMode) uint8 {
	if int(addr) >= len(r.data) {
		return 0
	}
	return r.data[addr]
}

// Write implements Device.
func (r *RAM) Write(addr uint16, value uint8) {
	if int(addr) >= len(r.data) {
		return
	}
	r.data[addr] = value
}

// Size implements Device.
func (r *RAM) Size() uint16 { return uint16(len(r.data)) }

// Name implements Device.
func (r *RAM) Name() string {
	if r.label == "" {
		return "RAM"
	}
	return r.label
}

// Dump implements Device.
func (r *RAM) Dump(w io.Writer) {
	for base := 0; base < len(r.data); base += 16 {
		end := base + 16
		if end > len(r.data) {
			end = len(r.data)
		}
		fmt.Fprintf(w, "$%04X:", base)
		for _, b := range r.data[base:end] {
			fmt.Fprintf(w, " %02X", b)
		}
		fmt.Fprintln(w)
	}
}

var _ Device = (*RAM)(nil)
