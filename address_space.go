// address_space.go - Banked 16-bit address space.
//
// Generalizes memory_bus.go's IORegion/page-bitmap routing down to the
// simpler fixed-bank-size model spec.md §4.1 calls for: every address in
// [0, mask] always routes to some Device in both the read and write maps
// (no holes), rather than memory_bus.go's sparse per-page mapping table
// layered over a flat byte slice.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"io"
)

// deviceMapEntry pairs a Device with the start offset it should see added
// to the bank-local address before translation (spec.md §3 DeviceMap
// entry).
type deviceMapEntry struct {
	device      Device
	startOffset uint16
}

// AddressSpace routes 16-bit bus transactions through fixed-size banks to
// Devices, and latches the most recently transacted (address, data) pair
// as the address/data bus shadow.
//
// Invariant: bankSize * len(readMap) == mask+1, bankSize is a power of two.
// Invariant: every bank index has a non-nil entry in both readMap and
// writeMap - there are no unmapped holes.
type AddressSpace struct {
	bankSize  uint16
	bankShift uint
	bankMask  uint16
	mask      uint16

	readMap  []deviceMapEntry
	writeMap []deviceMapEntry

	addressBus uint16
	dataBus    uint8
}

// NewAddressSpace creates an address space of bankCount banks of bankSize
// bytes each. bankSize must be a power of two; the address mask is set to
// bankSize*bankCount - 1. The read and write maps start out with no
// entries - callers must map every bank before using the space, or reads
// and writes to unmapped banks will panic (an InternalError per spec.md §7:
// an unmapped bank is an invariant violation, not a runtime path).
func NewAddressSpace(bankSize uint16, bankCount int) *AddressSpace {
	if bankSize == 0 || bankSize&(bankSize-1) != 0 {
		panic(fmt.Sprintf("address_space: bank size %d is not a power of two", bankSize))
	}
	shift := uint(0)
	for v := bankSize; v > 1; v >>= 1 {
		shift++
	}
	total := uint32(bankSize) * uint32(bankCount)
	if total == 0 || total > 0x10000 {
		panic(fmt.Sprintf("address_space: bank_size*bank_count = %d out of 16-bit range", total))
	}
	return &AddressSpace{
		bankSize:  bankSize,
		bankShift: shift,
		bankMask:  bankSize - 1,
		mask:      uint16(total - 1),
		readMap:   make([]deviceMapEntry, bankCount),
		writeMap:  make([]deviceMapEntry, bankCount),
	}
}

// Mask returns the address mask (mask+1 is the total addressable size).
func (as *AddressSpace) Mask() uint16 { return as.mask }

// BankCount returns the number of banks.
func (as *AddressSpace) BankCount() int { return len(as.readMap) }

// MapReadBank assigns dev to bank for reads, with the given device-local
// start offset.
func (as *AddressSpace) MapReadBank(bank int, dev Device, startOffset uint16) {
	as.readMap[bank] = deviceMapEntry{device: dev, startOffset: startOffset}
}

// MapWriteBank assigns dev to bank for writes, with the given device-local
// start offset.
func (as *AddressSpace) MapWriteBank(bank int, dev Device, startOffset uint16) {
	as.writeMap[bank] = deviceMapEntry{device: dev, startOffset: startOffset}
}

// MapBank is a convenience that maps the same device/offset for both read
// and write.
func (as *AddressSpace) MapBank(bank int, dev Device, startOffset uint16) {
	as.MapReadBank(bank, dev, startOffset)
	as.MapWriteBank(bank, dev, startOffset)
}

func (as *AddressSpace) decode(addr uint16) (bank int, offset uint16) {
	a := addr & as.mask
	return int(a >> as.bankShift), a & as.bankMask
}

// Read decodes addr, routes to the mapped Device's Read, and - unless mode
// is Peek - latches the translated device-local address and the returned
// data into the address/data bus shadows.
func (as *AddressSpace) Read(addr uint16, mode ReadMode) uint8 {
	bank, offset := as.decode(addr)
	entry := as.readMap[bank]
	if entry.device == nil {
		panic(fmt.Sprintf("address_space: bank %d has no device mapped for read", bank))
	}
	devAddr := entry.startOffset + offset
	data := entry.device.Read(devAddr, mode)
	if mode != Peek {
		as.addressBus = devAddr
		as.dataBus = data
	}
	return data
}

// Peek is a synonym for Read(addr, Peek); it never disturbs the bus
// shadows.
func (as *AddressSpace) Peek(addr uint16) uint8 {
	return as.Read(addr, Peek)
}

// Write decodes addr, routes to the mapped Device's Write, and always
// latches both bus shadows before delegating.
func (as *AddressSpace) Write(addr uint16, value uint8) {
	bank, offset := as.decode(addr)
	entry := as.writeMap[bank]
	if entry.device == nil {
		panic(fmt.Sprintf("address_space: bank %d has no device mapped for write", bank))
	}
	devAddr := entry.startOffset + offset
	as.addressBus = devAddr
	as.dataBus = value
	entry.device.Write(devAddr, value)
}

// AddressBus returns the most recently latched translated device address.
func (as *AddressSpace) AddressBus() uint16 { return as.addressBus }

// DataBus returns the most recently latched data value.
func (as *AddressSpace) DataBus() uint8 { return as.dataBus }

// Dump writes a human-readable map of banks and device labels to w.
func (as *AddressSpace) Dump(w io.Writer) {
	fmt.Fprintf(w, "AddressSpace: mask=$%04X bank_size=$%04X banks=%d\n", as.mask, as.bankSize, len(as.readMap))
	for i, entry := range as.readMap {
		base := uint32(i) * uint32(as.bankSize)
		name := "<unmapped>"
		if entry.device != nil {
			name = entry.device.Name()
		}
		fmt.Fprintf(w, "  bank %2d  $%04X-$%04X  -> %s (+$%04X)\n",
			i, base, base+uint32(as.bankSize)-1, name, entry.startOffset)
	}
}
