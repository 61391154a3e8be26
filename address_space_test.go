package core

import "testing"

func TestAddressSpaceRoutesToMappedBank(t *testing.T) {
	lo := NewRAM("LO", 0x100)
	hi := NewRAM("HI", 0x100)
	as := NewAddressSpace(0x100, 2)
	as.MapBank(0, lo, 0)
	as.MapBank(1, hi, 0)

	as.Write(0x0010, 0xAA)
	as.Write(0x0110, 0xBB)

	if got := as.Read(0x0010, Read); got != 0xAA {
		t.Fatalf("low bank read = 0x%02X, want 0xAA", got)
	}
	if got := as.Read(0x0110, Read); got != 0xBB {
		t.Fatalf("high bank read = 0x%02X, want 0xBB", got)
	}
	// Each bank is independent storage.
	if got := lo.data[0x10]; got != 0xAA {
		t.Fatalf("lo device storage = 0x%02X, want 0xAA", got)
	}
}

func TestAddressSpaceStartOffsetTranslatesDeviceLocalAddress(t *testing.T) {
	dev := NewRAM("DEV", 0x200)
	as := NewAddressSpace(0x100, 1)
	as.MapBank(0, dev, 0x100)

	as.Write(0x0005, 0x42)

	if got := dev.data[0x105]; got != 0x42 {
		t.Fatalf("device-local address = 0x%02X at 0x105, want 0x42", got)
	}
}

func TestAddressSpacePeekDoesNotLatchBus(t *testing.T) {
	dev := NewRAM("DEV", 0x100)
	as := NewAddressSpace(0x100, 1)
	as.MapBank(0, dev, 0)
	dev.data[0x20] = 0x77

	as.Write(0x10, 0x11) // latches bus at 0x10
	as.Peek(0x20)

	if as.addressBus != 0x10 {
		t.Fatalf("address bus = 0x%04X after Peek, want unchanged 0x0010", as.addressBus)
	}
}

func TestNewAddressSpacePanicsOnNonPowerOfTwoBankSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two bank size")
		}
	}()
	NewAddressSpace(3, 1)
}

func TestNewAddressSpacePanicsWhenTotalExceeds64K(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for bank_size*bank_count > 0x10000")
		}
	}()
	NewAddressSpace(0x8000, 3)
}

func TestAddressSpaceReadPanicsOnUnmappedBank(t *testing.T) {
	as := NewAddressSpace(0x100, 2)
	as.MapBank(0, NewRAM("ONLY", 0x100), 0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading an unmapped bank")
		}
	}()
	as.Read(0x0110, Read)
}
