package core

import "testing"

func newTestVIC2() *VIC2 {
	mmap := NewAddressSpace(0x4000, 1)
	mmap.MapBank(0, NewRAM("VMEM", 0x4000), 0)
	vcolor := NewAddressSpace(1024, 1)
	vcolor.MapBank(0, NewRAM("COLOR", 1024), 0)
	return NewVIC2(mmap, vcolor, nil)
}

func TestVIC2DefaultsToBuiltinPalette(t *testing.T) {
	v := newTestVIC2()
	if v.palette != &vicBuiltinPalette {
		t.Fatal("NewVIC2(..., nil) should default palette to vicBuiltinPalette")
	}
}

func TestVIC2NameAndSize(t *testing.T) {
	v := newTestVIC2()
	if v.Name() != "VIC-II" {
		t.Fatalf("Name() = %q, want VIC-II", v.Name())
	}
	if v.Size() != vicRegMax {
		t.Fatalf("Size() = %d, want %d", v.Size(), vicRegMax)
	}
}

func TestVIC2TickAdvancesRasterOverOneFrame(t *testing.T) {
	v := newTestVIC2()
	var lines int
	v.SetRenderLine(func(line int, scanline []RGBA) { lines++ })

	// One PAL frame is 312 lines * 63 cycles.
	for i := 0; i < 312*63; i++ {
		v.Tick(nil)
	}

	if lines == 0 {
		t.Fatal("expected at least one rendered scanline over a full frame")
	}
}

func TestVIC2RegisterWriteReadback(t *testing.T) {
	v := newTestVIC2()
	v.Write(regBorderColor, 0x05)
	if got := v.Read(regBorderColor, Read); got&vicColorMask != 0x05 {
		t.Fatalf("border color readback = 0x%02X, want low nibble 0x05", got)
	}
}
