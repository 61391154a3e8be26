package core

import "testing"

func newTestPPU() *PPU2C02 {
	mmap := NewAddressSpace(0x4000, 1)
	mmap.MapBank(0, NewRAM("VMEM", 0x4000), 0)
	return NewPPU2C02(mmap, true)
}

func TestPPU2C02NameAndSize(t *testing.T) {
	p := newTestPPU()
	if p.Name() != "2C02" {
		t.Fatalf("Name() = %q, want 2C02", p.Name())
	}
	if p.Size() != ppuRegMax {
		t.Fatalf("Size() = %d, want %d", p.Size(), ppuRegMax)
	}
}

func TestPPU2C02NTSCCropsVisibleWindow(t *testing.T) {
	p := newTestPPU()
	if got := p.visibleYEnd - p.visibleYStart; got != ppuVisibleHeight-16 {
		t.Fatalf("NTSC visible height = %d, want %d", got, ppuVisibleHeight-16)
	}
}

func TestPPU2C02TickRendersAFullFrame(t *testing.T) {
	p := newTestPPU()
	var lines int
	p.SetRenderLine(func(line int, scanline []RGBA) { lines++ })

	for i := 0; i < ppuFrameWidth*ppuFrameHeight*2; i++ {
		p.Tick(nil)
	}

	want := int(p.visibleYEnd - p.visibleYStart)
	if lines < want {
		t.Fatalf("rendered %d lines over two frames, want at least %d (one frame)", lines, want)
	}
}

func TestPPU2C02VBlankFlagSetsAndClears(t *testing.T) {
	p := newTestPPU()
	// Tick returns how many dots it consumed (many at once in blanking).
	for dots := 0; dots < ppuFrameWidth*(ppuVBlankStart+1); {
		dots += p.Tick(nil)
	}
	if !p.vblankFlag {
		t.Fatal("vblankFlag should be set after entering the vblank scanline")
	}

	for dots := 0; dots < ppuFrameWidth*ppuFrameHeight; {
		dots += p.Tick(nil)
	}
	if p.vblankFlag {
		t.Fatal("vblankFlag should clear at the pre-render line")
	}
}

func TestPPU2C02PPUSTATUSReadClearsVBlankAndLatchesW(t *testing.T) {
	p := newTestPPU()
	p.vblankFlag = true
	p.regs.w = true

	got := p.Read(ppuRegPPUSTATUS, Read)
	if got&0x80 == 0 {
		t.Fatalf("PPUSTATUS read = 0x%02X, want bit 7 set", got)
	}
	if p.vblankFlag {
		t.Fatal("reading PPUSTATUS must clear vblankFlag")
	}
	if p.regs.w {
		t.Fatal("reading PPUSTATUS must clear the write-toggle latch")
	}
}
