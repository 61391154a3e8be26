// video_ppu2c02.go - Ricoh 2C02 (NES PPU) video controller.
//
// Ported from original_source/src/core/ricoh_2c02.cpp/.hpp: the 341-cycle/
// 262-scanline fetch pipeline, the loopy v/t/x/w scroll registers, OAM
// sprite evaluation (with the cycle-65 OAM-refresh hardware bug), the
// deferred sprite-0-hit latch, and the palette/backdrop addressing all
// follow the reference implementation's actual cycle dispatch rather than
// an idealized reading of the nesdev wiki. The `v`/`t` bitfield helpers and
// the 4-byte OAM sprite layout (y/tile/attribute/x) are written in the
// idiom of n-ulricksen-nes/nes/ppuLoopyReg.go, ppuRegisters.go, oam.go
// rather than as a transliteration of the C++ bitfields - the attribute
// byte bit order (palette low 2 bits, priority bit 5, h-flip bit 6,
// v-flip bit 7) is the same on the wire either way, since it is real NES
// hardware behavior and not an artifact of either source's struct layout.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"io"
)

const (
	ppuFrameWidth    = 341
	ppuFrameHeight   = 262
	ppuVisibleWidth  = 256
	ppuVisibleHeight = 240
	ppuVBlankHeight  = 20
	ppuColumns       = 32
	ppuRows          = 30

	ppuVisibleXStart  = 0
	ppuVisibleXEnd    = ppuVisibleXStart + ppuVisibleWidth
	ppuVisibleYStart  = 0
	ppuVisibleYEnd    = ppuVisibleYStart + ppuVisibleHeight
	ppuPostRenderLine = ppuVisibleYEnd
	ppuVBlankStart    = ppuPostRenderLine + 1
	ppuVBlankEnd      = ppuVBlankStart + ppuVBlankHeight
	ppuPreRenderLine  = ppuVBlankEnd

	ppuPatternTable0Addr = 0x0000
	ppuPatternTable1Addr = 0x1000
	ppuNameTableAddr     = 0x2000
	ppuAttrTableOffset   = ppuColumns * ppuRows
	ppuAttrTableAddr     = ppuNameTableAddr | ppuAttrTableOffset
	ppuPaletteAddr       = 0x3F00
	ppuPaletteAddrMask   = ppuPaletteAddr
	ppuPaletteSpOffset   = 16
	ppuPaletteColorMask  = 0x3F
	ppuGreyscaleMask     = 0x30
	ppuPalettes          = 4
	ppuPaletteSize       = 4
	ppuBackdropCIndex    = 0

	ppuSprites    = 64
	ppuSecSprites = 8
	ppuSpriteYOffset = 1

	ppuTiles = 3

	ppuVRAMAddrMask = 0x7FFF // mirrors the reference's (A15 - 1) mask

	ppuInvalidX = -1
)

// PPU register offsets (spec.md §4.4/§6), as seen on the CPU bus.
const (
	ppuRegPPUCTRL = iota
	ppuRegPPUMASK
	ppuRegPPUSTATUS
	ppuRegOAMADDR
	ppuRegOAMDATA
	ppuRegPPUSCROLL
	ppuRegPPUADDR
	ppuRegPPUDATA
	ppuRegMax
)

const ppuRegMask = ppuRegPPUDATA

// ppuBuiltinPalette is the default NES 2C02 RGBA palette (64 entries). RGBA's
// bit layout (R 31..24, G 23..16, B 15..8, A 7..0) matches the 0xRRGGBBAA
// literals from the reference table exactly, so no repacking is needed.
var ppuBuiltinPalette = RgbaTable{Entries: []RGBA{
	0x626262FF, 0x012090FF, 0x240BA0FF, 0x470090FF, 0x600062FF, 0x6A0024FF, 0x601100FF, 0x472700FF,
	0x243C00FF, 0x014A00FF, 0x004F00FF, 0x004724FF, 0x003662FF, 0x000000FF, 0x000000FF, 0x000000FF,
	0xABABABFF, 0x1F56E1FF, 0x4D39FFFF, 0x7E23EFFF, 0xA31BB7FF, 0xB42264FF, 0xAC370EFF, 0x8C5500FF,
	0x5E7200FF, 0x2D8800FF, 0x079000FF, 0x008947FF, 0x00739DFF, 0x000000FF, 0x000000FF, 0x000000FF,
	0xFFFFFFFF, 0x67ACFFFF, 0x958DFFFF, 0xC875FFFF, 0xF26AFFFF, 0xFF6FC5FF, 0xFF836AFF, 0xE6A01FFF,
	0xB8BF00FF, 0x85D801FF, 0x5BE335FF, 0x45DE88FF, 0x49CAE3FF, 0x4E4E4EFF, 0x000000FF, 0x000000FF,
	0xFFFFFFFF, 0xBFE0FFFF, 0xD1D3FFFF, 0xE6C9FFFF, 0xF7C3FFFF, 0xFFC4EEFF, 0xFFCBC9FF, 0xF7D7A9FF,
	0xE6E397FF, 0xD1EE97FF, 0xBFF3A9FF, 0xB5F2C9FF, 0xB5EBEEFF, 0xB8B8B8FF, 0x000000FF, 0x000000FF,
}}

// ppuLoopy is the internal v/t/x/w scroll register set (spec.md §4.4),
// laid out per n-ulricksen-nes/nes/ppuLoopyReg.go's bit grouping:
//
//	yyy NN YYYYY XXXXX  (v, t)
//	 |  |    |     +-> coarse X scroll
//	 |  |    +-------> coarse Y scroll
//	 |  +------------> nametable select
//	 +---------------> fine Y scroll
type ppuLoopy struct {
	v, t uint16
	x    uint8
	w    bool
}

// ppuOam is one 4-byte sprite entry, laid out like real NES OAM (and like
// n-ulricksen-nes/nes/oam.go's oamSprite): y, tile index, attribute byte,
// x. The attribute byte's bit order matches the reference's packed
// bitfield (palette low 2 bits, then 3 unused, then priority/h-flip/
// v-flip) because that ordering is what the hardware actually does, not
// an artifact of either source.
type ppuOam struct {
	y      uint8
	tilech uint8
	attr   uint8
	x      uint8
}

func (o ppuOam) pindex() uint8 { return o.attr & 0x03 }
func (o ppuOam) bgpri() bool   { return o.attr&0x20 != 0 }
func (o ppuOam) hflip() bool   { return o.attr&0x40 != 0 }
func (o ppuOam) vflip() bool   { return o.attr&0x80 != 0 }

type ppuOamSec struct {
	spindex uint8
	sprite  ppuOam
}

type ppuTileData struct {
	tilech uint8
	pindex uint8
	plane  [2]uint8
}

type ppuTilePixel struct {
	used  bool
	color RGBA
}

type ppuSpritePixel struct {
	ppuTilePixel
	spindex uint8
	bgpri   bool
}

// PPU2C02 is a Ricoh 2C02 picture processing unit (spec.md §4.4).
type PPU2C02 struct {
	mmap *AddressSpace // PPU bus: pattern tables, nametables, palette RAM

	ntsc                           bool
	visibleYStart, visibleYEnd     int

	renderLine func(line int, scanline []RGBA)
	irqCallback func(active bool)

	syncPin bool

	palette    RgbaTable
	rindexMask uint8

	regs ppuLoopy

	vramInc      uint16
	spBase       uint16
	bgBase       uint16
	sp8x16       bool
	extIn        bool
	irqEnabled   bool

	bgLBorder, spLBorder bool
	bgEnabled, spEnabled bool
	tint                 bool
	redTint, greenTint, blueTint float64

	lastMMIOWrite uint8
	delayedData   uint8

	oamAddr    uint8
	oam        [ppuSprites * 4]uint8
	oamSec     [ppuSecSprites]ppuOamSec
	oamSecCount int

	bgPalette [ppuPalettes * ppuPaletteSize]uint8
	spPalette [ppuPalettes * ppuPaletteSize]uint8

	vblank      bool
	vblankFlag  bool
	sp0Hit      bool
	sp0HitCycle int
	spOverflow  bool

	irqStatus bool

	cycle int
	line  int

	tiles       [ppuTiles]ppuTileData
	fetchTile   int
	paintTileIdx int

	bgScanline [ppuVisibleWidth]ppuTilePixel
	spScanline [ppuVisibleWidth]ppuSpritePixel

	scanline []RGBA
}

// NewPPU2C02 builds a Ricoh 2C02 wired to mmap (the PPU's own address
// space: pattern tables supplied by the cartridge, nametable VRAM, and
// palette RAM). ntsc selects the 240-line (false) or 224-line NTSC-safe
// (true) visible window, matching the reference constructor.
func NewPPU2C02(mmap *AddressSpace, ntsc bool) *PPU2C02 {
	p := &PPU2C02{
		mmap:          mmap,
		ntsc:          ntsc,
		palette:       ppuBuiltinPalette,
		rindexMask:    ppuPaletteColorMask,
		vramInc:       1,
		sp0HitCycle:   ppuInvalidX,
		scanline:      make([]RGBA, ppuVisibleWidth),
		visibleYStart: ppuVisibleYStart,
		visibleYEnd:   ppuVisibleYEnd,
	}
	if ntsc {
		p.visibleYStart += 8
		p.visibleYEnd -= 8
	}
	return p
}

// SetRenderLine installs the callback invoked once per visible scanline
// with the painted pixel buffer, mirroring render_line(const RendererCb&).
func (p *PPU2C02) SetRenderLine(f func(line int, scanline []RGBA)) { p.renderLine = f }

// SetIRQ installs the callback fired on every transition of the /IRQ
// output pin (driven by vblank NMI in this port's Z80 wiring).
func (p *PPU2C02) SetIRQ(f func(active bool)) { p.irqCallback = f }

// SetPalette replaces the active color palette.
func (p *PPU2C02) SetPalette(t RgbaTable) { p.palette = t }

// LoadPalette loads a color palette from disk, mirroring palette(const
// fs::Path&).
func (p *PPU2C02) LoadPalette(path string) error {
	if path == "" {
		return nil
	}
	return p.palette.Load(path)
}

// SetSync sets the /SYNC input pin; while active the PPU stops advancing
// (video output disabled), mirroring sync_pin(bool).
func (p *PPU2C02) SetSync(active bool) bool {
	p.syncPin = active
	return p.syncPin
}

func (p *PPU2C02) irqOut(active bool) {
	if p.irqStatus != active {
		p.irqStatus = active
		if p.irqCallback != nil {
			p.irqCallback(active)
		}
	}
}

// Reset mirrors the reference implementation's reset(), which is
// deliberately a no-op: the PPU's internal state is whatever power-on
// zero value the struct already carries.
func (p *PPU2C02) Reset() {}

// Tick implements Clockable. It advances the PPU by one dot, or jumps
// ahead by many dots at once during blanking periods, per the reference
// tick()'s cycle-skip pattern (unlike the VIC-II, which always ticks
// cycle by cycle - see SPEC_FULL.md §9).
func (p *PPU2C02) Tick(clk *Clock) int {
	if p.syncPin {
		return 1
	}

	if p.line == ppuPostRenderLine {
		p.vblank = true
		p.cycle = 0
		p.line = ppuVBlankStart
		return ppuFrameWidth
	}

	if p.line == ppuVBlankStart {
		if p.cycle == 0 {
			p.cycle = 1
			return 1
		}
		p.vblankFlag = true
		if p.irqEnabled {
			p.irqOut(true)
		}
		p.cycle = 0
		p.line = ppuPreRenderLine
		return (ppuVBlankEnd-ppuVBlankStart)*ppuFrameWidth - 1
	}

	if p.cycle == 0 {
		p.cycle = 1
		return 1
	}

	if p.cycle == 1 && p.line == ppuPreRenderLine {
		p.vblank = false
		if p.vblankFlag {
			p.vblankFlag = false
			p.irqOut(false)
		}
		p.sp0Hit = false
		p.sp0HitCycle = ppuInvalidX
		p.spOverflow = false
	}

	if p.bgEnabled {
		p.tickBackground()
	}

	if !p.sp0Hit && p.cycle == p.sp0HitCycle {
		p.sp0Hit = true
		p.sp0HitCycle = ppuInvalidX
	}

	if p.spEnabled {
		p.tickSprites()
	}

	p.cycle = (p.cycle + 1) % ppuFrameWidth
	if p.cycle == 0 {
		p.paintScanline()
		p.doRenderLine()
		p.paintSprites()
		p.line = (p.line + 1) % ppuFrameHeight
	}

	return 1
}

func (p *PPU2C02) tickBackground() {
	subcycle := p.cycle % 8
	switch {
	case p.cycle >= 1 && p.cycle <= 256:
		tile := &p.tiles[p.fetchTile]
		switch subcycle {
		case 2:
			hit := p.paintTile(p.cycle-2, &p.tiles[p.paintTileIdx], &p.tiles[(p.paintTileIdx+1)%ppuTiles])
			p.paintTileIdx = (p.paintTileIdx + 1) % ppuTiles
			if hit != ppuInvalidX {
				// The earliest sprite 0 hit occurs at the third cycle.
				hit++
			}
			p.sp0HitCycle = hit
			p.fetchTilech(tile)
		case 4:
			p.fetchPalette(tile)
		case 6:
			p.fetchBgPattern(tile, false)
		case 0:
			p.fetchBgPattern(tile, true)
			p.fetchTile = (p.fetchTile + 1) % ppuTiles
			p.scrollXCoarseInc()
			if p.cycle == 256 {
				p.scrollYInc()
			}
		}

	case p.cycle == 257:
		const mask = 0b0111101111100000
		p.regs.v = (p.regs.v & mask) | (p.regs.t &^ mask)

	case p.cycle >= 280 && p.cycle <= 304:
		if p.line == ppuPreRenderLine {
			const mask = 0b0000010000011111
			p.regs.v = (p.regs.v & mask) | (p.regs.t &^ mask)
		}

	case p.cycle == 320:
		p.fetchTile = 0
		p.paintTileIdx = 0

	case p.cycle >= 321 && p.cycle <= 340:
		// First 2 tiles of the next scanline.
		tile := &p.tiles[p.fetchTile]
		switch subcycle {
		case 2:
			p.fetchTilech(tile)
		case 4:
			p.fetchPalette(tile)
		case 6:
			p.fetchBgPattern(tile, false)
		case 0:
			p.fetchBgPattern(tile, true)
			p.fetchTile++
			p.scrollXCoarseInc()
		}
	}
}

func (p *PPU2C02) tickSprites() {
	switch {
	case p.cycle == 64:
		// Cycles 1-64: secondary OAM buffer cleared.
		p.oamSecCount = 0

	case p.cycle == 65:
		// OAM hardware refresh bug: starting sprite evaluation with a
		// non-zero OAMADDR copies 8 bytes from OAMADDR&$F8 over OAM[0:8].
		if p.oamAddr != 0x00 {
			addr := int(p.oamAddr & 0xF8)
			copy(p.oam[0:8], p.oam[addr:addr+8])
		}

	case p.cycle == 256:
		// Cycles 65-256: sprite evaluation for the next scanline.
		if p.line < ppuVisibleYEnd-1 {
			nextLine := p.line + 1
			for spindex := 0; spindex < ppuSprites; spindex++ {
				p.spOverflow = p.spriteEvaluation(uint8(spindex), nextLine)
				if p.spOverflow {
					break
				}
			}
		}

	case p.cycle >= 257 && p.cycle <= 320:
		// Sprite fetches (8 sprites, 8 cycles each).
		p.oamAddr = 0
	}
}

func (p *PPU2C02) doRenderLine() {
	if !p.vblank && p.line >= p.visibleYStart && p.line < p.visibleYEnd && p.renderLine != nil {
		p.renderLine(p.line-p.visibleYStart, p.scanline)
	}
	bg := p.backdropColor()
	for i := range p.scanline {
		p.scanline[i] = bg
	}
}

func (p *PPU2C02) fetchTilech(tile *ppuTileData) {
	addr := uint16(ppuNameTableAddr) | (p.regs.v & 0x0FFF)
	tile.tilech = p.mmap.Read(addr, Read)
}

func (p *PPU2C02) fetchPalette(tile *ppuTileData) {
	col := uint8(p.regs.v & 31)
	row := uint8((p.regs.v >> 5) & 31)
	col4 := col >> 2
	row4 := row >> 2
	addr := uint16(ppuAttrTableAddr) | (p.regs.v & 0x0C00) | (uint16(row4) << 3) | uint16(col4)
	attr := p.mmap.Read(addr, Read)
	shift := (col & 2) + ((row & 2) << 1)
	tile.pindex = (attr >> shift) & 3
}

func (p *PPU2C02) fetchBgPattern(tile *ppuTileData, plane bool) {
	fineY := (p.regs.v >> 12) & 7
	var planeBit uint16
	if plane {
		planeBit = 1
	}
	offset := (uint16(tile.tilech) << 4) | (planeBit << 3) | fineY
	addr := p.bgBase | offset
	data := p.mmap.Read(addr, Read)
	if plane {
		tile.plane[1] = data
	} else {
		tile.plane[0] = data
	}
}

func (p *PPU2C02) readOam(spindex uint8) ppuOam {
	base := int(spindex) * 4
	return ppuOam{y: p.oam[base], tilech: p.oam[base+1], attr: p.oam[base+2], x: p.oam[base+3]}
}

// spriteEvaluation copies a sprite into the secondary OAM buffer if it is
// visible on line. Returns true once the buffer is full (8 sprites).
//
// TODO: the sprite overflow bug (buggy evaluation of the attribute byte
// once the secondary buffer is full) is not implemented, matching the
// reference's own unresolved TODO.
func (p *PPU2C02) spriteEvaluation(spindex uint8, line int) bool {
	if p.oamSecCount < ppuSecSprites {
		sprite := p.readOam(spindex)
		height := 8
		if p.sp8x16 {
			height = 16
		}
		y1 := int(sprite.y) + ppuSpriteYOffset
		y2 := y1 + height
		if line >= y1 && line < y2 {
			p.oamSec[p.oamSecCount] = ppuOamSec{spindex: spindex, sprite: sprite}
			p.oamSecCount++
		}
	}
	return p.oamSecCount == ppuSecSprites
}

func (p *PPU2C02) spritePlanes(sprite ppuOam, spline uint8) (uint8, uint8) {
	var addr uint16
	if p.sp8x16 {
		if sprite.vflip() {
			spline = 15 - (spline & 15)
		}
		base := uint16(ppuPatternTable0Addr)
		if sprite.tilech&1 != 0 {
			base = ppuPatternTable1Addr
		}
		tilech := uint16(sprite.tilech &^ 1)
		if spline > 7 {
			tilech++
		}
		addr = base | (tilech << 4) | uint16(spline&7)
	} else {
		if sprite.vflip() {
			spline = 7 - spline
		}
		addr = p.spBase | (uint16(sprite.tilech) << 4) | uint16(spline)
	}

	plane0 := p.mmap.Read(addr, Read)
	plane1 := p.mmap.Read(addr+8, Read)

	if sprite.hflip() {
		plane0 = reverseBits(plane0)
		plane1 = reverseBits(plane1)
	}

	return plane0, plane1
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r = (r << 1) | (b & 1)
		b >>= 1
	}
	return r
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// paintTile paints one tile line into bgScanline starting at x, and
// reports a sprite-0-hit X coordinate if one is detected (the caller
// expects spScanline to already hold sprite pixel data in [x, x+7]).
func (p *PPU2C02) paintTile(x int, left, right *ppuTileData) int {
	if x < ppuVisibleXStart || x > ppuVisibleXEnd {
		return ppuInvalidX
	}

	plane0 := (uint16(left.plane[0]) << 8) | uint16(right.plane[0])
	plane1 := (uint16(left.plane[1]) << 8) | uint16(right.plane[1])
	bitmap := plane0 | plane1
	hit0X := ppuInvalidX
	bcount := 0
	bit := uint16(0x8000) >> p.regs.x

	if p.bgLBorder && x < 8 {
		x = 8
		bcount = 8 - x
		bit >>= uint(bcount)
	}

	for ; bcount < 8 && x < len(p.bgScanline); bcount++ {
		cindex := boolBit(plane1&bit == bit)<<1 | boolBit(plane0&bit == bit)
		var pindex int
		if bit > 0x0080 {
			pindex = int(left.pindex)*ppuPaletteSize + cindex
		} else {
			pindex = int(right.pindex)*ppuPaletteSize + cindex
		}
		var rindex uint8
		if cindex == 0 {
			rindex = p.bgPalette[0]
		} else {
			rindex = p.bgPalette[pindex]
		}
		color := p.paletteColor(rindex)

		bp := &p.bgScanline[x]
		bp.used = bitmap&bit == bit
		bp.color = color

		sp := &p.spScanline[x]
		if sp.spindex == 0 && sp.used && bp.used && hit0X == ppuInvalidX && x != 255 {
			hit0X = x
		}

		bit >>= 1
		x++
	}

	return hit0X
}

func (p *PPU2C02) paintSprite(spindex uint8) {
	osec := p.oamSec[spindex]
	sprite := osec.sprite
	if int(sprite.x) < ppuVisibleXStart || int(sprite.x) >= ppuVisibleXEnd {
		return
	}

	spline := uint8(p.line - int(sprite.y))
	plane0, plane1 := p.spritePlanes(sprite, spline)
	bitmap := plane0 | plane1

	x := int(sprite.x)
	bit := uint8(128)
	if p.spLBorder && sprite.x < 8 {
		bit >>= 8 - sprite.x
		x = 8
	}

	for ; bit != 0 && x < len(p.spScanline); bit >>= 1 {
		sp := &p.spScanline[x]
		if !sp.used && bitmap&bit != 0 {
			cindex := boolBit(plane1&bit == bit)<<1 | boolBit(plane0&bit == bit)
			pindex := int(sprite.pindex())*ppuPaletteSize + cindex
			rindex := p.spPalette[pindex]
			sp.spindex = osec.spindex
			sp.bgpri = sprite.bgpri()
			sp.used = true
			sp.color = p.paletteColor(rindex)
		}
		x++
	}
}

func (p *PPU2C02) paintSprites() {
	for sp := 0; sp < p.oamSecCount; sp++ {
		p.paintSprite(uint8(sp))
	}
}

func (p *PPU2C02) paintScanline() {
	for i := range p.scanline {
		bg := &p.bgScanline[i]
		sp := &p.spScanline[i]
		if sp.used && (!bg.used || !sp.bgpri) {
			p.scanline[i] = sp.color
		} else {
			p.scanline[i] = bg.color
		}
	}
	for i := range p.bgScanline {
		p.bgScanline[i] = ppuTilePixel{}
	}
	for i := range p.spScanline {
		p.spScanline[i] = ppuSpritePixel{}
	}
}

func (p *PPU2C02) isPaletteAddress(addr uint16) bool {
	return addr&ppuPaletteAddrMask == ppuPaletteAddr
}

// paletteColor applies the current greyscale/tint modulators (PPUMASK)
// over a raw 6-bit palette color index.
func (p *PPU2C02) paletteColor(rindex uint8) RGBA {
	color := p.palette.At(int(rindex & p.rindexMask))
	// Tint works on colors $00-$0D, $10-$1D, $20-$2D, $30-$3D.
	if p.tint && (rindex&0x0F) < 0x0E {
		r := uint8(float64(color.R()) * p.redTint)
		g := uint8(float64(color.G()) * p.greenTint)
		b := uint8(float64(color.B()) * p.blueTint)
		return NewRGBA(r, g, b, color.A())
	}
	return color
}

func (p *PPU2C02) backdropColor() RGBA {
	cindex := ppuBackdropCIndex
	if p.isForcedVBlank() && p.isPaletteAddress(p.regs.v) {
		cindex = int(p.mmap.Read(p.regs.v, Read))
	}
	return p.palette.At(cindex & ppuPaletteColorMask)
}

func (p *PPU2C02) isForcedVBlank() bool { return !p.bgEnabled && !p.spEnabled }

func (p *PPU2C02) isRendering() bool {
	renabled := p.bgEnabled || p.spEnabled
	visible := p.line == ppuPreRenderLine || (p.line >= ppuVisibleYStart && p.line < ppuVisibleYEnd)
	return renabled && visible
}

func (p *PPU2C02) scrollXCoarseInc() {
	const coarseXMask = 0b0000000000011111
	const horizNametable = 0x0400 // A10
	if p.regs.v&coarseXMask == coarseXMask {
		p.regs.v &^= coarseXMask
		p.regs.v ^= horizNametable
	} else {
		p.regs.v++
	}
}

func (p *PPU2C02) scrollYInc() {
	const coarseScrollMask = 0b0000000000011111
	const coarseYMask = coarseScrollMask << 5
	const coarseYInvertNT = 0b0000000000011101 // 29
	const fineYMask = 0b0111000000000000
	const fineYOne = 0x1000 // A12
	const vertNametable = 0x0800 // A11

	if p.regs.v&fineYMask != fineYMask {
		p.regs.v += fineYOne
		return
	}

	coarseY := (p.regs.v & coarseYMask) >> 5
	switch coarseY {
	case coarseYInvertNT:
		p.regs.v ^= vertNametable
		fallthrough
	case coarseScrollMask:
		coarseY = 0
	default:
		coarseY++
	}
	p.regs.v = (p.regs.v &^ (fineYMask | coarseYMask)) | (coarseY << 5)
}

// Size implements Device.
func (p *PPU2C02) Size() uint16 { return ppuRegMax }

// Name implements Device.
func (p *PPU2C02) Name() string { return "2C02" }

// Read implements Device.
func (p *PPU2C02) Read(addr uint16, mode ReadMode) uint8 {
	addr &= ppuRegMask

	switch addr {
	case ppuRegPPUSTATUS:
		// D7 vblank (cleared after read), D6 sprite-0 hit, D5 sprite
		// overflow, D4-D0 stale open-bus bits from the last MMIO write.
		data := (p.lastMMIOWrite & 0x1F) |
			uint8(boolBit(p.spOverflow))<<5 |
			uint8(boolBit(p.sp0Hit))<<6 |
			uint8(boolBit(p.vblankFlag))<<7
		if mode != Peek {
			p.vblankFlag = false
			p.regs.w = false
			p.irqOut(false)
		}
		return data

	case ppuRegOAMADDR:
		return p.oamAddr

	case ppuRegOAMDATA:
		// Cycles 1-64 clear the secondary OAM buffer; reads during that
		// window return $FF regardless of OAMADDR.
		if p.cycle > 0 && p.cycle <= 64 {
			return 0xFF
		}
		return p.oam[p.oamAddr]

	case ppuRegPPUDATA:
		var data uint8
		if p.isPaletteAddress(p.regs.v) {
			pos := (p.regs.v - ppuPaletteAddr) % 32
			if pos < 16 {
				data = p.bgPalette[pos]
			} else {
				data = p.spPalette[pos-16]
			}
			data &= p.rindexMask
			data |= p.lastMMIOWrite &^ ppuPaletteColorMask
		} else {
			data = p.delayedData
		}
		if mode != Peek {
			p.delayedData = p.mmap.Read(p.regs.v, Read)
			p.regs.v = (p.regs.v + p.vramInc) & ppuVRAMAddrMask
		}
		return data

	default:
		return p.lastMMIOWrite
	}
}

// Write implements Device.
func (p *PPU2C02) Write(addr uint16, value uint8) {
	addr &= ppuRegMask

	switch addr {
	case ppuRegPPUCTRL:
		p.regs.t = (p.regs.t &^ 0x0C00) | (uint16(value&0x03) << 10)
		if value&0x04 != 0 {
			p.vramInc = 32
		} else {
			p.vramInc = 1
		}
		if value&0x08 != 0 {
			p.spBase = ppuPatternTable1Addr
		} else {
			p.spBase = ppuPatternTable0Addr
		}
		if value&0x10 != 0 {
			p.bgBase = ppuPatternTable1Addr
		} else {
			p.bgBase = ppuPatternTable0Addr
		}
		p.sp8x16 = value&0x20 != 0
		p.extIn = value&0x40 == 0
		p.irqEnabled = value&0x80 != 0
		if p.vblankFlag {
			// Toggling NMI-enable while vblank_flag is set re-fires NMI
			// without requiring a PPUSTATUS read first.
			p.irqOut(p.irqEnabled)
		}

	case ppuRegPPUMASK:
		if value&0x01 != 0 {
			p.rindexMask = ppuGreyscaleMask
		} else {
			p.rindexMask = ppuPaletteColorMask
		}
		p.bgLBorder = value&0x02 == 0
		p.spLBorder = value&0x04 == 0
		p.bgEnabled = value&0x08 != 0
		p.spEnabled = value&0x10 != 0
		p.tint = value&0x20 != 0 || value&0x40 != 0 || value&0x80 != 0
		if value&0x20 != 0 {
			p.redTint = 1.82
		} else {
			p.redTint = 1.0
		}
		if value&0x40 != 0 {
			p.greenTint = 1.82
		} else {
			p.greenTint = 1.0
		}
		if value&0x80 != 0 {
			p.blueTint = 1.82
		} else {
			p.blueTint = 1.0
		}

	case ppuRegOAMADDR:
		p.oamAddr = value

	case ppuRegOAMDATA:
		p.oam[p.oamAddr] = value
		p.oamAddr++

	case ppuRegPPUSCROLL:
		if !p.regs.w {
			p.regs.t = (p.regs.t & 0b0111111111100000) | uint16(value>>3)
			p.regs.x = value & 0b00000111
			p.regs.w = true
		} else {
			p.regs.t = (p.regs.t & 0b0000110000011111) |
				(uint16(value&0b11111000) << 2) |
				(uint16(value&0b00000111) << 12)
			p.regs.w = false
		}

	case ppuRegPPUADDR:
		if !p.regs.w {
			p.regs.t = (p.regs.t & 0x00FF) | (uint16(value&0b00111111) << 8)
			p.regs.w = true
		} else {
			p.regs.t = (p.regs.t & 0xFF00) | uint16(value)
			p.regs.v = p.regs.t
			p.regs.w = false
		}

	case ppuRegPPUDATA:
		if p.isPaletteAddress(p.regs.v) {
			value &= ppuPaletteColorMask
			pos := (p.regs.v - ppuPaletteAddr) % 32
			switch {
			case pos == 0 || pos == 16:
				p.bgPalette[0] = value
				p.spPalette[0] = value
			case pos < 16:
				p.bgPalette[pos] = value
			default:
				p.spPalette[pos-16] = value
			}
		} else {
			p.mmap.Write(p.regs.v, value)
		}
		p.regs.v = (p.regs.v + p.vramInc) & ppuVRAMAddrMask
	}

	p.lastMMIOWrite = value
}

// Dump implements Device.
func (p *PPU2C02) Dump(w io.Writer) {
	fmt.Fprintf(w, "2C02: line=%d cycle=%d vblank=%v sp0hit=%v overflow=%v v=$%04X t=$%04X\n",
		p.line, p.cycle, p.vblank, p.sp0Hit, p.spOverflow, p.regs.v, p.regs.t)
	for addr := uint16(0); addr < ppuRegMax; addr++ {
		fmt.Fprintf(w, "  $%04X = $%02X\n", addr, p.Read(addr, Peek))
	}
}
