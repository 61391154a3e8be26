// main.go - Demo entry point for the retrocore emulation core.
//
// Wires a Z80 CPU and either a VIC-II or a 2C02 PPU onto a shared
// AddressSpace, drives them from a single Clock, and either dumps
// rendered frames as PPM files or drops into the interactive monitor -
// grounded on the teacher's own main.go (boilerplate banner, os.Args
// validation, plain fmt.Printf/os.Exit(1) error reporting), scaled down
// from its CPU/GUI-frontend selection to a video-chip selection since
// this core has no GUI frontend (spec.md §10 Non-goals).
//
// License: GPLv3 or later

package main

import (
	"flag"
	"fmt"
	"os"

	core "github.com/zotley/retrocore"
)

func banner() {
	fmt.Println("retrocore - a cycle-driven 8-bit home computer core")
	fmt.Println("MOS 6569 (VIC-II) / Ricoh 2C02 video, Zilog Z80 CPU")
	fmt.Println("License: GPLv3 or later")
}

const (
	// AddressSpace bank sizes must fit uint16, so a flat 64K space is two
	// 32K banks rather than one 65536-byte bank (address_space.go).
	bankSize  = 0x8000
	ramSize   = 2 * bankSize
	colorSize = 1024

	// Visible frame dimensions, mirrored from video_vic2.go/video_ppu2c02.go
	// (unexported there; the demo only needs the dimensions to size its
	// own framebuffer).
	vicVisibleWidth  = 403
	vicVisibleHeight = 284
	ppuVisibleWidth  = 256
	ppuVisibleHeight = 240
)

func main() {
	chip := flag.String("chip", "vic2", "video chip to run: vic2 or ppu")
	program := flag.String("program", "", "Z80 binary to load at address 0x0000")
	palette := flag.String("palette", "", "palette file (RRGGBBAA per line); built-in default if empty")
	frames := flag.Int("frames", 1, "number of frames to render before exiting")
	outPrefix := flag.String("out", "frame", "PPM output file prefix")
	monitor := flag.Bool("monitor", false, "drop into the interactive monitor instead of free-running")
	ntsc := flag.Bool("ntsc", true, "crop the 2C02 output to the 224-line NTSC-safe window (false shows all 240 lines)")
	flag.Parse()

	banner()

	ramLow := core.NewRAM("MAIN-LO", bankSize)
	ramHigh := core.NewRAM("MAIN-HI", bankSize)
	bus := core.NewAddressSpace(bankSize, 2)
	bus.MapBank(0, ramLow, 0)
	bus.MapBank(1, ramHigh, 0)

	if *program != "" {
		data, err := os.ReadFile(*program)
		if err != nil {
			fmt.Printf("Error loading program: %v\n", err)
			os.Exit(1)
		}
		for i, b := range data {
			if i >= ramSize {
				break
			}
			bus.Write(uint16(i), b)
		}
	}

	cpu := core.NewCPU_Z80(bus)

	var pal *core.RgbaTable
	if *palette != "" {
		pal = core.NewRgbaTable()
		if err := pal.Load(*palette); err != nil {
			fmt.Printf("Error loading palette: %v\n", err)
			os.Exit(1)
		}
	}

	clk := core.NewClock("system", 1_000_000, 1.0)
	clk.Add(cpu)

	frameCount := 0
	stopAfter := func() {
		frameCount++
		if frameCount >= *frames {
			clk.Stop()
		}
	}

	switch *chip {
	case "vic2":
		vmap := core.NewAddressSpace(bankSize, 2)
		vmap.MapBank(0, ramLow, 0)
		vmap.MapBank(1, ramHigh, 0)
		vcolor := core.NewAddressSpace(colorSize, 1)
		vcolor.MapBank(0, core.NewRAM("COLOR", colorSize), 0)

		vic := core.NewVIC2(vmap, vcolor, pal)
		frame := newFramebuffer(vicVisibleWidth, vicVisibleHeight)
		vic.SetRenderLine(func(line int, scanline []core.RGBA) {
			frame.setLine(line, scanline)
			if line == vicVisibleHeight-1 {
				writePPM(fmt.Sprintf("%s%03d.ppm", *outPrefix, frameCount), frame)
				stopAfter()
			}
		})
		clk.Add(vic)

	case "ppu":
		vmap := core.NewAddressSpace(bankSize, 2)
		vmap.MapBank(0, ramLow, 0)
		vmap.MapBank(1, ramHigh, 0)

		ppu := core.NewPPU2C02(vmap, *ntsc)
		if pal != nil {
			ppu.SetPalette(*pal)
		}
		// NTSC timing crops 8 lines top and bottom (visibleYStart/End in
		// video_ppu2c02.go), so the last line index SetRenderLine ever
		// delivers is 16 short of the full ppuVisibleHeight.
		lastLine := ppuVisibleHeight - 1
		if *ntsc {
			lastLine -= 16
		}
		frame := newFramebuffer(ppuVisibleWidth, ppuVisibleHeight)
		ppu.SetRenderLine(func(line int, scanline []core.RGBA) {
			frame.setLine(line, scanline)
			if line == lastLine {
				writePPM(fmt.Sprintf("%s%03d.ppm", *outPrefix, frameCount), frame)
				stopAfter()
			}
		})
		clk.Add(ppu)

	default:
		fmt.Printf("Unknown video chip %q: use vic2 or ppu\n", *chip)
		os.Exit(1)
	}

	if *monitor {
		mon := core.NewMonitor(cpu, clk, os.Stdout)
		if err := mon.RunInteractive(); err != nil {
			fmt.Printf("Monitor error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	clk.SetFullspeed(true)
	clk.Run()
	fmt.Printf("Rendered %d frame(s)\n", frameCount)
}
