// ppm.go - Minimal PPM (P6) framebuffer dump for the demo binary.
//
// No image codec appears in the teacher's own require block (video_chip.go
// hands finished pixels straight to ebiten); a binary PPM writer is the
// smallest thing that lets a frame be inspected without pulling in a GUI
// dependency this core deliberately has none of (spec.md §10 Non-goals).

package main

import (
	"bufio"
	"fmt"
	"os"

	core "github.com/zotley/retrocore"
)

type framebuffer struct {
	width, height int
	pixels        []core.RGBA
}

func newFramebuffer(width, height int) *framebuffer {
	return &framebuffer{width: width, height: height, pixels: make([]core.RGBA, width*height)}
}

func (f *framebuffer) setLine(line int, scanline []core.RGBA) {
	if line < 0 || line >= f.height {
		return
	}
	copy(f.pixels[line*f.width:(line+1)*f.width], scanline)
}

func writePPM(path string, f *framebuffer) {
	out, err := os.Create(path)
	if err != nil {
		fmt.Printf("Error writing %s: %v\n", path, err)
		return
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "P6\n%d %d\n255\n", f.width, f.height)
	for _, px := range f.pixels {
		w.Write([]byte{px.R(), px.G(), px.B()})
	}
	w.Flush()
}
