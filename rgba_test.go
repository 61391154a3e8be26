package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRGBAChannels(t *testing.T) {
	c := NewRGBA(0x11, 0x22, 0x33, 0x44)
	requireZ80EqualU8(t, "R", c.R(), 0x11)
	requireZ80EqualU8(t, "G", c.G(), 0x22)
	requireZ80EqualU8(t, "B", c.B(), 0x33)
	requireZ80EqualU8(t, "A", c.A(), 0x44)
}

func TestRGBASetIfOpaque(t *testing.T) {
	bg := NewRGBA(0, 0, 0, 0xFF)
	transparent := NewRGBA(0xFF, 0xFF, 0xFF, 0)
	opaque := NewRGBA(0x10, 0x20, 0x30, 0xFF)

	if got := bg.SetIfOpaque(transparent); got != bg {
		t.Fatalf("SetIfOpaque with transparent source = %#x, want background unchanged %#x", got, bg)
	}
	if got := bg.SetIfOpaque(opaque); got != opaque {
		t.Fatalf("SetIfOpaque with opaque source = %#x, want %#x", got, opaque)
	}
}

func TestRGBAScaleClamps(t *testing.T) {
	c := NewRGBA(200, 200, 200, 0xFF)
	scaled := c.Scale(2.0)
	requireZ80EqualU8(t, "R", scaled.R(), 255)
	requireZ80EqualU8(t, "A", scaled.A(), 0xFF)
}

func TestRgbaTableLoadAndSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "palette.pal")

	if err := os.WriteFile(path, []byte("# comment\n\n000000FF\nFFFFFFFF\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tab := NewRgbaTable()
	if err := tab.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tab.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(tab.Entries))
	}
	if tab.At(0) != 0x000000FF || tab.At(1) != 0xFFFFFFFF {
		t.Fatalf("entries = %#x, %#x, want 0x000000FF, 0xFFFFFFFF", tab.At(0), tab.At(1))
	}

	savedPath := filepath.Join(dir, "roundtrip.pal")
	if err := tab.Save(savedPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded := NewRgbaTable()
	if err := reloaded.Load(savedPath); err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if len(reloaded.Entries) != 2 || reloaded.At(0) != tab.At(0) || reloaded.At(1) != tab.At(1) {
		t.Fatalf("roundtrip mismatch: got %v, want %v", reloaded.Entries, tab.Entries)
	}
}

func TestRgbaTableLoadRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pal")
	if err := os.WriteFile(path, []byte("not-a-color\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tab := NewRgbaTable()
	err := tab.Load(path)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Load malformed line error = %v, want wrapping ErrIO", err)
	}
}

func TestRgbaTableAtOutOfRange(t *testing.T) {
	tab := NewRgbaTable()
	if got := tab.At(5); got != 0 {
		t.Fatalf("At(5) on empty table = %#x, want 0", got)
	}
}
