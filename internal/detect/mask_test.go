package detect

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"markad/internal/config"
	"markad/internal/media/frame"
	"markad/internal/testsupport"
)

func TestPGMRoundTrip(t *testing.T) {
	data := []byte{0, 255, 255, 0, 10, 20}
	var buf bytes.Buffer
	if err := WritePGM(&buf, 3, 2, data, "markad corner=1 x=4 y=6"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, h, got, comments, err := ReadPGM(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if w != 3 || h != 2 || !bytes.Equal(got, data) {
		t.Fatalf("got %dx%d %v", w, h, got)
	}
	if len(comments) != 1 || comments[0] != "markad corner=1 x=4 y=6" {
		t.Fatalf("comments = %q", comments)
	}
}

func TestReadPGMErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "ascii greymap", input: "P2\n1 1\n255\n0\n"},
		{name: "sixteen bit", input: "P5\n1 1\n65535\n\x00\x00"},
		{name: "short pixels", input: "P5\n2 2\n255\n\x00"},
		{name: "bad header", input: "P5\nx 1\n255\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, _, err := ReadPGM(strings.NewReader(tt.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWritePGMSizeMismatch(t *testing.T) {
	if err := WritePGM(&bytes.Buffer{}, 2, 2, []byte{1}, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestMaskFileName(t *testing.T) {
	got := MaskFileName("Das Erste HD", frame.Ratio16x9, TopRight, 0)
	if got != "Das_Erste_HD-A16_9-P1.pgm" {
		t.Fatalf("luma name = %q", got)
	}
	if got := MaskFileName("arte", frame.Ratio4x3, BottomLeft, 2); got != "arte-A4_3-P2-2.pgm" {
		t.Fatalf("chroma name = %q", got)
	}
}

func TestCornerRect(t *testing.T) {
	tests := []struct {
		corner Corner
		want   image.Rectangle
	}{
		{TopLeft, image.Rect(0, 0, 40, 30)},
		{TopRight, image.Rect(120, 0, 160, 30)},
		{BottomLeft, image.Rect(0, 90, 40, 120)},
		{BottomRight, image.Rect(120, 90, 160, 120)},
	}
	for _, tt := range tests {
		t.Run(tt.corner.String(), func(t *testing.T) {
			if got := CornerRect(tt.corner, 160, 120, 40, 30); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaskSaveLoad(t *testing.T) {
	dir := t.TempDir()
	mask := extractTestMask(t).ColorInsensitive()
	if err := mask.Save(dir, "ZDF HD"); err != nil {
		t.Fatalf("save: %v", err)
	}
	for p := 0; p < 3; p++ {
		if _, err := os.Stat(filepath.Join(dir, MaskFileName("ZDF HD", mask.Aspect, mask.Corner, p))); err != nil {
			t.Fatalf("plane %d not written: %v", p, err)
		}
	}

	loaded, err := LoadMask(dir, "ZDF HD", mask.Aspect)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Corner != mask.Corner || loaded.X != mask.X || loaded.Y != mask.Y {
		t.Fatalf("loaded %v at %d,%d, want %v at %d,%d", loaded.Corner, loaded.X, loaded.Y, mask.Corner, mask.X, mask.Y)
	}
	for p := range mask.Planes {
		if !bytes.Equal(loaded.Planes[p].Data, mask.Planes[p].Data) {
			t.Fatalf("plane %d differs after reload", p)
		}
	}
}

func TestLoadMaskMissing(t *testing.T) {
	_, err := LoadMask(t.TempDir(), "nobody", frame.Ratio16x9)
	if !errors.Is(err, ErrNoMask) {
		t.Fatalf("expected ErrNoMask, got %v", err)
	}
}

func TestExtractorFindsLogoCorner(t *testing.T) {
	mask := extractTestMask(t)
	if mask.Corner != TopRight {
		t.Fatalf("corner = %s", mask.Corner)
	}
	r := mask.Rect(0)
	if !testsupport.LogoRect.In(r) {
		t.Fatalf("mask rect %v does not cover logo %v", r, testsupport.LogoRect)
	}
	if r.Min.X%2 != 0 || r.Min.Y%2 != 0 || r.Dx()%2 != 0 || r.Dy()%2 != 0 {
		t.Fatalf("mask rect %v not aligned to even pixels", r)
	}
	if mask.Planes[0].Pixels() < 50 {
		t.Fatalf("mask has only %d edge pixels", mask.Planes[0].Pixels())
	}
}

func TestExtractorNoLogo(t *testing.T) {
	ex := NewExtractor(ExtractOptionsFromConfig(config.Default().Logo, config.Default().Black))
	if _, err := ex.Result(); !errors.Is(err, ErrNoLogoFound) {
		t.Fatalf("empty extractor: %v", err)
	}
	for i := 0; i < 5; i++ {
		ex.Add(testsupport.VideoFrame(i, testsupport.Segment{Luma: 100}))
	}
	if ex.Add(testsupport.VideoFrame(5, testsupport.Segment{Luma: 10})) {
		t.Fatal("black frame accepted")
	}
	if ex.Frames() != 5 {
		t.Fatalf("frames = %d", ex.Frames())
	}
	if _, err := ex.Result(); !errors.Is(err, ErrNoLogoFound) {
		t.Fatalf("plain frames: %v", err)
	}
}
