// Package testutil builds image fixtures shared by package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// TextChunk describes one text chunk to embed in a fixture PNG.
type TextChunk struct {
	// Type is tEXt, zTXt or iTXt. Empty means tEXt.
	Type    string
	Keyword string
	Text    string
	// Compressed applies to iTXt only; zTXt is always compressed.
	Compressed bool
}

// PNG returns a valid width x height PNG with the given text chunks placed
// right after IHDR.
func PNG(width, height int, chunks ...TextChunk) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	encoded := buf.Bytes()

	// signature (8) + IHDR length/type (8) + IHDR body (13) + CRC (4)
	const afterIHDR = 33
	out := make([]byte, 0, len(encoded)+256)
	out = append(out, encoded[:afterIHDR]...)
	for _, c := range chunks {
		out = append(out, RawChunk(chunkType(c), chunkBody(c))...)
	}
	out = append(out, encoded[afterIHDR:]...)
	return out
}

// RawChunk frames body as a PNG chunk with a correct CRC.
func RawChunk(typ string, body []byte) []byte {
	out := make([]byte, 8, 12+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:8], typ)
	out = append(out, body...)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(body)
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

// Deflate compresses p with zlib framing.
func Deflate(p []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteFile writes data into dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func chunkType(c TextChunk) string {
	if c.Type == "" {
		return "tEXt"
	}
	return c.Type
}

func chunkBody(c TextChunk) []byte {
	var body []byte
	body = append(body, c.Keyword...)
	body = append(body, 0)
	switch chunkType(c) {
	case "zTXt":
		body = append(body, 0)
		body = append(body, Deflate([]byte(c.Text))...)
	case "iTXt":
		if c.Compressed {
			body = append(body, 1, 0)
		} else {
			body = append(body, 0, 0)
		}
		body = append(body, 0) // empty language tag
		body = append(body, 0) // empty translated keyword
		if c.Compressed {
			body = append(body, Deflate([]byte(c.Text))...)
		} else {
			body = append(body, c.Text...)
		}
	default:
		body = append(body, c.Text...)
	}
	return body
}
