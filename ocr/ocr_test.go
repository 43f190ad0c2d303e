//go:build ocr

package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/tenderfill/config"
)

// createTestPNG creates a simple PNG image with a black block on white.
func createTestPNG(width, height int) []byte {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 10; x < 50; x++ {
		for y := 10; y < 30; y++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestRecognizeImage(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer client.Close()

	// The image holds no text; only check that recognition runs.
	if _, err := client.RecognizeImage(createTestPNG(100, 50)); err != nil {
		t.Errorf("RecognizeImage failed: %v", err)
	}
}

func TestClassifier_NoText(t *testing.T) {
	cl, err := NewClassifier(config.Default())
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer cl.Close()

	path := filepath.Join(t.TempDir(), "blank.png")
	if err := os.WriteFile(path, createTestPNG(100, 50), 0o644); err != nil {
		t.Fatal(err)
	}
	key, err := cl.Classify(path)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if key != "" {
		t.Errorf("blank scan classified as %q", key)
	}
}

func TestClose(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	client.client = nil
	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client failed: %v", err)
	}
}
