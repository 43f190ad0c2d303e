package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoding
	"image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp" // register BMP decoding
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoding
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/tsawler/tenderfill/docx"
)

// picture is an image file prepared for embedding.
type picture struct {
	data          []byte
	ext           string // format name accepted by docx.Package.AddImage
	width, height int    // pixels
}

// loadPicture reads and decodes the header of an image file. WebP images,
// which Word cannot display, are re-encoded as PNG. Images wider than
// maxPixels are downscaled.
func loadPicture(path string, maxPixels int) (*picture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}

	tooWide := maxPixels > 0 && cfg.Width > maxPixels
	if format != "webp" && !tooWide {
		return &picture{data: data, ext: format, width: cfg.Width, height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if tooWide {
		img = downscale(img, maxPixels)
	}

	var buf bytes.Buffer
	ext := "png"
	if format == "jpeg" {
		ext = "jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ext, err)
	}
	b := img.Bounds()
	return &picture{data: buf.Bytes(), ext: ext, width: b.Dx(), height: b.Dy()}, nil
}

// downscale resizes src to the given width, keeping the aspect ratio.
func downscale(src image.Image, width int) image.Image {
	b := src.Bounds()
	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// extent returns the display size in EMU: the natural size at dpi, narrowed
// to maxIn inches when wider.
func (p *picture) extent(dpi, maxIn float64) (cx, cy int64) {
	if dpi <= 0 {
		dpi = 96
	}
	w := float64(p.width) / dpi
	if maxIn > 0 && w > maxIn {
		w = maxIn
	}
	h := w * float64(p.height) / float64(p.width)
	return int64(w * docx.EMUPerInch), int64(h * docx.EMUPerInch)
}
