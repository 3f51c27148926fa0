// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging validates uploaded item photos and prepares them for
// storage: the format is sniffed from the bytes, oversized images are
// downscaled, and a JPEG thumbnail is produced for list views.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// MaxUploadSize is the largest accepted photo (10 MB).
	MaxUploadSize = 10 << 20

	// MaxDimension caps the stored image's longer side in pixels.
	MaxDimension = 1600

	// ThumbWidth is the maximum thumbnail width in pixels.
	ThumbWidth = 400

	// Quality is the JPEG quality for stored images and thumbnails.
	Quality = 82

	// maxImagePixels rejects decompression bombs before a full decode.
	maxImagePixels = 50_000_000
)

// ErrUnsupported is returned for files that are not an accepted image type.
var ErrUnsupported = errors.New("unsupported image format")

// AllowedMIME lists the accepted input types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Processed holds a re-encoded image and its thumbnail.
type Processed struct {
	Data        []byte
	Thumb       []byte
	Width       int
	Height      int
	ContentType string // always image/jpeg
	Ext         string
}

// Process sniffs, bounds-checks, downscales and re-encodes an uploaded
// image. Metadata such as EXIF is dropped by the re-encode.
func Process(data []byte) (*Processed, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupported)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("image too large: %d bytes", len(data))
	}

	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", ErrUnsupported, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnsupported, err)
	}

	full := Fit(img, MaxDimension, MaxDimension)
	thumb := Fit(img, ThumbWidth, ThumbWidth*4)

	fullData, err := encodeJPEG(full)
	if err != nil {
		return nil, err
	}
	thumbData, err := encodeJPEG(thumb)
	if err != nil {
		return nil, err
	}

	b := full.Bounds()
	return &Processed{
		Data:        fullData,
		Thumb:       thumbData,
		Width:       b.Dx(),
		Height:      b.Dy(),
		ContentType: "image/jpeg",
		Ext:         ".jpg",
	}, nil
}

// Fit scales img down, preserving aspect ratio, so it fits within
// maxW x maxH. Images already within bounds are returned unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	ratio := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*ratio))
	nh := max(1, int(float64(h)*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
