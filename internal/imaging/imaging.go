// Package imaging shrinks raster images: the client-side Compressor that runs before upload and
// the Normalize step the media store applies to every accepted file.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	FormatAuto = "auto"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"

	// AutoQuality is the JPEG quality used when the caller asks for automatic quality.
	AutoQuality = 82

	// MaxPixels bounds the decoded size of any image; the header is checked before decoding.
	MaxPixels = 50_000_000
)

var ErrDecode = errors.New("imaging: cannot decode image")

// decodeBounded decodes data after checking the dimensions its header declares.
func decodeBounded(data []byte) (image.Image, image.Config, string, error) {
	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, cfg, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkPixels(cfg); err != nil {
		return nil, cfg, kind, err
	}
	if kind == "gif" {
		return nil, cfg, kind, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, cfg, kind, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, cfg, kind, nil
}

func checkPixels(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

// Fit scales w×h down so that neither side exceeds its bound, keeping the aspect ratio.
// Images already inside the bounds are returned unchanged. A bound of zero or less is ignored.
func Fit(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	if w*maxH >= h*maxW {
		return maxW, max((h*maxW+w/2)/w, 1)
	}
	return max((w*maxH+h/2)/h, 1), maxH
}

// Resize returns img scaled to w×h. It returns img itself when the size already matches.
func Resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Options mirror the media service upload options.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int    // 1..100, 0 = automatic
	Format    string // auto, jpeg or png
}

// Encoded is a normalized image ready to be stored.
type Encoded struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Normalize caps the image at opts.MaxWidth×opts.MaxHeight (never upscaling) and re-encodes it
// for web delivery. GIFs are passed through untouched so animations survive.
func Normalize(data []byte, opts Options) (Encoded, error) {
	img, cfg, kind, err := decodeBounded(data)
	if err != nil {
		return Encoded{}, err
	}
	if kind == "gif" {
		return Encoded{Data: data, ContentType: "image/gif", Width: cfg.Width, Height: cfg.Height}, nil
	}

	w, h := Fit(cfg.Width, cfg.Height, opts.MaxWidth, opts.MaxHeight)
	img = Resize(img, w, h)

	format := opts.Format
	if format == "" || format == FormatAuto {
		format = FormatJPEG
		if !opaque(img) {
			format = FormatPNG
		}
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG:
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = AutoQuality
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	default:
		return Encoded{}, fmt.Errorf("imaging: unsupported format %q", format)
	}
	if err != nil {
		return Encoded{}, fmt.Errorf("imaging: encode %s: %w", format, err)
	}
	return Encoded{Data: buf.Bytes(), ContentType: "image/" + format, Width: w, Height: h}, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}
