package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"notesy/internal/logging"
)

// File is an image that has not left the client yet.
type File struct {
	Name string
	Type string
	Data []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// State is the compression state of a pending upload.
type State int

const (
	StateRaw         State = iota // at or below the threshold, sent as-is
	StateCompressing              // compression in flight
	StateCompressed               // re-encoded as JPEG
	StateFallback                 // compression failed, original bytes kept
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateCompressing:
		return "compressing"
	case StateCompressed:
		return "compressed"
	case StateFallback:
		return "fallback"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Compressor downsamples oversized images before upload.
type Compressor struct {
	Threshold    int64 // bytes; files above it are recompressed
	MaxDimension int   // px, applied to both sides
	Quality      int   // JPEG quality 1..100
}

func NewCompressor() *Compressor {
	return &Compressor{
		Threshold:    1 << 20,
		MaxDimension: 1200,
		Quality:      80,
	}
}

// Compress returns f unchanged when it is small enough, otherwise a JPEG re-encoding that fits
// MaxDimension×MaxDimension and keeps f's name. A file that cannot be decoded or encoded is
// returned as-is with StateFallback; Compress never drops a file.
func (c *Compressor) Compress(ctx context.Context, f File) (File, State) {
	if f.Size() <= c.Threshold {
		return f, StateRaw
	}

	out, err := c.compress(f)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("file", f.Name).Msg("compression failed, using original")
		return f, StateFallback
	}

	logging.Ctx(ctx).Debug().
		Str("file", f.Name).
		Int64("before", f.Size()).
		Int64("after", out.Size()).
		Msg("compressed image")
	return out, StateCompressed
}

func (c *Compressor) compress(f File) (File, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkPixels(cfg); err != nil {
		return File{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), c.MaxDimension, c.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Resize(img, w, h), &jpeg.Options{Quality: c.Quality}); err != nil {
		return File{}, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	return File{Name: f.Name, Type: "image/jpeg", Data: buf.Bytes()}, nil
}

// CompressAll compresses files one at a time, in order, so only one decoded image is held in
// memory. It stops early if ctx is cancelled and returns what it has so far.
func (c *Compressor) CompressAll(ctx context.Context, files []File) ([]File, []State) {
	out := make([]File, 0, len(files))
	states := make([]State, 0, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		cf, st := c.Compress(ctx, f)
		out = append(out, cf)
		states = append(states, st)
	}
	return out, states
}
