package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"

	"github.com/nfnt/resize"
	"github.com/teskapnj/book-container/internal/models"
)

// ErrUnsupportedImage is returned when the input cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("unsupported image format or corrupt image")

// Options controls the optimization pass.
type Options struct {
	MaxDimension       int // longest side of the upload-quality copy
	ThumbnailDimension int // longest side of the preview copy
	Quality            int // JPEG quality for re-encoding
	MaxSizeBytes       int64
}

// Result holds the two derived copies and compression bookkeeping.
type Result struct {
	Upload  []byte
	Preview []byte
	Stats   models.ImageStats
}

// IOptimizer defines the interface for the client-side image pipeline.
type IOptimizer interface {
	Optimize(raw []byte, opts Options) (*Result, error)
}

type optimizer struct{}

// NewOptimizer creates a new image optimizer.
func NewOptimizer() IOptimizer {
	return &optimizer{}
}

// Optimize decodes raw image bytes and produces a small preview and an
// upload-quality JPEG bounded by opts.MaxDimension. Compression is only kept
// when it actually shrinks the payload; otherwise the original bytes are
// used as-is and Stats.CompressionApplied is false.
func (o *optimizer) Optimize(raw []byte, opts Options) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Printf("Error decoding image: %v", err)
		return nil, ErrUnsupportedImage
	}
	log.Printf("Decoded image, format: %s, size: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	quality := opts.Quality
	if quality <= 0 {
		quality = 85
	}

	maxDim := uint(opts.MaxDimension)
	if opts.MaxDimension <= 0 {
		maxDim = 1200
	}
	needsResize := uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim

	uploadImg := img
	if needsResize {
		uploadImg = resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	}

	var uploadBuf bytes.Buffer
	if err := jpeg.Encode(&uploadBuf, uploadImg, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode upload image: %w", err)
	}

	upload := uploadBuf.Bytes()
	compressed := true
	// Keep the original if re-encoding did not help and no resize was needed.
	if !needsResize && int64(len(upload)) >= int64(len(raw)) {
		upload = raw
		compressed = false
	}

	if opts.MaxSizeBytes > 0 && int64(len(upload)) > opts.MaxSizeBytes {
		return nil, fmt.Errorf("optimized image still exceeds max size (%d > %d bytes)", len(upload), opts.MaxSizeBytes)
	}

	thumbDim := uint(opts.ThumbnailDimension)
	if thumbDim == 0 {
		thumbDim = 160
	}
	previewImg := resize.Thumbnail(thumbDim, thumbDim, img, resize.Lanczos3)
	var previewBuf bytes.Buffer
	if err := jpeg.Encode(&previewBuf, previewImg, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview image: %w", err)
	}

	stats := models.ImageStats{
		OriginalBytes:      len(raw),
		OptimizedBytes:     len(upload),
		CompressionApplied: compressed,
	}
	if len(raw) > 0 {
		stats.CompressionRatio = float64(len(upload)) / float64(len(raw))
	}

	return &Result{
		Upload:  upload,
		Preview: previewBuf.Bytes(),
		Stats:   stats,
	}, nil
}
