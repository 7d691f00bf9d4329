package resize

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
)

// Resizer renders JPEG thumbnails with disintegration/imaging
type Resizer struct {
	filter imaging.ResampleFilter
}

// Ensure Resizer implements port.Resizer
var _ port.Resizer = (*Resizer)(nil)

// NewResizer creates a new Resizer using Lanczos resampling
func NewResizer() *Resizer {
	return &Resizer{filter: imaging.Lanczos}
}

// Resize decodes sourcePath, applies EXIF orientation, scales it to width
// preserving the aspect ratio and encodes it as JPEG. Images narrower than
// width are re-encoded at their original size.
func (r *Resizer) Resize(ctx context.Context, sourcePath string, width, quality int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid width: %d", width)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, r.filter)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
