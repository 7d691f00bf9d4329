package port

import "context"

// Resizer renders a source image at a target width
type Resizer interface {
	// Resize returns the encoded thumbnail bytes
	Resize(ctx context.Context, sourcePath string, width, quality int) ([]byte, error)
}
