package imagehost

import (
	"context"

	"spinshot/internal/domain"
)

// Uploader pushes an image to a publicly fetchable location and returns its
// URL. Implementations must map provider failures to domain.ErrUploadFailed;
// the pipeline treats those as non-fatal and falls back to the original
// reference.
type Uploader interface {
	Upload(ctx context.Context, ref domain.ImageRef, suggestedName string) (string, error)
}
