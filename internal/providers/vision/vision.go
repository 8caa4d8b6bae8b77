package vision

import (
	"context"

	"spinshot/internal/domain"
)

// Observation is the normalized output of the describe stage: the free-text
// visual description and the video prompt composed from it.
type Observation struct {
	Description string
	VideoPrompt string
}

// Describer analyzes a product image and returns what the video prompt needs
// to know about it. Failures wrap domain.ErrDescriptionFailed and are fatal
// to the job; no fallback text is fabricated.
type Describer interface {
	Describe(ctx context.Context, ref domain.ImageRef, productName string) (*Observation, error)
}
