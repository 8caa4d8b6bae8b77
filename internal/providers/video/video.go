package video

import (
	"context"

	"spinshot/internal/domain"
)

// GenerateRequest carries the inputs of the synthesize stage. Reference
// images condition the output so the generated video matches the real
// product rather than a generic approximation.
type GenerateRequest struct {
	Prompt          string
	ProductName     string
	ReferenceImages []domain.ImageRef
}

// Video is raw generated video content.
type Video struct {
	Data []byte
	MIME string
}

// Synthesizer turns a prompt plus reference images into a video. Provider
// errors wrap domain.ErrGenerationFailed; an exhausted poll budget wraps
// domain.ErrGenerationTimeout.
type Synthesizer interface {
	Generate(ctx context.Context, req GenerateRequest) (*Video, error)
}
