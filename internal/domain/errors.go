package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUploadFailed         = errors.New("upload failed")
	ErrDescriptionFailed    = errors.New("description failed")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Stage names the pipeline step a StageError originated from.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageDescribe   Stage = "describe"
	StageSynthesize Stage = "synthesize"
)

// StageError attaches the failing stage and provider detail to one of the
// sentinel errors above.
type StageError struct {
	Stage  Stage
	Detail string
	Err    error
}

func (e *StageError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Stage, e.Err, e.Detail)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps a sentinel with stage and provider detail.
func NewStageError(stage Stage, err error, detail string) *StageError {
	return &StageError{Stage: stage, Detail: detail, Err: err}
}

// FailureReason maps a pipeline error to the reason string stored on the job.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrGenerationTimeout):
		return "GenerationTimeout"
	case errors.Is(err, ErrGenerationFailed):
		return "GenerationFailed"
	case errors.Is(err, ErrDescriptionFailed):
		return "DescriptionFailed"
	case errors.Is(err, ErrUploadFailed):
		return "UploadFailed"
	case errors.Is(err, ErrConfigurationMissing):
		return "ConfigurationMissing"
	default:
		return "Internal"
	}
}
