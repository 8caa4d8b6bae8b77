// Package pipeline sequences the three provider calls that turn a product
// photo into a rotation video: host the image, describe it, synthesize the
// video. Each stage's output is persisted on the job record before the next
// stage begins, so a crash mid-run still leaves an auditable partial record.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"spinshot/internal/domain"
	"spinshot/internal/providers/imagehost"
	"spinshot/internal/providers/video"
	"spinshot/internal/providers/vision"
)

// Runner owns one pipeline configuration: the store and the three provider
// capabilities. Uploader may be nil, in which case the hosting stage is
// skipped and original references are used throughout.
type Runner struct {
	store       domain.JobStore
	uploader    imagehost.Uploader
	describer   vision.Describer
	synthesizer video.Synthesizer
	logger      zerolog.Logger
}

// Input is one generation request.
type Input struct {
	ProductName      string
	SourceImage      domain.ImageRef
	AdditionalImages []domain.ImageRef
}

// NewRunner wires the pipeline dependencies.
func NewRunner(store domain.JobStore, uploader imagehost.Uploader, describer vision.Describer, synthesizer video.Synthesizer, logger zerolog.Logger) *Runner {
	return &Runner{
		store:       store,
		uploader:    uploader,
		describer:   describer,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Run executes the full pipeline for one job and returns the final record.
// The returned error is the fatal stage error when the job failed, nil when
// it completed. There is no automatic retry; resubmission creates a new job.
func (r *Runner) Run(ctx context.Context, in Input) (*domain.Job, error) {
	job := &domain.Job{
		ProductName:      in.ProductName,
		SourceImage:      in.SourceImage,
		AdditionalImages: in.AdditionalImages,
		Status:           domain.JobStatusPending,
	}
	if err := r.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("pipeline: create job: %w", err)
	}
	log := r.logger.With().Str("job_id", job.ID).Logger()

	// Stage 1: best-effort hosting. Individual failures degrade to the
	// original reference and never abort the job.
	primaryRef, extraRefs := r.hostImages(ctx, log, job, in)

	job, err := r.advance(ctx, job.ID, domain.JobStatusAnalyzing, nil)
	if err != nil {
		return job, err
	}

	// Stage 2: describe. Fatal on failure; the synthesizer is never invoked.
	observation, err := r.describer.Describe(ctx, primaryRef, in.ProductName)
	if err != nil {
		log.Error().Err(err).Msg("pipeline: describe stage failed")
		return r.fail(ctx, job.ID, err)
	}
	job, err = r.advance(ctx, job.ID, domain.JobStatusGenerating, &domain.JobPatch{
		Description: &observation.Description,
		VideoPrompt: &observation.VideoPrompt,
	})
	if err != nil {
		return job, err
	}
	log.Info().Str("status", string(job.Status)).Msg("pipeline: description persisted")

	// Stage 3: synthesize with the full set of resolved references.
	references := append([]domain.ImageRef{primaryRef}, extraRefs...)
	result, err := r.synthesizer.Generate(ctx, video.GenerateRequest{
		Prompt:          observation.VideoPrompt,
		ProductName:     in.ProductName,
		ReferenceImages: references,
	})
	if err != nil {
		log.Error().Err(err).Msg("pipeline: synthesize stage failed")
		return r.fail(ctx, job.ID, err)
	}

	mime := result.MIME
	job, err = r.advance(ctx, job.ID, domain.JobStatusCompleted, &domain.JobPatch{
		VideoPayload: result.Data,
		VideoMIME:    &mime,
	})
	if err != nil {
		return job, err
	}
	log.Info().Int("video_bytes", len(result.Data)).Str("mime", mime).Msg("pipeline: job completed")
	return job, nil
}

// hostImages uploads the primary and each additional image independently,
// keeping the original reference for any upload that fails.
func (r *Runner) hostImages(ctx context.Context, log zerolog.Logger, job *domain.Job, in Input) (domain.ImageRef, []domain.ImageRef) {
	primaryRef := in.SourceImage
	extraRefs := append([]domain.ImageRef(nil), in.AdditionalImages...)
	if r.uploader == nil {
		return primaryRef, extraRefs
	}

	patch := domain.JobPatch{}
	if hostedURL, err := r.uploader.Upload(ctx, in.SourceImage, suggestedName(in.ProductName, 0)); err != nil {
		log.Warn().Err(err).Msg("pipeline: primary image upload failed, using original reference")
	} else {
		primaryRef = domain.ImageRef{URL: hostedURL, MIME: in.SourceImage.MIME}
		patch.HostedImageURL = &hostedURL
	}

	var hostedExtras []string
	for i, ref := range in.AdditionalImages {
		hostedURL, err := r.uploader.Upload(ctx, ref, suggestedName(in.ProductName, i+1))
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("pipeline: additional image upload failed, using original reference")
			hostedExtras = append(hostedExtras, "")
			continue
		}
		extraRefs[i] = domain.ImageRef{URL: hostedURL, MIME: ref.MIME}
		hostedExtras = append(hostedExtras, hostedURL)
	}
	if len(hostedExtras) > 0 {
		patch.HostedExtraURLs = hostedExtras
	}
	if patch.HostedImageURL != nil || patch.HostedExtraURLs != nil {
		if _, err := r.store.Update(ctx, job.ID, patch); err != nil {
			log.Warn().Err(err).Msg("pipeline: persisting hosted urls failed")
		}
	}
	return primaryRef, extraRefs
}

// advance moves the job to the next status, merging any extra fields in the
// same store write.
func (r *Runner) advance(ctx context.Context, jobID string, to domain.JobStatus, patch *domain.JobPatch) (*domain.Job, error) {
	current, err := r.store.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load job: %w", err)
	}
	if !domain.CanTransition(current.Status, to) {
		return current, fmt.Errorf("pipeline: illegal transition %s -> %s", current.Status, to)
	}
	if patch == nil {
		patch = &domain.JobPatch{}
	}
	patch.Status = &to
	updated, err := r.store.Update(ctx, jobID, *patch)
	if err != nil {
		return current, fmt.Errorf("pipeline: update job: %w", err)
	}
	return updated, nil
}

// fail marks the job failed with the stage's reason and surfaces the error.
func (r *Runner) fail(ctx context.Context, jobID string, cause error) (*domain.Job, error) {
	status := domain.JobStatusFailed
	reason := domain.FailureReason(cause)
	message := cause.Error()
	job, err := r.store.Update(ctx, jobID, domain.JobPatch{
		Status:        &status,
		FailureReason: &reason,
		ErrorMessage:  &message,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: mark failed: %w", err)
	}
	return job, cause
}

func suggestedName(productName string, index int) string {
	if index == 0 {
		return productName
	}
	return fmt.Sprintf("%s-%d", productName, index)
}
