package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"spinshot/internal/domain"
)

const (
	veoDefaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	veoDefaultModel        = "veo-3.0-generate-001"
	veoDefaultPollInterval = 10 * time.Second
	veoDefaultMaxPolls     = 30
	veoDefaultMIME         = "video/mp4"

	// referenceSlots is how many conditioning slots a single reference image
	// is expanded into. Duplicating the one real product photo increases its
	// conditioning weight on this provider; it is a heuristic, not a
	// correctness requirement.
	referenceSlots = 3
)

// Sleep pauses between operation polls. Injectable so tests can simulate
// time without real delays.
type Sleep func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VeoOptions configures the Veo synthesizer.
type VeoOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
	Sleep        Sleep
}

// VeoSynthesizer starts a long-running video generation operation and polls
// it at a fixed interval until completion, failure or an exhausted budget.
type VeoSynthesizer struct {
	apiKey       string
	model        string
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	client       *http.Client
	sleep        Sleep
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
	URI                string `json:"uri,omitempty"`
}

type veoReferenceImage struct {
	Image         veoImage `json:"image"`
	ReferenceType string   `json:"referenceType,omitempty"`
}

type veoInstance struct {
	Prompt          string              `json:"prompt"`
	Image           *veoImage           `json:"image,omitempty"`
	ReferenceImages []veoReferenceImage `json:"referenceImages,omitempty"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type veoPredictRequest struct {
	Instances  []veoInstance  `json:"instances"`
	Parameters *veoParameters `json:"parameters,omitempty"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video veoImage `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// NewVeoSynthesizer validates credentials and builds the client. A missing
// API key is a configuration error surfaced before any network call.
func NewVeoSynthesizer(opts VeoOptions) (*VeoSynthesizer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("video: veo api key: %w", domain.ErrConfigurationMissing)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = veoDefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = veoDefaultModel
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = veoDefaultPollInterval
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = veoDefaultMaxPolls
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = realSleep
	}
	return &VeoSynthesizer{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		client:       client,
		sleep:        sleep,
	}, nil
}

// Generate starts the operation and polls it to completion.
func (v *VeoSynthesizer) Generate(ctx context.Context, req GenerateRequest) (*Video, error) {
	op, err := v.start(ctx, req)
	if err != nil {
		return nil, err
	}
	return v.await(ctx, op)
}

func (v *VeoSynthesizer) start(ctx context.Context, req GenerateRequest) (string, error) {
	instance := veoInstance{Prompt: req.Prompt}

	refs := req.ReferenceImages
	if len(refs) == 1 {
		expanded := make([]domain.ImageRef, 0, referenceSlots)
		for i := 0; i < referenceSlots; i++ {
			expanded = append(expanded, refs[0])
		}
		refs = expanded
	}
	for i, ref := range refs {
		img := encodeImage(ref)
		if img == nil {
			continue
		}
		if i == 0 {
			instance.Image = img
		}
		instance.ReferenceImages = append(instance.ReferenceImages, veoReferenceImage{
			Image:         *img,
			ReferenceType: "asset",
		})
	}

	payload := veoPredictRequest{
		Instances:  []veoInstance{instance},
		Parameters: &veoParameters{AspectRatio: "16:9"},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("video: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", v.baseURL, url.PathEscape(v.model))
	op, err := v.doOperationRequest(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, "response missing operation name")
	}
	return op.Name, nil
}

func (v *VeoSynthesizer) await(ctx context.Context, operation string) (*Video, error) {
	for attempt := 0; attempt < v.maxPolls; attempt++ {
		if err := v.sleep(ctx, v.pollInterval); err != nil {
			return nil, err
		}
		op, err := v.doOperationRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%s", v.baseURL, operation), nil)
		if err != nil {
			return nil, err
		}
		if !op.Done {
			continue
		}
		if op.Error != nil {
			detail := op.Error.Message
			if detail == "" {
				detail = fmt.Sprintf("provider error code %d", op.Error.Code)
			}
			return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, detail)
		}
		return v.extractVideo(ctx, op)
	}
	return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationTimeout,
		fmt.Sprintf("operation %s not done after %d polls", operation, v.maxPolls))
}

func (v *VeoSynthesizer) doOperationRequest(ctx context.Context, method, endpoint string, body io.Reader) (*veoOperation, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("video: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-goog-api-key", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 128<<20))
	if err != nil {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, err.Error())
	}
	if resp.StatusCode >= 300 {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(raw, 512)))
	}
	var op veoOperation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed,
			fmt.Sprintf("status %d: unparseable body", resp.StatusCode))
	}
	return &op, nil
}

func (v *VeoSynthesizer) extractVideo(ctx context.Context, op *veoOperation) (*Video, error) {
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, "operation done without video payload")
	}
	sample := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video
	mime := sample.MimeType
	if mime == "" {
		mime = veoDefaultMIME
	}
	if sample.BytesBase64Encoded != "" {
		data, err := base64.StdEncoding.DecodeString(sample.BytesBase64Encoded)
		if err != nil {
			return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, "invalid base64 video payload")
		}
		return &Video{Data: data, MIME: mime}, nil
	}
	if sample.URI != "" {
		data, err := v.download(ctx, sample.URI)
		if err != nil {
			return nil, err
		}
		return &Video{Data: data, MIME: mime}, nil
	}
	return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, "video sample missing bytes and uri")
}

func (v *VeoSynthesizer) download(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("video: build download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", v.apiKey)
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed,
			fmt.Sprintf("video download status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512<<20))
	if err != nil {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationFailed, err.Error())
	}
	return data, nil
}

func encodeImage(ref domain.ImageRef) *veoImage {
	switch {
	case ref.Inline():
		mime := ref.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		return &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(ref.Data),
			MimeType:           mime,
		}
	case ref.URL != "":
		return &veoImage{URI: ref.URL, MimeType: ref.MIME}
	default:
		return nil
	}
}

// truncate caps the provider error body without splitting a multi-byte rune
// at the cut point.
func truncate(raw []byte, limit int) string {
	s := strings.TrimSpace(string(raw))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var _ Synthesizer = (*VeoSynthesizer)(nil)
