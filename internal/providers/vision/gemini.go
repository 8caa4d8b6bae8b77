package vision

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

	"spinshot/internal/domain"
)

const (
	geminiDefaultTimeout = 30 * time.Second
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-2.5-flash"
)

// GeminiOptions configures the Gemini describer.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiDescriber calls the Gemini generateContent API with the product image
// and an analysis instruction, returning the model's visual description.
type GeminiDescriber struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature    float64 `json:"temperature,omitempty"`
	CandidateCount int     `json:"candidateCount,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewGeminiDescriber validates credentials and builds the client. A missing
// API key is a configuration error surfaced before any network call.
func NewGeminiDescriber(opts GeminiOptions) (*GeminiDescriber, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("vision: gemini api key: %w", domain.ErrConfigurationMissing)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = geminiDefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiDescriber{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Describe sends the image and instruction to Gemini and composes the video
// prompt from the returned description.
func (g *GeminiDescriber) Describe(ctx context.Context, ref domain.ImageRef, productName string) (*Observation, error) {
	if ref.Empty() {
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed, "empty image reference")
	}

	parts := []geminiPart{{Text: describeInstruction(productName)}}
	if ref.Inline() {
		mime := ref.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	} else {
		parts = append(parts, geminiPart{FileData: &geminiFileData{FileURI: ref.URL}})
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:    0.4,
			CandidateCount: 1,
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("vision: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return nil, fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed, err.Error())
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed,
			fmt.Sprintf("status %d: unparseable body", resp.StatusCode))
	}
	if resp.StatusCode >= 300 || parsed.Error.Message != "" {
		detail := parsed.Error.Message
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed, detail)
	}

	description := firstCandidateText(parsed)
	if description == "" {
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed, "empty candidate text")
	}
	return &Observation{
		Description: description,
		VideoPrompt: ComposeVideoPrompt(productName, description),
	}, nil
}

func (g *GeminiDescriber) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func firstCandidateText(resp geminiResponse) string {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func describeInstruction(productName string) string {
	return fmt.Sprintf(
		"You are a product photographer. Describe the product in this photo, named %q, in 2-3 sentences. "+
			"Focus on the product type, material, color, texture and distinctive visual details. "+
			"Describe only what is visible; do not invent features.",
		strings.TrimSpace(productName),
	)
}

var _ Describer = (*GeminiDescriber)(nil)
