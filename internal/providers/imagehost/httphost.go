package imagehost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"spinshot/internal/domain"
)

// HTTPHostOptions configures the image-bed upload client.
type HTTPHostOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HTTPHost uploads images to an image-bed style hosting API: a single POST
// with a multipart form carrying either the encoded bytes or a source URL,
// answered with a JSON body holding the hosted URL.
type HTTPHost struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPHost creates a client for the hosting endpoint.
func NewHTTPHost(opts HTTPHostOptions) (*HTTPHost, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("imagehost: base url: %w", domain.ErrConfigurationMissing)
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPHost{
		httpClient: client,
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
	}, nil
}

type hostResponse struct {
	Success    bool `json:"success"`
	StatusCode int  `json:"status_code"`
	Image      struct {
		URL string `json:"url"`
	} `json:"image"`
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the image and returns the hosted URL. Failures wrap
// domain.ErrUploadFailed with the provider's status and message.
func (h *HTTPHost) Upload(ctx context.Context, ref domain.ImageRef, suggestedName string) (string, error) {
	if h == nil {
		return "", errors.New("imagehost: client not configured")
	}
	if ref.Empty() {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, "empty image reference")
	}

	var body strings.Builder
	writer := multipart.NewWriter(&body)
	if h.apiKey != "" {
		_ = writer.WriteField("key", h.apiKey)
	}
	if suggestedName != "" {
		_ = writer.WriteField("name", suggestedName)
	}
	if ref.Inline() {
		_ = writer.WriteField("image", base64.StdEncoding.EncodeToString(ref.Data))
	} else {
		_ = writer.WriteField("image", ref.URL)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("imagehost: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, strings.NewReader(body.String()))
	if err != nil {
		return "", fmt.Errorf("imagehost: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, err.Error())
	}

	var parsed hostResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed,
			fmt.Sprintf("status %d: unparseable body", resp.StatusCode))
	}
	if resp.StatusCode >= 300 || (!parsed.Success && parsed.Image.URL == "" && parsed.Data.URL == "") {
		detail := parsed.Error.Message
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, detail)
	}
	url := parsed.Image.URL
	if url == "" {
		url = parsed.Data.URL
	}
	if url == "" {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, "response missing hosted url")
	}
	return url, nil
}

var _ Uploader = (*HTTPHost)(nil)
