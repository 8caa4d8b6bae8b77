package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"spinshot/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestDescriber(t *testing.T, rt roundTripFunc) *GeminiDescriber {
	t.Helper()
	describer, err := NewGeminiDescriber(GeminiOptions{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("NewGeminiDescriber returned error: %v", err)
	}
	return describer
}

func TestNewGeminiDescriberRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiDescriber(GeminiOptions{})
	if !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("error = %v, want ErrConfigurationMissing", err)
	}
}

func TestDescribeParsesCandidateText(t *testing.T) {
	var captured geminiRequest
	describer := newTestDescriber(t, func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Fatalf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"A red ceramic mug with a glossy glaze."}]}}]}`), nil
	})

	obs, err := describer.Describe(context.Background(), domain.ImageRef{Data: []byte("jpeg"), MIME: "image/jpeg"}, "Red Mug")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if obs.Description != "A red ceramic mug with a glossy glaze." {
		t.Fatalf("Description = %q", obs.Description)
	}
	if !strings.Contains(obs.VideoPrompt, "Red Mug") {
		t.Fatalf("VideoPrompt = %q, want product name embedded", obs.VideoPrompt)
	}
	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 2 {
		t.Fatalf("request parts = %+v, want instruction + image", captured.Contents)
	}
	if captured.Contents[0].Parts[1].InlineData == nil {
		t.Fatal("inline image bytes should be sent as inlineData")
	}
}

func TestDescribeSendsFileDataForURLReferences(t *testing.T) {
	var captured geminiRequest
	describer := newTestDescriber(t, func(r *http.Request) (*http.Response, error) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"desc"}]}}]}`), nil
	})
	if _, err := describer.Describe(context.Background(), domain.ImageRef{URL: "https://cdn.example/mug.jpg"}, "Mug"); err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	fileData := captured.Contents[0].Parts[1].FileData
	if fileData == nil || fileData.FileURI != "https://cdn.example/mug.jpg" {
		t.Fatalf("fileData = %+v, want hosted url", fileData)
	}
}

func TestDescribeEmptyCandidatesIsDescriptionFailed(t *testing.T) {
	describer := newTestDescriber(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
	})
	_, err := describer.Describe(context.Background(), domain.ImageRef{Data: []byte("jpeg")}, "Mug")
	if !errors.Is(err, domain.ErrDescriptionFailed) {
		t.Fatalf("error = %v, want ErrDescriptionFailed", err)
	}
}

func TestDescribeProviderErrorCarriesDetail(t *testing.T) {
	describer := newTestDescriber(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":{"code":400,"message":"invalid image"}}`), nil
	})
	_, err := describer.Describe(context.Background(), domain.ImageRef{Data: []byte("jpeg")}, "Mug")
	if !errors.Is(err, domain.ErrDescriptionFailed) {
		t.Fatalf("error = %v, want ErrDescriptionFailed", err)
	}
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Detail != "invalid image" {
		t.Fatalf("error = %v, want stage detail from provider", err)
	}
}

func TestDescribeTransportErrorIsDescriptionFailed(t *testing.T) {
	describer := newTestDescriber(t, func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := describer.Describe(context.Background(), domain.ImageRef{Data: []byte("jpeg")}, "Mug")
	if !errors.Is(err, domain.ErrDescriptionFailed) {
		t.Fatalf("error = %v, want ErrDescriptionFailed", err)
	}
}
