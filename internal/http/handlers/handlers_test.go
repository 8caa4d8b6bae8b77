package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"spinshot/internal/adapter/repo"
	"spinshot/internal/domain"
	"spinshot/internal/http/handlers"
	"spinshot/internal/http/httpapi"
	"spinshot/internal/pipeline"
	"spinshot/internal/providers/video"
	"spinshot/internal/providers/vision"
)

type errorResponse struct {
	JobID string `json:"job_id"`
	Error struct {
		Stage   string `json:"stage"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

type jobView struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	HasVideo   bool   `json:"has_video"`
	VideoBytes int    `json:"video_bytes"`
}

type fakeDescriber struct {
	describe func(domain.ImageRef, string) (*vision.Observation, error)
}

func (f fakeDescriber) Describe(ctx context.Context, ref domain.ImageRef, productName string) (*vision.Observation, error) {
	if f.describe != nil {
		return f.describe(ref, productName)
	}
	description := "A red ceramic mug."
	return &vision.Observation{
		Description: description,
		VideoPrompt: vision.ComposeVideoPrompt(productName, description),
	}, nil
}

type fakeSynthesizer struct {
	calls    int
	generate func(video.GenerateRequest) (*video.Video, error)
}

func (f *fakeSynthesizer) Generate(ctx context.Context, req video.GenerateRequest) (*video.Video, error) {
	f.calls++
	if f.generate != nil {
		return f.generate(req)
	}
	return &video.Video{Data: []byte("mp4-bytes"), MIME: "video/mp4"}, nil
}

func newTestServer(describer fakeDescriber, synthesizer *fakeSynthesizer) (*httptest.Server, domain.JobStore) {
	store := repo.NewMemoryJobStore()
	runner := pipeline.NewRunner(store, nil, describer, synthesizer, zerolog.Nop())
	app := handlers.NewApp(runner, store, zerolog.Nop())
	router := httpapi.NewRouter(app, zerolog.Nop(), nil)
	return httptest.NewServer(router), store
}

func TestGenerateJSONStreamsVideo(t *testing.T) {
	server, store := newTestServer(fakeDescriber{}, &fakeSynthesizer{})
	defer server.Close()

	body := `{"product_name":"Red Mug","image_url":"https://example.com/mug.jpg"}`
	resp, err := http.Post(server.URL+"/v1/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("Content-Type = %q, want video/mp4", ct)
	}
	jobID := resp.Header.Get("X-Job-ID")
	if jobID == "" {
		t.Fatal("X-Job-ID header missing")
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if buf.String() != "mp4-bytes" {
		t.Fatalf("body = %q, want video payload", buf.String())
	}

	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Status = %s, want completed", job.Status)
	}
}

func TestGenerateMultipartStreamsVideo(t *testing.T) {
	server, _ := newTestServer(fakeDescriber{}, &fakeSynthesizer{})
	defer server.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("product_name", "Red Mug")
	part, _ := writer.CreateFormFile("image", "mug.jpg")
	_, _ = part.Write([]byte("jpegbytes"))
	_ = writer.Close()

	resp, err := http.Post(server.URL+"/v1/generate", writer.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGenerateValidationErrors(t *testing.T) {
	server, _ := newTestServer(fakeDescriber{}, &fakeSynthesizer{})
	defer server.Close()

	cases := []string{
		`{"image_url":"https://example.com/mug.jpg"}`,
		`{"product_name":"Mug"}`,
		`{"product_name":"Mug","image_url":"https://example.com/a.jpg","image_base64":"QUJD"}`,
		`not json`,
	}
	for _, body := range cases {
		resp, err := http.Post(server.URL+"/v1/generate", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d for body %q, want 400", resp.StatusCode, body)
		}
	}
}

func TestGenerateDescribeFailureReturnsStructuredError(t *testing.T) {
	describer := fakeDescriber{describe: func(ref domain.ImageRef, name string) (*vision.Observation, error) {
		return nil, domain.NewStageError(domain.StageDescribe, domain.ErrDescriptionFailed, "empty candidate text")
	}}
	synthesizer := &fakeSynthesizer{}
	server, store := newTestServer(describer, synthesizer)
	defer server.Close()

	body := `{"product_name":"Red Mug","image_url":"https://example.com/mug.jpg"}`
	resp, err := http.Post(server.URL+"/v1/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var parsed errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if parsed.Error.Stage != "describe" || parsed.Error.Reason != "DescriptionFailed" {
		t.Fatalf("error body = %+v", parsed)
	}
	if synthesizer.calls != 0 {
		t.Fatalf("synthesizer called %d times, want 0", synthesizer.calls)
	}
	job, err := store.Get(context.Background(), parsed.JobID)
	if err != nil {
		t.Fatalf("failed job not stored: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("Status = %s, want failed", job.Status)
	}
}

func TestGenerateTimeoutMapsToGatewayTimeout(t *testing.T) {
	synthesizer := &fakeSynthesizer{generate: func(req video.GenerateRequest) (*video.Video, error) {
		return nil, domain.NewStageError(domain.StageSynthesize, domain.ErrGenerationTimeout, "not done after 30 polls")
	}}
	server, _ := newTestServer(fakeDescriber{}, synthesizer)
	defer server.Close()

	body := `{"product_name":"Red Mug","image_url":"https://example.com/mug.jpg"}`
	resp, err := http.Post(server.URL+"/v1/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", resp.StatusCode)
	}
	var parsed errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	if parsed.Error.Reason != "GenerationTimeout" {
		t.Fatalf("reason = %q, want GenerationTimeout", parsed.Error.Reason)
	}
}

func TestJobEndpoints(t *testing.T) {
	server, store := newTestServer(fakeDescriber{}, &fakeSynthesizer{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/jobs/does-not-exist")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	body := `{"product_name":"Red Mug","image_url":"https://example.com/mug.jpg"}`
	genResp, err := http.Post(server.URL+"/v1/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID := genResp.Header.Get("X-Job-ID")
	genResp.Body.Close()

	resp, err = http.Get(server.URL + "/v1/jobs/" + jobID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var view jobView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode job view: %v", err)
	}
	resp.Body.Close()
	if view.Status != "completed" || !view.HasVideo || view.VideoBytes == 0 {
		t.Fatalf("job view = %+v", view)
	}

	resp, err = http.Get(server.URL + "/v1/jobs/" + jobID + "/video")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || buf.String() != "mp4-bytes" {
		t.Fatalf("video download status=%d body=%q", resp.StatusCode, buf.String())
	}

	resp, err = http.Get(server.URL + "/v1/jobs")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var list struct {
		Items []jobView `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(list.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(list.Items))
	}

	// Verify the store backs it all.
	if _, err := store.Get(context.Background(), jobID); err != nil {
		t.Fatalf("store missing job: %v", err)
	}
}
