package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"spinshot/internal/domain"
	"spinshot/internal/pipeline"
)

const (
	maxUploadBytes = 32 << 20
	maxExtraImages = 4
)

type generateRequest struct {
	ProductName    string   `json:"product_name" validate:"required,min=1,max=120"`
	ImageURL       string   `json:"image_url" validate:"omitempty,url"`
	ImageBase64    string   `json:"image_base64" validate:"omitempty,base64"`
	ImageMIME      string   `json:"image_mime"`
	ExtraImageURLs []string `json:"extra_image_urls" validate:"omitempty,max=4,dive,url"`
}

// Generate accepts a product photo plus name, runs the full pipeline
// synchronously and streams the finished video back. The request body is
// either multipart form data (image file upload) or JSON (image url /
// base64 bytes).
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	in, err := a.decodeGenerateInput(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	job, runErr := a.Pipeline.Run(r.Context(), *in)
	if runErr != nil {
		a.pipelineError(w, job, runErr)
		return
	}

	w.Header().Set("X-Job-ID", job.ID)
	w.Header().Set("Content-Type", job.VideoMIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(job.VideoPayload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.VideoPayload)
}

func (a *App) pipelineError(w http.ResponseWriter, job *domain.Job, err error) {
	code := http.StatusBadGateway
	if errors.Is(err, domain.ErrGenerationTimeout) {
		code = http.StatusGatewayTimeout
	}
	resp := errorResponse{Error: errorBody{
		Reason:  domain.FailureReason(err),
		Message: err.Error(),
	}}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		resp.Error.Stage = string(stageErr.Stage)
	}
	if job != nil {
		resp.JobID = job.ID
	}
	a.json(w, code, resp)
}

func (a *App) decodeGenerateInput(r *http.Request) (*pipeline.Input, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		return a.decodeMultipart(r)
	}
	return a.decodeJSON(r)
}

func (a *App) decodeJSON(r *http.Request) (*pipeline.Input, error) {
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	req.ProductName = strings.TrimSpace(req.ProductName)
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if (req.ImageURL == "") == (req.ImageBase64 == "") {
		return nil, errors.New("exactly one of image_url and image_base64 is required")
	}

	in := &pipeline.Input{ProductName: req.ProductName}
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, errors.New("image_base64 is not valid base64")
		}
		in.SourceImage = domain.ImageRef{Data: data, MIME: orDefault(req.ImageMIME, "image/jpeg"), Name: req.ProductName}
	} else {
		in.SourceImage = domain.ImageRef{URL: req.ImageURL}
	}
	for _, u := range req.ExtraImageURLs {
		in.AdditionalImages = append(in.AdditionalImages, domain.ImageRef{URL: u})
	}
	return in, nil
}

func (a *App) decodeMultipart(r *http.Request) (*pipeline.Input, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	productName := strings.TrimSpace(r.FormValue("product_name"))
	if productName == "" || len(productName) > 120 {
		return nil, errors.New("product_name is required and must be at most 120 characters")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("image file is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image file is empty")
	}

	in := &pipeline.Input{
		ProductName: productName,
		SourceImage: domain.ImageRef{
			Data: data,
			MIME: orDefault(header.Header.Get("Content-Type"), "image/jpeg"),
			Name: header.Filename,
		},
	}

	if r.MultipartForm != nil {
		extras := r.MultipartForm.File["extra_image"]
		if len(extras) > maxExtraImages {
			return nil, fmt.Errorf("at most %d extra images are allowed", maxExtraImages)
		}
		for _, extraHeader := range extras {
			extra, err := extraHeader.Open()
			if err != nil {
				return nil, fmt.Errorf("read extra image: %w", err)
			}
			extraData, err := io.ReadAll(io.LimitReader(extra, maxUploadBytes))
			extra.Close()
			if err != nil {
				return nil, fmt.Errorf("read extra image: %w", err)
			}
			in.AdditionalImages = append(in.AdditionalImages, domain.ImageRef{
				Data: extraData,
				MIME: orDefault(extraHeader.Header.Get("Content-Type"), "image/jpeg"),
				Name: extraHeader.Filename,
			})
		}
	}
	return in, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
