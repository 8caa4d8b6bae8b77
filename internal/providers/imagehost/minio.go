package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"spinshot/internal/domain"
)

// MinIOOptions configures the S3-compatible host.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
	UseSSL    bool
}

// MinIOHost stores image bytes in an S3-compatible bucket and serves them
// through a public base URL. References that are already remote URLs are
// passed through untouched.
type MinIOHost struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOHost connects to the object storage endpoint.
func NewMinIOHost(opts MinIOOptions) (*MinIOHost, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("imagehost: minio credentials: %w", domain.ErrConfigurationMissing)
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("imagehost: minio client: %w", err)
	}
	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, opts.Endpoint)
	}
	return &MinIOHost{client: client, bucket: opts.Bucket, publicURL: publicURL}, nil
}

// Upload writes inline bytes to the bucket under an opaque key and returns
// the public URL. URL references are already fetchable and returned as-is.
func (h *MinIOHost) Upload(ctx context.Context, ref domain.ImageRef, suggestedName string) (string, error) {
	if ref.Empty() {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, "empty image reference")
	}
	if !ref.Inline() {
		return ref.URL, nil
	}

	key := objectKey(suggestedName, ref)
	contentType := ref.MIME
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := h.client.PutObject(ctx, h.bucket, key, bytes.NewReader(ref.Data), int64(len(ref.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", domain.NewStageError(domain.StageUpload, domain.ErrUploadFailed, err.Error())
	}
	return fmt.Sprintf("%s/%s/%s", h.publicURL, h.bucket, key), nil
}

func objectKey(suggestedName string, ref domain.ImageRef) string {
	name := strings.TrimSpace(suggestedName)
	if name == "" {
		name = ref.Name
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
	ext := path.Ext(name)
	if ext == "" {
		ext = extensionForMIME(ref.MIME)
		name += ext
	}
	return fmt.Sprintf("uploads/%s-%s", uuid.NewString(), name)
}

func extensionForMIME(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

var _ Uploader = (*MinIOHost)(nil)
