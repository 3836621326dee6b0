package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lovechat-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadExpiry = 5 * time.Minute

// Upload purposes; message media reuse models.MediaKind values
const (
	PurposeImage     = "image"
	PurposeAudio     = "audio"
	PurposeVideo     = "video"
	PurposeMemory    = "memory"
	PurposeWallpaper = "wallpaper"
)

var purposeMediaType = map[string]string{
	PurposeImage:     "image/",
	PurposeAudio:     "audio/",
	PurposeVideo:     "video/",
	PurposeMemory:    "image/",
	PurposeWallpaper: "image/",
}

var contentTypeExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/heic":      "heic",
	"image/webp":      "webp",
	"audio/mp4":       "m4a",
	"audio/m4a":       "m4a",
	"audio/x-m4a":     "m4a",
	"audio/mpeg":      "mp3",
	"audio/aac":       "aac",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
}

// Presigner is implemented by *s3.PresignClient
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService hands out presigned upload URLs. The core only ever stores the
// resulting object URL.
type MediaService struct {
	presigner Presigner
	bucket    string
	region    string
	endpoint  string
}

// NewMediaService builds an S3 presign client from configuration. Static keys
// and a custom endpoint are optional; without them the default AWS chain is used.
func NewMediaService(ctx context.Context, cfg config.AWSConfig) (*MediaService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewMediaServiceWithPresigner(s3.NewPresignClient(client), cfg), nil
}

// NewMediaServiceWithPresigner wires an explicit presigner
func NewMediaServiceWithPresigner(presigner Presigner, cfg config.AWSConfig) *MediaService {
	return &MediaService{
		presigner: presigner,
		bucket:    cfg.S3Bucket,
		region:    cfg.Region,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	Purpose     string `json:"purpose"`
	ContentType string `json:"content_type"`
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	MediaURL  string `json:"media_url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignUpload returns a PUT URL under <channel>/<purpose>/<uuid>.<ext>
func (s *MediaService) PresignUpload(ctx context.Context, pc PairContext, req UploadRequest) (*UploadResponse, error) {
	prefix, ok := purposeMediaType[req.Purpose]
	if !ok {
		return nil, fmt.Errorf("unknown upload purpose %q: %w", req.Purpose, ErrInvalidInput)
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := contentTypeExt[contentType]
	if !ok || !strings.HasPrefix(contentType, prefix) {
		return nil, fmt.Errorf("content type %q not allowed for %s: %w", req.ContentType, req.Purpose, ErrInvalidInput)
	}

	key := fmt.Sprintf("%s/%s/%s.%s", pc.ChannelID, req.Purpose, uuid.New().String(), ext)

	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		MediaURL:  s.ObjectURL(key),
		Key:       key,
		ExpiresIn: int(uploadExpiry.Seconds()),
	}, nil
}

// ObjectURL is the durable URL of an uploaded object
func (s *MediaService) ObjectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
