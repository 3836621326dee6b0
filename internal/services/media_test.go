package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lovechat-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	input   *s3.PutObjectInput
	options s3.PresignOptions
	err     error
}

func (p *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.input = params
	for _, fn := range optFns {
		fn(&p.options)
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + aws.ToString(params.Key), Method: "PUT"}, nil
}

func TestPresignUpload(t *testing.T) {
	presigner := &fakePresigner{}
	media := NewMediaServiceWithPresigner(presigner, config.AWSConfig{Region: "eu-central-1", S3Bucket: "lovechat"})
	pc := NewPairContext("alice", "bob")

	res, err := media.PresignUpload(context.Background(), pc, UploadRequest{Purpose: PurposeAudio, ContentType: "audio/mp4"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "alice_bob/audio/"))
	assert.True(t, strings.HasSuffix(res.Key, ".m4a"))
	assert.Equal(t, "https://lovechat.s3.eu-central-1.amazonaws.com/"+res.Key, res.MediaURL)
	assert.Equal(t, "https://signed.example/"+res.Key, res.UploadURL)
	assert.Equal(t, 300, res.ExpiresIn)

	assert.Equal(t, "lovechat", aws.ToString(presigner.input.Bucket))
	assert.Equal(t, "audio/mp4", aws.ToString(presigner.input.ContentType))
	assert.Equal(t, uploadExpiry, presigner.options.Expires)
}

func TestPresignUploadRejectsMismatch(t *testing.T) {
	media := NewMediaServiceWithPresigner(&fakePresigner{}, config.AWSConfig{S3Bucket: "lovechat"})
	pc := NewPairContext("alice", "bob")

	tests := []UploadRequest{
		{Purpose: "avatar", ContentType: "image/png"},
		{Purpose: PurposeMemory, ContentType: "video/mp4"},
		{Purpose: PurposeImage, ContentType: "image/tiff"},
	}
	for _, req := range tests {
		_, err := media.PresignUpload(context.Background(), pc, req)
		assert.ErrorIs(t, err, ErrInvalidInput, req)
	}
}

func TestPresignUploadCustomEndpoint(t *testing.T) {
	media := NewMediaServiceWithPresigner(&fakePresigner{}, config.AWSConfig{S3Bucket: "lovechat", Endpoint: "http://localhost:9000/"})

	res, err := media.PresignUpload(context.Background(), NewPairContext("a", "b"), UploadRequest{Purpose: PurposeWallpaper, ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/lovechat/"+res.Key, res.MediaURL)
}

func TestPresignUploadError(t *testing.T) {
	media := NewMediaServiceWithPresigner(&fakePresigner{err: errors.New("no credentials")}, config.AWSConfig{S3Bucket: "lovechat"})

	_, err := media.PresignUpload(context.Background(), NewPairContext("a", "b"), UploadRequest{Purpose: PurposeImage, ContentType: "image/png"})
	assert.Error(t, err)
}
