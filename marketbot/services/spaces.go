package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const maxMediaBytes = 25 << 20

// MediaStore turns a temporary attachment url into a url that stays valid
// for the lifetime of a listing.
type MediaStore interface {
	StoreMedia(ctx context.Context, ownerID, sourceURL, contentType string) (string, error)
}

// PassthroughMedia keeps attachment urls as they are.
type PassthroughMedia struct{}

func (PassthroughMedia) StoreMedia(_ context.Context, _, sourceURL, _ string) (string, error) {
	return sourceURL, nil
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SpacesService copies listing photos to a DigitalOcean Spaces bucket.
type SpacesService struct {
	client    objectPutter
	http      *http.Client
	bucket    string
	region    string
	MediaRoot string
}

var _ MediaStore = (*SpacesService)(nil)

func NewSpacesService(ctx context.Context, spacesKey, spacesSecret, region, bucket, mediaRoot string) (*SpacesService, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.digitaloceanspaces.com", region))
	})

	return newSpacesService(client, bucket, region, mediaRoot), nil
}

func newSpacesService(client objectPutter, bucket, region, mediaRoot string) *SpacesService {
	return &SpacesService{
		client:    client,
		http:      &http.Client{Timeout: 30 * time.Second},
		bucket:    bucket,
		region:    region,
		MediaRoot: strings.Trim(mediaRoot, "/"),
	}
}

func (s *SpacesService) StoreMedia(ctx context.Context, ownerID, sourceURL, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid media url: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download media: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read media: %w", err)
	}
	if len(body) > maxMediaBytes {
		return "", fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}

	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	key := s.mediaKey(ownerID, sourceURL)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	return s.PublicURL(key), nil
}

func (s *SpacesService) mediaKey(ownerID, sourceURL string) string {
	ext := path.Ext(strings.SplitN(path.Base(sourceURL), "?", 2)[0])
	if ext == "" {
		ext = ".jpg"
	}
	return path.Join(s.MediaRoot, ownerID, uuid.NewString()+strings.ToLower(ext))
}

func (s *SpacesService) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", s.bucket, s.region, key)
}
