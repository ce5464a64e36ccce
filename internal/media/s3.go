package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const thumbnailWidth = 320

// Store uploads attachment blobs to S3 and hands back the URLs the chat
// timeline serves them from.
type Store interface {
	Upload(ctx context.Context, fileName, contentType string, data []byte) (fileURL, thumbURL string, err error)
	DownloadURL(ctx context.Context, fileURL string) (string, error)
}

// S3Store implements Store against S3 or an S3-compatible endpoint.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	region     string
	publicRead bool
	presignTTL time.Duration
}

// NewS3Store builds a store. An empty endpoint uses AWS proper; a
// non-empty one targets MinIO-style deployments.
func NewS3Store(ctx context.Context, region, bucket, endpoint string, publicRead bool, presignTTL time.Duration) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		region:     region,
		publicRead: publicRead,
		presignTTL: presignTTL,
	}, nil
}

// Upload stores the blob under a fresh UUID key, generating a thumbnail
// alongside it when the blob is an image. The returned URLs are public
// when the bucket is public-read, presigned otherwise.
func (s *S3Store) Upload(ctx context.Context, fileName, contentType string, data []byte) (string, string, error) {
	key := uuid.New().String() + filepath.Ext(fileName)

	if err := s.put(ctx, key, contentType, data); err != nil {
		return "", "", fmt.Errorf("upload %s: %w", fileName, err)
	}

	var thumbKey string
	if classify(contentType, fileName) == KindImage {
		thumb, err := makeThumbnail(data)
		if err == nil {
			thumbKey = "thumb/" + key + ".jpg"
			if err := s.put(ctx, thumbKey, "image/jpeg", thumb); err != nil {
				// The original is already stored; a missing thumbnail
				// just means the preview falls back to the full image.
				thumbKey = ""
			}
		}
	}

	fileURL, err := s.urlFor(ctx, key)
	if err != nil {
		return "", "", err
	}
	var thumbURL string
	if thumbKey != "" {
		thumbURL, _ = s.urlFor(ctx, thumbKey)
	}
	return fileURL, thumbURL, nil
}

// DownloadURL returns a URL suitable for a save-as fetch of an already
// uploaded object. Public objects are returned as-is; private ones get
// a fresh presigned URL.
func (s *S3Store) DownloadURL(ctx context.Context, fileURL string) (string, error) {
	if s.publicRead {
		return fileURL, nil
	}
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}
	key, err := url.PathUnescape(u.Path[1:])
	if err != nil {
		return "", fmt.Errorf("unescape object key: %w", err)
	}
	return s.presign(ctx, key)
}

func (s *S3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3Store) urlFor(ctx context.Context, key string) (string, error) {
	if s.publicRead {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, url.PathEscape(key)), nil
	}
	return s.presign(ctx, key)
}

func (s *S3Store) presign(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func makeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
