// Package objects puts uploaded media into S3-compatible object storage.
package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"vidtube/internal/lib/sl"
)

var ErrEmptyPath = errors.New("local path is empty")

type Config struct {
	Region       string
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicURL    string
	UsePathStyle bool
}

// ObjectPutter is the part of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	logger    *slog.Logger
	client    ObjectPutter
	bucket    string
	publicURL string
	now       func() time.Time
}

// New builds an S3 client from static credentials and returns an uploader
// for cfg.Bucket.
func New(ctx context.Context, logger *slog.Logger, cfg Config) (*Uploader, error) {
	const op = "objects.New"

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return NewWithClient(logger, client, cfg.Bucket, publicURL), nil
}

func NewWithClient(logger *slog.Logger, client ObjectPutter, bucket, publicURL string) *Uploader {
	return &Uploader{
		logger:    logger,
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Upload stores the file at localPath under a fresh key and returns its
// public URL. The local file is left in place; the caller owns it.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	const op = "objects.Upload"
	log := u.logger.With(slog.String("op", op))

	if localPath == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%s: stat: %w", op, err)
	}

	contentType, err := detectContentType(f, localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := ObjectKey(localPath, u.now())

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		log.Error("failed to put object", slog.String("key", key), sl.Err(err))
		return "", fmt.Errorf("%s: put %s: %w", op, key, err)
	}

	log.Debug("object uploaded", slog.String("key", key), slog.Int64("size", info.Size()))

	return u.URL(key), nil
}

// URL returns the public address of key.
func (u *Uploader) URL(key string) string {
	return u.publicURL + "/" + key
}

// ObjectKey builds "media/yyyy/mm/dd/<uuid><ext>" for a local file.
func ObjectKey(localPath string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", at.Year(), at.Month(), at.Day(), uuid.New(), ext)
}

// detectContentType prefers the extension and falls back to sniffing the
// first bytes. The reader is rewound before returning.
func detectContentType(f io.ReadSeeker, name string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("sniff: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}

	return http.DetectContentType(head[:n]), nil
}
