package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	cfg "github.com/maheshrc27/threadcraft/configs"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"go.uber.org/zap"
)

// MaxMediaFiles is the most attachments a single post can carry.
const MaxMediaFiles = 4

var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "gif": {}, "webp": {}, "mp4": {}, "mov": {},
}

// ObjectPutter is the slice of the S3 API media uploads need.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type MediaService interface {
	Upload(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error)
}

type mediaService struct {
	bucket    string
	publicURL string
	objects   ObjectPutter
	ma        repository.MediaAssetRepository
}

func NewMediaService(r2 cfg.R2, store ObjectPutter, ma repository.MediaAssetRepository) MediaService {
	return &mediaService{
		bucket:    r2.BucketName,
		publicURL: strings.TrimRight(r2.PublicURL, "/"),
		objects:   store,
		ma:        ma,
	}
}

// NewR2Client builds an S3 client pointed at the Cloudflare R2 account.
func NewR2Client(ctx context.Context, r2 cfg.R2) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKey, r2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID))
	}), nil
}

// Upload stores each file and returns its public URL, in input order.
func (s *mediaService) Upload(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("files", "at least one file is required")
	}
	if len(files) > MaxMediaFiles {
		return nil, apperr.Validation("files", fmt.Sprintf("at most %d files are allowed", MaxMediaFiles))
	}

	urls := make([]string, 0, len(files))
	for _, file := range files {
		content, err := readFile(file)
		if err != nil {
			return nil, err
		}

		kind, err := SniffMedia(content)
		if err != nil {
			return nil, err
		}

		url, err := s.put(ctx, userID, kind, content)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// SniffMedia identifies content by its magic bytes and rejects anything
// that cannot be attached to a post.
func SniffMedia(content []byte) (types.Type, error) {
	kind, err := filetype.Match(content)
	if err != nil || kind == types.Unknown {
		return types.Unknown, apperr.Validation("files", "unsupported file type")
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return types.Unknown, apperr.Validation("files", fmt.Sprintf("file type %s is not allowed", kind.Extension))
	}
	return kind, nil
}

func (s *mediaService) put(ctx context.Context, userID int64, kind types.Type, content []byte) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := id + "." + kind.Extension

	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		zap.L().Error("upload media", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("upload media: %w", err)
	}

	url := fmt.Sprintf("%s/%s", s.publicURL, key)
	_, err = s.ma.Create(ctx, &models.MediaAsset{
		UserID:   userID,
		FileName: key,
		FileType: kind.MIME.Value,
		FileSize: int64(len(content)),
		FileURL:  url,
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return content, nil
}
