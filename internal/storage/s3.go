package storage

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

// S3Store implements ArtifactStore for one S3 bucket.
type S3Store struct {
	client     *s3.Client
	bucket     string
	config     S3Config
	maxRetries int
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// Multipart holds multipart upload settings.
	Multipart MultipartConfig
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:    "us-east-1",
		Multipart: DefaultMultipartConfig(),
	}
}

// NewS3Store creates a store for bucket using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket string, cfg S3Config) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, lberrors.NewStorageError(lberrors.CodeUnexpected, "failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), bucket, cfg), nil
}

// NewS3StoreWithClient creates a store with a pre-configured client.
func NewS3StoreWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Store {
	if cfg.Multipart.PartSize <= 0 {
		cfg.Multipart = DefaultMultipartConfig()
	}
	return &S3Store{
		client:     client,
		bucket:     bucket,
		config:     cfg,
		maxRetries: 3,
	}
}

// Put uploads localPath to key. Files larger than one part go up as a
// multipart upload.
func (s *S3Store) Put(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeUploadFailed, "failed to open "+localPath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeUploadFailed, "failed to stat "+localPath, err)
	}

	err = s.retryWithBackoff(ctx, func() error {
		// Reset file position for retry
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if stat.Size() > s.config.Multipart.PartSize {
			return s.putMultipart(ctx, file, stat.Size(), key)
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   file,
		})
		return err
	})
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeUploadFailed, "failed to upload s3://"+s.bucket+"/"+key, err)
	}
	return nil
}

func (s *S3Store) putMultipart(ctx context.Context, file *os.File, fileSize int64, key string) error {
	partSize := s.config.Multipart.PartSize

	createResp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}

	uploadID := createResp.UploadId
	numParts := int(math.Ceil(float64(fileSize) / float64(partSize)))
	completed := make([]types.CompletedPart, 0, numParts)

	for partNum := 1; partNum <= numParts; partNum++ {
		offset := int64(partNum-1) * partSize
		size := partSize
		if offset+size > fileSize {
			size = fileSize - offset
		}

		resp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(partNum)),
			Body:          io.NewSectionReader(file, offset, size),
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			s.abortMultipart(ctx, key, uploadID)
			return err
		}
		completed = append(completed, types.CompletedPart{
			ETag:       resp.ETag,
			PartNumber: aws.Int32(int32(partNum)),
		})
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		s.abortMultipart(ctx, key, uploadID)
		return err
	}
	return nil
}

func (s *S3Store) abortMultipart(ctx context.Context, key string, uploadID *string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
}

// Get downloads key into localPath.
func (s *S3Store) Get(ctx context.Context, key, localPath string) error {
	var resp *s3.GetObjectOutput
	err := s.retryWithBackoff(ctx, func() error {
		var getErr error
		resp, getErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		var noSuchKey *types.NoSuchKey
		if errors.As(getErr, &noSuchKey) {
			return ErrArtifactNotFound
		}
		return getErr
	})
	if errors.Is(err, ErrArtifactNotFound) {
		return notFound("s3://" + s.bucket + "/" + key)
	}
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeDownloadFailed, "failed to download s3://"+s.bucket+"/"+key, err)
	}
	defer resp.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeDownloadFailed, "failed to create "+localPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return lberrors.NewStorageError(lberrors.CodeDownloadFailed, "failed to download s3://"+s.bucket+"/"+key, err)
	}
	return nil
}

// Exists checks if key exists.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nf *types.NotFound
			if errors.As(err, &nf) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, lberrors.NewStorageError(lberrors.CodeDownloadFailed, "failed to stat s3://"+s.bucket+"/"+key, err)
	}
	return exists, nil
}

// Delete removes key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeUploadFailed, "failed to delete s3://"+s.bucket+"/"+key, err)
	}
	return nil
}

// List returns all keys under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, lberrors.NewStorageError(lberrors.CodeDownloadFailed, "failed to list s3://"+s.bucket+"/"+prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// retryWithBackoff executes the operation with exponential backoff retry.
// A missing key is final.
func (s *S3Store) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || errors.Is(lastErr, ErrArtifactNotFound) {
			return lastErr
		}

		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
