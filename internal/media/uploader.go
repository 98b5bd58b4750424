// Package media implements the upload boundary: it stores attachment bytes
// in S3-compatible object storage and hands back durable records with a
// resolvable download URL.
package media

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/youthforge/forge/internal/logging"
	"github.com/youthforge/forge/internal/models"
)

// Transient storage failures are retried this many times with a constant
// backoff before the upload is reported as failed.
const (
	uploadMaxRetries   = 3
	uploadRetryBackoff = 700 * time.Millisecond
	downloadURLExpiry  = 24 * time.Hour
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignGetAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Uploader writes attachment bytes to a bucket and presigns download URLs.
type Uploader struct {
	client  putObjectAPI
	presign presignGetAPI
	bucket  string
	logger  logging.Logger
}

func NewUploader(client putObjectAPI, presign presignGetAPI, bucket string, logger logging.Logger) *Uploader {
	return &Uploader{client: client, presign: presign, bucket: bucket, logger: logger}
}

// storageKey scopes an object under the owning project.
func storageKey(projectID, fileName string) string {
	return fmt.Sprintf("projects/%s/media/%s-%s", projectID, uuid.NewString(), fileName)
}

// Upload stores one file and returns its media record. Progress is reported
// at start and completion; transient PutObject failures are retried.
func (u *Uploader) Upload(ctx context.Context, projectID string, file models.UploadFile, onProgress models.UploadProgress) (*models.ProjectMedia, error) {
	key := storageKey(projectID, file.Name)
	if onProgress != nil {
		onProgress(file.Name, 0)
	}

	backoff := retry.WithMaxRetries(uploadMaxRetries, retry.NewConstant(uploadRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(file.Data),
			ContentType: aws.String(file.ContentType),
		})
		if err != nil {
			u.logger.Warn(ctx, "media put failed, retrying", "key", key, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", file.Name, err)
	}

	req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(downloadURLExpiry))
	if err != nil {
		return nil, fmt.Errorf("presigning %s: %w", file.Name, err)
	}

	if onProgress != nil {
		onProgress(file.Name, 100)
	}

	return &models.ProjectMedia{
		ID:          "media_" + uuid.NewString(),
		Kind:        models.MediaImage,
		Alt:         file.Name,
		StoragePath: key,
		DownloadURL: req.URL,
		Size:        file.Size,
		ContentType: file.ContentType,
		CreatedAt:   models.NowISO(),
	}, nil
}
