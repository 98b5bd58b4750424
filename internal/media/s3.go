package media

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/youthforge/forge/internal/logging"
)

// S3Settings configure the object-storage backend (AWS S3 or an
// S3-compatible service such as MinIO).
type S3Settings struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

// NewS3Uploader builds an Uploader over a real S3 client.
func NewS3Uploader(ctx context.Context, settings S3Settings, logger logging.Logger) (*Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(settings.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			settings.AccessKey,
			settings.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(settings.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewUploader(client, s3.NewPresignClient(client), settings.Bucket, logger), nil
}
