package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectPutter is the part of *s3.Client the sender uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options describes the S3-compatible mail-drop bucket.
type S3Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

// S3Sender drops each notification as a JSON object that the outbound mail
// relay picks up.
type S3Sender struct {
	client objectPutter
	bucket string
}

func NewS3Sender(ctx context.Context, o S3Options) (*S3Sender, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		so.BaseEndpoint = aws.String(o.BaseEndpoint)
		so.UsePathStyle = true
	})

	return &S3Sender{client: client, bucket: o.Bucket}, nil
}

// ObjectKey returns the object key a message is stored under.
func ObjectKey(m Message) string {
	d := m.CreatedAt.UTC()
	return fmt.Sprintf("outbox/%s/%04d/%02d/%02d/%s.json", m.Kind, d.Year(), d.Month(), d.Day(), m.ID)
}

func (s *S3Sender) Send(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ObjectKey(m)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put notification object: %w", err)
	}
	return nil
}
