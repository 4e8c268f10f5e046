package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner signs GET requests for stored objects.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps objects in a private bucket and returns presigned URLs.
type S3Store struct {
	client    S3API
	presigner Presigner
	bucket    string
	prefix    string
	urlTTL    time.Duration
}

// NewS3Store creates an S3-backed store. Keys are written under prefix.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return NewS3StoreWith(client, s3.NewPresignClient(client), bucket, prefix, DefaultURLTTL)
}

// NewS3StoreWith wires explicit collaborators.
func NewS3StoreWith(client S3API, presigner Presigner, bucket, prefix string, urlTTL time.Duration) *S3Store {
	return &S3Store{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		prefix:    prefix,
		urlTTL:    urlTTL,
	}
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	const op = "objectstore.S3Store.Put"

	if err := validateKey(key); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.prefix + key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", fmt.Errorf("%s: presign: %w", op, err)
	}

	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return fmt.Errorf("objectstore.S3Store.Delete: %w", err)
	}

	return nil
}
