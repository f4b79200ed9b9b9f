package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by the store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds what is needed to reach an S3-compatible endpoint.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewS3Client builds an S3 client. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// S3 keeps every container as a prefix of one bucket: <container>/<key>.json.
type S3 struct {
	api    S3API
	bucket string
}

// NewS3 creates a store over api and bucket.
func NewS3(api S3API, bucket string) *S3 {
	return &S3{api: api, bucket: bucket}
}

func (s *S3) objectKey(container, key string) *string {
	return aws.String(container + "/" + ObjectName(key))
}

func (s *S3) Get(ctx context.Context, container, key string) (Object, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(container, key),
	})
	if err != nil {
		return Object{}, mapS3Error("get", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := readObject(out.Body, key)
	if err != nil {
		return Object{}, err
	}
	return Object{Data: data, Version: aws.ToString(out.ETag)}, nil
}

func (s *S3) Head(ctx context.Context, container, key string) (string, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(container, key),
	})
	if err != nil {
		return "", mapS3Error("head", key, err)
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3) Put(ctx context.Context, container, key string, data []byte, cond Condition) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           s.objectKey(container, key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentTypeJSON),
	}
	switch {
	case cond.IfNoneMatch:
		in.IfNoneMatch = aws.String("*")
	case cond.IfMatch != "":
		in.IfMatch = aws.String(cond.IfMatch)
	}
	out, err := s.api.PutObject(ctx, in)
	if err != nil {
		err = mapS3Error("put", key, err)
		if cond.IfMatch != "" && errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: put %s: object vanished", ErrPrecondition, key)
		}
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3) Delete(ctx context.Context, container, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(container, key),
	})
	if err != nil {
		return mapS3Error("delete", key, err)
	}
	return nil
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// mapS3Error classifies SDK errors by HTTP status, falling back to the API error code.
func mapS3Error(op, key string, err error) error {
	var status httpStatusCoder
	if errors.As(err, &status) {
		switch status.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s %s: %w", ErrNotFound, op, key, err)
		case http.StatusPreconditionFailed, http.StatusConflict:
			return fmt.Errorf("%w: %s %s: %w", ErrPrecondition, op, key, err)
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s %s: %w", ErrNotFound, op, key, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %s %s: %w", ErrPrecondition, op, key, err)
		}
	}
	return fmt.Errorf("%w: %s %s: %w", ErrTransport, op, key, err)
}
