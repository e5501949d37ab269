package fsxs3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Abraxas-365/applyflow/pkg/fsx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3FileSystem maps paths to object keys in a single bucket, optionally under a prefix.
type S3FileSystem struct {
	client S3API
	bucket string
	prefix string
}

func NewS3FileSystem(client S3API, bucket, prefix string) *S3FileSystem {
	return &S3FileSystem{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

var _ fsx.FileSystem = (*S3FileSystem)(nil)

func (f *S3FileSystem) Bucket() string { return f.bucket }

func (f *S3FileSystem) key(p string) string {
	p = strings.TrimLeft(p, "/")
	if f.prefix == "" {
		return p
	}
	return f.prefix + "/" + p
}

func (f *S3FileSystem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", f.bucket, f.key(p), err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (f *S3FileSystem) WriteFile(ctx context.Context, p string, data []byte) error {
	return f.WriteFileStream(ctx, p, bytes.NewReader(data))
}

func (f *S3FileSystem) WriteFileStream(ctx context.Context, p string, r io.Reader) error {
	_, err := f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", f.bucket, f.key(p), err)
	}
	return nil
}

func (f *S3FileSystem) DeleteFile(ctx context.Context, p string) error {
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	return err
}

func (f *S3FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

func (f *S3FileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}
