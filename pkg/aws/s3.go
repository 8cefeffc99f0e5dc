package aws

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the subset of the S3 API used for package uploads.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PackageStore uploads built packages to S3 so create and code-update
// requests can reference a stored object instead of inline bytes.
type PackageStore struct {
	client ObjectAPI
	bucket string
}

// NewPackageStore creates a PackageStore targeting the given bucket.
func NewPackageStore(ctx context.Context, region, bucket string) (*PackageStore, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Use path-style addressing which is more reliable
	})
	return &PackageStore{client: client, bucket: bucket}, nil
}

// NewPackageStoreFromAPI wraps an existing client, mainly for tests.
func NewPackageStoreFromAPI(api ObjectAPI, bucket string) *PackageStore {
	return &PackageStore{client: api, bucket: bucket}
}

// UploadPackage stores the package under a content-addressed key and
// returns the bucket and key for the code payload. Re-uploading identical
// bytes lands on the same key.
func (p *PackageStore) UploadPackage(ctx context.Context, functionName string, data []byte) (string, string, error) {
	sum := sha256.Sum256(data)
	key := fmt.Sprintf("fnship/%s/%s.zip", functionName, hex.EncodeToString(sum[:8]))

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", "", fmt.Errorf("error uploading package for %s: %w", functionName, err)
	}
	return p.bucket, key, nil
}
