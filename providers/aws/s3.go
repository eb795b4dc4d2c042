package aws

import (
	"context"
	"fmt"
	"io"
	"os"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ListBuckets returns the account's bucket names.
func (a *Adapter) ListBuckets(ctx context.Context) ([]string, error) {
	output, err := a.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	var names []string
	for _, bucket := range output.Buckets {
		if bucket.Name != nil {
			names = append(names, awssdk.ToString(bucket.Name))
		}
	}
	return names, nil
}

// ListKeys returns every key under a prefix, following marker pagination
// exhaustively.
func (a *Adapter) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	var marker *string

	for {
		output, err := a.s3Client.ListObjects(ctx, &s3.ListObjectsInput{
			Bucket: awssdk.String(bucket),
			Prefix: awssdk.String(prefix),
			Marker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", bucket, prefix, err)
		}

		for _, obj := range output.Contents {
			if obj.Key != nil {
				keys = append(keys, awssdk.ToString(obj.Key))
			}
		}

		if !awssdk.ToBool(output.IsTruncated) || len(output.Contents) == 0 {
			break
		}
		last := output.Contents[len(output.Contents)-1]
		marker = last.Key
	}

	return keys, nil
}

// GetObject downloads an object body.
func (a *Adapter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	output, err := a.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = output.Body.Close() }()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// PutObject uploads a body under a key.
func (a *Adapter) PutObject(ctx context.Context, bucket, key string, body io.Reader) error {
	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutFile uploads a local file under a key.
func (a *Adapter) PutFile(ctx context.Context, bucket, key, path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from our own temp files
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return a.PutObject(ctx, bucket, key, f)
}

// CopyObject copies within or across buckets.
func (a *Adapter) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := a.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     awssdk.String(dstBucket),
		Key:        awssdk.String(dstKey),
		CopySource: awssdk.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("copy object %s/%s: %w", srcBucket, srcKey, err)
	}
	return nil
}

// DeleteObject removes a key.
func (a *Adapter) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := a.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// CreateBucket creates a bucket.
func (a *Adapter) CreateBucket(ctx context.Context, bucket string) error {
	_, err := a.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// DeleteBucket removes an empty bucket.
func (a *Adapter) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := a.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		return fmt.Errorf("delete bucket %s: %w", bucket, err)
	}
	return nil
}
