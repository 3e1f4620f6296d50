// Package s3 implements the storage capability interface on Amazon S3
// (and S3-compatible stores via an endpoint override). Directories are
// key prefixes; object metadata maps to S3 user metadata, replaced via
// a same-key copy since S3 metadata is immutable in place.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/driftfs/driftfs/internal/pathkit"
	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Backend is an S3 storage backend rooted at a bucket and key prefix.
type Backend struct {
	client *awss3.Client
	bucket string
	prefix string
	closed bool
}

// Connect builds the S3 client and verifies the bucket exists, creating
// it when createIfMissing is set.
func Connect(ctx context.Context, a auth.AWS, bucket, prefix string, createIfMissing bool) (*Backend, error) {
	cfg, err := a.Config(ctx)
	if err != nil {
		return nil, err
	}
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if a.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.Endpoint)
			o.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var nf *s3types.NotFound
		if !errors.As(err, &nf) && !isNotFound(err) {
			return nil, fmt.Errorf("checking bucket %q: %w", bucket, err)
		}
		if !createIfMissing {
			return nil, dferr.NewPath(dferr.CodeBucketNotFound, "bucket not found", bucket)
		}
		if _, err := client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", bucket, err)
		}
	}
	return &Backend{client: client, bucket: bucket, prefix: prefix}, nil
}

// Bucket returns the backend's bucket name.
func (b *Backend) Bucket() string { return b.bucket }

// key maps a root-relative path to a full object key.
func (b *Backend) key(path string) string {
	return pathkit.Join(b.prefix, path)
}

// dirKey maps a root-relative directory path to its listing prefix.
func (b *Backend) dirKey(path string) string {
	k := b.key(path)
	if k == "" {
		return ""
	}
	return k + "/"
}

func (b *Backend) guard() error {
	if b.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	// HeadObject reports 404 through the generic API error type.
	return strings.Contains(err.Error(), "StatusCode: 404") ||
		strings.Contains(err.Error(), "NotFound")
}

func (b *Backend) ListEntries(ctx context.Context, path string, recursive bool) ([]types.Entry, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	listPrefix := b.dirKey(path)

	if recursive {
		var entries []types.Entry
		paginator := awss3.NewListObjectsV2Paginator(b.client, &awss3.ListObjectsV2Input{
			Bucket: aws.String(b.bucket),
			Prefix: aws.String(listPrefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if key == listPrefix {
					continue
				}
				rel := strings.TrimPrefix(key, listPrefix)
				if strings.HasSuffix(rel, "/") {
					entries = append(entries, types.Entry{Path: strings.TrimSuffix(rel, "/"), IsDir: true})
					continue
				}
				entries = append(entries, types.Entry{Path: rel})
			}
		}
		return entries, nil
	}

	var entries []types.Entry
	paginator := awss3.NewListObjectsV2Paginator(b.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), listPrefix), "/")
			if name != "" {
				entries = append(entries, types.Entry{Path: name, IsDir: true})
			}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == listPrefix {
				continue
			}
			name := strings.TrimPrefix(key, listPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			entries = append(entries, types.Entry{Path: name})
		}
	}
	return entries, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	if err := b.guard(); err != nil {
		return 0, err
	}
	out, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, dferr.FileNotFound(path)
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	return out.Body, nil
}

func (b *Backend) ReadRange(ctx context.Context, path string, start, length int64) ([]byte, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	var rng string
	if length < 0 {
		rng = fmt.Sprintf("bytes=%d-", start)
	} else {
		rng = fmt.Sprintf("bytes=%d-%d", start, start+length-1)
	}
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Range:  aws.String(rng),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *Backend) Write(ctx context.Context, path string, r io.Reader, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	// PutObject requires a seekable body for signing; buffer unknown readers.
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	input := &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Body:   bytes.NewReader(data),
	}
	if len(md) > 0 {
		input.Metadata = md
	}
	_, err = b.client.PutObject(ctx, input)
	return err
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	out, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	md := make(map[string]string, len(out.Metadata))
	for k, v := range out.Metadata {
		md[k] = v
	}
	return md, nil
}

// SetMetadata replaces object metadata via a same-key copy with the
// REPLACE directive.
func (b *Backend) SetMetadata(ctx context.Context, path string, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	key := b.key(path)
	_, err := b.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:            aws.String(b.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(b.bucket + "/" + key),
		Metadata:          md,
		MetadataDirective: s3types.MetadataDirectiveReplace,
	})
	if err != nil && isNotFound(err) {
		return dferr.FileNotFound(path)
	}
	return err
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	if path == "" {
		return true, nil
	}
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, err
	}
	// No object at the key: the path may still name a prefix.
	return b.IsDir(ctx, path)
}

func (b *Backend) IsDir(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	if path == "" {
		return true, nil
	}
	out, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(b.dirKey(path)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (b *Backend) Close() error {
	// The SDK client has no connection to tear down; the closed flag
	// still fences every entity sharing this backend.
	b.closed = true
	return nil
}
