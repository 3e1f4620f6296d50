// Package azblob implements the storage capability interface on Azure
// Blob Storage. Directories are blob name prefixes; object metadata maps
// to blob metadata.
package azblob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	azb "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/driftfs/driftfs/internal/pathkit"
	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Azure block blobs accept at most 4000 MiB per staged block; a chunked
// transfer must stay under that.
const maxBlockSize = 4000 * 1024 * 1024

// Backend is an Azure Blob Storage backend rooted at a container and
// blob name prefix.
type Backend struct {
	client    *azb.Client
	container string
	prefix    string
	closed    bool
}

// Connect builds the blob service client and verifies the container
// exists, creating it when createIfMissing is set.
func Connect(ctx context.Context, a auth.Azure, containerName, prefix string, createIfMissing bool) (*Backend, error) {
	var client *azb.Client
	var err error
	if a.ConnectionString != "" {
		client, err = azb.NewClientFromConnectionString(a.ConnectionString, nil)
	} else {
		var cred *azb.SharedKeyCredential
		cred, err = azb.NewSharedKeyCredential(a.AccountName, a.AccountKey)
		if err == nil {
			client, err = azb.NewClientWithSharedKeyCredential(a.BlobServiceURL(), cred, nil)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("building blob client: %w", err)
	}

	cc := client.ServiceClient().NewContainerClient(containerName)
	_, err = cc.GetProperties(ctx, nil)
	if err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("checking container %q: %w", containerName, err)
		}
		if !createIfMissing {
			return nil, dferr.NewPath(dferr.CodeContainerNotFound, "container not found", containerName)
		}
		if _, err := cc.Create(ctx, nil); err != nil {
			return nil, fmt.Errorf("creating container %q: %w", containerName, err)
		}
	}
	return &Backend{client: client, container: containerName, prefix: prefix}, nil
}

// Container returns the backend's container name.
func (b *Backend) Container() string { return b.container }

// ChunkLimit reports the block size bound for chunked writes.
func (b *Backend) ChunkLimit() int64 { return maxBlockSize }

func (b *Backend) name(path string) string {
	return pathkit.Join(b.prefix, path)
}

func (b *Backend) dirPrefix(path string) string {
	n := b.name(path)
	if n == "" {
		return ""
	}
	return n + "/"
}

func (b *Backend) guard() error {
	if b.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

func (b *Backend) containerClient() *container.Client {
	return b.client.ServiceClient().NewContainerClient(b.container)
}

func (b *Backend) blobClient(path string) *blob.Client {
	return b.containerClient().NewBlobClient(b.name(path))
}

func fromAzureMetadata(md map[string]*string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func toAzureMetadata(md map[string]string) map[string]*string {
	out := make(map[string]*string, len(md))
	for k, v := range md {
		out[k] = to.Ptr(v)
	}
	return out
}

func (b *Backend) ListEntries(ctx context.Context, path string, recursive bool) ([]types.Entry, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	listPrefix := b.dirPrefix(path)
	cc := b.containerClient()

	var entries []types.Entry
	if recursive {
		pager := cc.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
			Prefix: to.Ptr(listPrefix),
		})
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			for _, item := range page.Segment.BlobItems {
				name := strings.TrimPrefix(*item.Name, listPrefix)
				if name == "" {
					continue
				}
				entries = append(entries, types.Entry{Path: name})
			}
		}
		return entries, nil
	}

	pager := cc.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: to.Ptr(listPrefix),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Segment.BlobPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(*p.Name, listPrefix), "/")
			if name != "" {
				entries = append(entries, types.Entry{Path: name, IsDir: true})
			}
		}
		for _, item := range page.Segment.BlobItems {
			name := strings.TrimPrefix(*item.Name, listPrefix)
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
	props, err := b.blobClient(path).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return 0, dferr.FileNotFound(path)
		}
		return 0, err
	}
	if props.ContentLength == nil {
		return 0, nil
	}
	return *props.ContentLength, nil
}

func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	resp, err := b.client.DownloadStream(ctx, b.container, b.name(path), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	return resp.Body, nil
}

func (b *Backend) ReadRange(ctx context.Context, path string, start, length int64) ([]byte, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	opts := &azb.DownloadStreamOptions{
		Range: azb.HTTPRange{Offset: start},
	}
	if length >= 0 {
		opts.Range.Count = length
	}
	resp, err := b.client.DownloadStream(ctx, b.container, b.name(path), opts)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (b *Backend) Write(ctx context.Context, path string, r io.Reader, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	opts := &azb.UploadStreamOptions{}
	if len(md) > 0 {
		opts.Metadata = toAzureMetadata(md)
	}
	_, err := b.client.UploadStream(ctx, b.container, b.name(path), r, opts)
	return err
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	props, err := b.blobClient(path).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	return fromAzureMetadata(props.Metadata), nil
}

func (b *Backend) SetMetadata(ctx context.Context, path string, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.blobClient(path).SetMetadata(ctx, toAzureMetadata(md), nil)
	if err != nil && bloberror.HasCode(err, bloberror.BlobNotFound) {
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
	_, err := b.blobClient(path).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, err
	}
	return b.IsDir(ctx, path)
}

func (b *Backend) IsDir(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	if path == "" {
		return true, nil
	}
	one := int32(1)
	pager := b.containerClient().NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
		Prefix:     to.Ptr(b.dirPrefix(path)),
		MaxResults: &one,
	})
	if pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, err
		}
		return len(page.Segment.BlobItems) > 0, nil
	}
	return false, nil
}

func (b *Backend) Close() error {
	b.closed = true
	return nil
}
