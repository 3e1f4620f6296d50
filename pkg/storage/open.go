package storage

import (
	"context"
	"path/filepath"

	"github.com/driftfs/driftfs/internal/backend"
	"github.com/driftfs/driftfs/internal/backend/azblob"
	"github.com/driftfs/driftfs/internal/backend/gcs"
	"github.com/driftfs/driftfs/internal/backend/local"
	"github.com/driftfs/driftfs/internal/backend/s3"
	"github.com/driftfs/driftfs/internal/backend/sftpfs"
	"github.com/driftfs/driftfs/internal/cache"
	"github.com/driftfs/driftfs/internal/meta"
	"github.com/driftfs/driftfs/internal/pathkit"
	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
)

func newResource(b backend.Storage, name, uriBase string, nativeMetadata bool, opts *Options, cacheable bool) *resource {
	r := &resource{
		backend:        b,
		name:           name,
		uriBase:        uriBase,
		nativeMetadata: nativeMetadata,
		meta:           meta.NewStore(),
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}
	if opts.Cache && cacheable {
		r.cache = cache.New()
	}
	return r
}

// finishDir wraps the resource in a root directory handle and performs
// the optional eager metadata load.
func finishDir(ctx context.Context, r *resource, opts *Options) (*Dir, error) {
	d := &Dir{res: r, owns: true}
	if opts.LoadMetadata && r.nativeMetadata {
		if err := d.LoadMetadata(ctx, true); err != nil {
			r.close()
			return nil, err
		}
	}
	return d, nil
}

// finishFile validates that name denotes a file under the resource root
// and wraps the resource in a root file handle.
func finishFile(ctx context.Context, r *resource, name string, opts *Options) (*File, error) {
	exists, err := r.backend.Exists(ctx, name)
	r.record("exists", err)
	if err != nil {
		r.close()
		return nil, err
	}
	if !exists {
		r.close()
		return nil, dferr.FileNotFound(name)
	}
	isDir, err := r.backend.IsDir(ctx, name)
	r.record("is_dir", err)
	if err != nil {
		r.close()
		return nil, err
	}
	if isDir {
		r.close()
		return nil, dferr.NotAFile(name)
	}
	f := &File{res: r, path: name, owns: true}
	if opts.LoadMetadata && r.nativeMetadata {
		if _, err := f.LoadMetadata(ctx); err != nil {
			r.close()
			return nil, err
		}
	}
	return f, nil
}

// OpenLocalDir opens a directory on the local filesystem. Local entities
// never cache: there is no latency to hide.
func OpenLocalDir(path string, opts *Options) (*Dir, error) {
	o := opts.orDefault()
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, dferr.InvalidPath(path)
	}
	b, err := local.New(abs, o.CreateIfMissing)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "local", "file://"+filepath.ToSlash(abs)+"/", false, o, false)
	return &Dir{res: r, owns: true}, nil
}

// OpenLocalFile opens a file on the local filesystem. The file must
// exist.
func OpenLocalFile(path string, opts *Options) (*File, error) {
	o := opts.orDefault()
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, dferr.InvalidPath(path)
	}
	dir := filepath.Dir(abs)
	b, err := local.New(dir, false)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "local", "file://"+filepath.ToSlash(dir)+"/", false, o, false)
	return finishFile(context.Background(), r, filepath.Base(abs), o)
}

// OpenRemoteDir opens a directory over SFTP. The connection is
// established eagerly and held until the returned handle is closed.
func OpenRemoteDir(a auth.SSH, path string, opts *Options) (*Dir, error) {
	o := opts.orDefault()
	root, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	b, err := sftpfs.Dial(a, root, o.CreateIfMissing)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "sftp", "sftp://"+pathkit.Join(a.Host, root)+"/", false, o, true)
	return finishDir(context.Background(), r, o)
}

// OpenRemoteFile opens a file over SFTP. The file must exist.
func OpenRemoteFile(a auth.SSH, path string, opts *Options) (*File, error) {
	o := opts.orDefault()
	full, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	parent := pathkit.Parent(full)
	b, err := sftpfs.Dial(a, parent, false)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "sftp", "sftp://"+pathkit.Join(a.Host, parent)+"/", false, o, true)
	return finishFile(context.Background(), r, pathkit.Base(full), o)
}

// OpenS3Dir opens a prefix of an S3 bucket as a directory. The bucket
// must exist unless CreateIfMissing is set.
func OpenS3Dir(ctx context.Context, a auth.AWS, bucket, path string, opts *Options) (*Dir, error) {
	o := opts.orDefault()
	prefix, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	b, err := s3.Connect(ctx, a, bucket, prefix, o.CreateIfMissing)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "s3", "s3://"+pathkit.Join(bucket, prefix)+"/", true, o, true)
	return finishDir(ctx, r, o)
}

// OpenS3File opens a single S3 object as a file. The object must exist.
func OpenS3File(ctx context.Context, a auth.AWS, bucket, path string, opts *Options) (*File, error) {
	o := opts.orDefault()
	full, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	parent := pathkit.Parent(full)
	b, err := s3.Connect(ctx, a, bucket, parent, false)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "s3", "s3://"+pathkit.Join(bucket, parent)+"/", true, o, true)
	return finishFile(ctx, r, pathkit.Base(full), o)
}

// OpenAzureBlobDir opens a prefix of an Azure Blob Storage container as
// a directory. The container must exist unless CreateIfMissing is set.
func OpenAzureBlobDir(ctx context.Context, a auth.Azure, container, path string, opts *Options) (*Dir, error) {
	o := opts.orDefault()
	prefix, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	b, err := azblob.Connect(ctx, a, container, prefix, o.CreateIfMissing)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "azure", "az://"+pathkit.Join(container, prefix)+"/", true, o, true)
	return finishDir(ctx, r, o)
}

// OpenAzureBlobFile opens a single blob as a file. The blob must exist.
func OpenAzureBlobFile(ctx context.Context, a auth.Azure, container, path string, opts *Options) (*File, error) {
	o := opts.orDefault()
	full, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	parent := pathkit.Parent(full)
	b, err := azblob.Connect(ctx, a, container, parent, false)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "azure", "az://"+pathkit.Join(container, parent)+"/", true, o, true)
	return finishFile(ctx, r, pathkit.Base(full), o)
}

// OpenGCSDir opens a prefix of a Google Cloud Storage bucket as a
// directory. The bucket must exist unless CreateIfMissing is set.
func OpenGCSDir(ctx context.Context, a auth.GCP, bucket, path string, opts *Options) (*Dir, error) {
	o := opts.orDefault()
	prefix, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	b, err := gcs.Connect(ctx, a, bucket, prefix, o.CreateIfMissing)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "gcs", "gs://"+pathkit.Join(bucket, prefix)+"/", true, o, true)
	return finishDir(ctx, r, o)
}

// OpenGCSFile opens a single GCS object as a file. The object must
// exist.
func OpenGCSFile(ctx context.Context, a auth.GCP, bucket, path string, opts *Options) (*File, error) {
	o := opts.orDefault()
	full, err := pathkit.Normalize(path)
	if err != nil {
		return nil, err
	}
	parent := pathkit.Parent(full)
	b, err := gcs.Connect(ctx, a, bucket, parent, false)
	if err != nil {
		return nil, err
	}
	r := newResource(b, "gcs", "gs://"+pathkit.Join(bucket, parent)+"/", true, o, true)
	return finishFile(ctx, r, pathkit.Base(full), o)
}
