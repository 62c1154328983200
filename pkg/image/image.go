package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/weberc2/ext2sh/pkg/ext2"
	"github.com/weberc2/ext2sh/pkg/logger"
	"github.com/weberc2/ext2sh/pkg/objectstore"
)

const s3Scheme = "s3://"

type Options struct {
	ReadOnly bool

	// Store serves `s3://` sources. When nil, an S3 client is built for
	// AWSRegion.
	Store     objectstore.ObjectStore
	AWSRegion string
}

// Image is an opened backing image. Flush persists writes made through
// Volume; Close flushes and releases the image.
type Image struct {
	Source string
	Volume ext2.Volume

	flush func(context.Context) error
	close func() error
}

// ParseS3Location splits `s3://bucket/key` into its bucket and key.
func ParseS3Location(source string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(source, s3Scheme) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(source[len(s3Scheme):], "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open opens `source`, a local path or an `s3://bucket/key` URL. Objects
// whose key ends in `.gz` are decompressed on open and compressed on save.
func Open(ctx context.Context, source string, opts Options) (*Image, error) {
	if strings.HasPrefix(source, s3Scheme) {
		bucket, key, ok := ParseS3Location(source)
		if !ok {
			return nil, fmt.Errorf(
				"opening image `%s`: wanted `s3://<bucket>/<key>`",
				source,
			)
		}
		img, err := openObject(ctx, bucket, key, opts)
		if err != nil {
			return nil, fmt.Errorf("opening image `%s`: %w", source, err)
		}
		img.Source = source
		return img, nil
	}

	img, err := openFile(ctx, source, opts.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("opening image `%s`: %w", source, err)
	}
	return img, nil
}

func openFile(ctx context.Context, path string, readOnly bool) (*Image, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	logger.Get(ctx).Debug("opened image file", "path", path, "readOnly", readOnly)

	var volume ext2.Volume = ext2.NewFileVolume(file)
	flush := func(context.Context) error { return file.Sync() }
	if readOnly {
		volume = ext2.ReadOnlyVolume{Volume: volume}
		flush = func(context.Context) error { return nil }
	}
	return &Image{
		Source: path,
		Volume: volume,
		flush:  flush,
		close:  file.Close,
	}, nil
}

func openObject(
	ctx context.Context,
	bucket string,
	key string,
	opts Options,
) (*Image, error) {
	store := opts.Store
	if store == nil {
		s3Store, err := objectstore.NewS3ObjectStore(opts.AWSRegion)
		if err != nil {
			return nil, err
		}
		store = s3Store
	}
	if strings.HasSuffix(key, ".gz") {
		store = &objectstore.GzipObjectStore{ObjectStore: store}
	}

	body, err := store.GetObject(bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("downloading object: %w", err)
	}

	log := logger.Get(ctx)
	log.Debug(
		"downloaded image object",
		"bucket", bucket,
		"key", key,
		"size", len(data),
	)

	memory := ext2.NewMemoryVolume(data)
	img := Image{
		Volume: memory,
		flush: func(ctx context.Context) error {
			if !memory.Dirty() {
				return nil
			}
			if err := store.PutObject(
				bucket,
				key,
				bytes.NewReader(memory.Bytes()),
			); err != nil {
				return fmt.Errorf("uploading image: %w", err)
			}
			memory.MarkClean()
			logger.Get(ctx).Debug(
				"uploaded image object",
				"bucket", bucket,
				"key", key,
			)
			return nil
		},
		close: func() error { return nil },
	}
	if opts.ReadOnly {
		img.Volume = ext2.ReadOnlyVolume{Volume: memory}
	}
	return &img, nil
}

func (img *Image) Flush(ctx context.Context) error {
	if err := img.flush(ctx); err != nil {
		return fmt.Errorf("flushing image `%s`: %w", img.Source, err)
	}
	return nil
}

// Close flushes the image and releases it. The image is released even when
// the flush fails.
func (img *Image) Close(ctx context.Context) error {
	flushErr := img.Flush(ctx)
	if err := img.close(); err != nil {
		return fmt.Errorf("closing image `%s`: %w", img.Source, err)
	}
	return flushErr
}
