package image

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/weberc2/ext2sh/pkg/ext2"
	"github.com/weberc2/ext2sh/pkg/objectstore"
	"github.com/weberc2/ext2sh/pkg/testsupport"
)

func writeImageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(
		path,
		testsupport.DefaultImage().Bytes(),
		0o644,
	); err != nil {
		t.Fatalf("writing image file: %v", err)
	}
	return path
}

func insertNewName(t *testing.T, img *Image, readOnly bool) error {
	t.Helper()
	fs, err := ext2.Load(img.Volume, readOnly)
	if err != nil {
		t.Fatalf("Load(): unexpected err: %v", err)
	}
	return fs.InsertEntry(ext2.RootIno, "newname", 13, ext2.FileTypeRegular)
}

func hasNewName(t *testing.T, data []byte) bool {
	t.Helper()
	fs, err := ext2.Load(ext2.NewMemoryVolume(data), true)
	if err != nil {
		t.Fatalf("Load(): unexpected err: %v", err)
	}
	entries, err := fs.ReadDir(ext2.RootIno)
	if err != nil {
		t.Fatalf("ReadDir(): unexpected err: %v", err)
	}
	_, found := ext2.FindEntry(entries, "newname")
	return found
}

func TestParseS3Location(t *testing.T) {
	for _, tc := range []struct {
		source string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://bucket/disk.img", "bucket", "disk.img", true},
		{"s3://bucket/images/disk.img.gz", "bucket", "images/disk.img.gz", true},
		{"s3://bucket", "", "", false},
		{"s3://bucket/", "", "", false},
		{"s3:///disk.img", "", "", false},
		{"disk.img", "", "", false},
	} {
		bucket, key, ok := ParseS3Location(tc.source)
		if bucket != tc.bucket || key != tc.key || ok != tc.ok {
			t.Fatalf(
				"ParseS3Location(`%s`): wanted `(%s, %s, %t)`; found "+
					"`(%s, %s, %t)`",
				tc.source,
				tc.bucket,
				tc.key,
				tc.ok,
				bucket,
				key,
				ok,
			)
		}
	}
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	path := writeImageFile(t)

	img, err := Open(ctx, path, Options{})
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if err := insertNewName(t, img, false); err != nil {
		t.Fatalf("InsertEntry(): unexpected err: %v", err)
	}
	if err := img.Close(ctx); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading image file: %v", err)
	}
	if !hasNewName(t, data) {
		t.Fatal("Close(): insert wasn't persisted to the image file")
	}
}

func TestOpenFileReadOnly(t *testing.T) {
	ctx := context.Background()
	path := writeImageFile(t)

	img, err := Open(ctx, path, Options{ReadOnly: true})
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if err := insertNewName(t, img, true); !errors.Is(err, ext2.ReadOnlyErr) {
		t.Fatalf("InsertEntry(): wanted `ReadOnlyErr`; found `%v`", err)
	}
	if err := img.Close(ctx); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading image file: %v", err)
	}
	if !bytes.Equal(data, testsupport.DefaultImage().Bytes()) {
		t.Fatal("Close(): read-only image file changed")
	}
}

func TestOpenFileMissing(t *testing.T) {
	_, err := Open(
		context.Background(),
		filepath.Join(t.TempDir(), "missing.img"),
		Options{},
	)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open(): wanted `os.ErrNotExist`; found `%v`", err)
	}
}

func TestOpenObject(t *testing.T) {
	type testCase struct {
		name          string
		key           string
		readOnly      bool
		insert        bool
		wantedWritten bool
	}

	for _, tc := range []testCase{{
		name:          "modified",
		key:           "disk.img",
		insert:        true,
		wantedWritten: true,
	}, {
		name:          "modified gzip",
		key:           "disk.img.gz",
		insert:        true,
		wantedWritten: true,
	}, {
		name: "unmodified",
		key:  "disk.img",
	}, {
		name:     "read-only",
		key:      "disk.img",
		readOnly: true,
		insert:   true,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			fake := testsupport.ObjectStoreFake{}
			var store objectstore.ObjectStore = fake
			if filepath.Ext(tc.key) == ".gz" {
				store = &objectstore.GzipObjectStore{ObjectStore: fake}
			}
			if err := store.PutObject(
				"bucket",
				tc.key,
				bytes.NewReader(testsupport.DefaultImage().Bytes()),
			); err != nil {
				t.Fatalf("PutObject(): unexpected err: %v", err)
			}
			original := fake[[2]string{"bucket", tc.key}]

			img, err := Open(
				ctx,
				"s3://bucket/"+tc.key,
				Options{ReadOnly: tc.readOnly, Store: fake},
			)
			if err != nil {
				t.Fatalf("Open(): unexpected err: %v", err)
			}
			if tc.insert {
				err := insertNewName(t, img, tc.readOnly)
				if tc.readOnly && !errors.Is(err, ext2.ReadOnlyErr) {
					t.Fatalf("InsertEntry(): wanted `ReadOnlyErr`; found `%v`", err)
				}
				if !tc.readOnly && err != nil {
					t.Fatalf("InsertEntry(): unexpected err: %v", err)
				}
			}
			if err := img.Close(ctx); err != nil {
				t.Fatalf("Close(): unexpected err: %v", err)
			}

			stored := fake[[2]string{"bucket", tc.key}]
			if written := !bytes.Equal(stored, original); written != tc.wantedWritten {
				t.Fatalf(
					"Close(): wanted object written `%t`; found `%t`",
					tc.wantedWritten,
					written,
				)
			}
			if !tc.wantedWritten {
				return
			}

			body, err := store.GetObject("bucket", tc.key)
			if err != nil {
				t.Fatalf("GetObject(): unexpected err: %v", err)
			}
			defer body.Close()
			data, err := io.ReadAll(body)
			if err != nil {
				t.Fatalf("reading object: %v", err)
			}
			if !hasNewName(t, data) {
				t.Fatal("Close(): insert wasn't persisted to the object")
			}
		})
	}
}

func TestOpenObjectErrors(t *testing.T) {
	ctx := context.Background()
	fake := testsupport.ObjectStoreFake{}

	_, err := Open(ctx, "s3://bucket/missing.img", Options{Store: fake})
	var notFound *objectstore.ObjectNotFoundErr
	if !errors.As(err, &notFound) {
		t.Fatalf("Open(): wanted `ObjectNotFoundErr`; found `%v`", err)
	}

	if _, err := Open(ctx, "s3://bucket", Options{Store: fake}); err == nil {
		t.Fatal("Open(): wanted err for a location without a key")
	}
}
