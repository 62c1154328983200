package ext2

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/weberc2/ext2sh/pkg/testsupport"
)

// blockSums returns the sum of record lengths of each block of `dir`.
func blockSums(t *testing.T, fs *FileSystem, dir Ino) []uint64 {
	t.Helper()
	inode, err := fs.ReadInode(dir)
	if err != nil {
		t.Fatalf("ReadInode(): unexpected err: %v", err)
	}
	blocks, err := fs.DecodeBlocks(&inode)
	if err != nil {
		t.Fatalf("DecodeBlocks(): unexpected err: %v", err)
	}
	sums := make([]uint64, len(blocks))
	for i, block := range blocks {
		for _, entry := range block.Entries {
			sums[i] += uint64(entry.RecLen)
		}
	}
	return sums
}

func TestInsertEntry(t *testing.T) {
	type testCase struct {
		name          string
		image         func() *testsupport.Image
		dir           Ino
		entryName     string
		target        Ino
		fileType      FileType
		wantedEntries []string
		wantedBlock   uint32
		wantedOffset  uint64
		wantedRecLen  uint16
	}

	for _, tc := range []testCase{{
		name:      "append after padded tail",
		image:     testsupport.DefaultImage,
		dir:       RootIno,
		entryName: "newname",
		target:    13,
		fileType:  FileTypeRegular,
		wantedEntries: []string{
			".",
			"..",
			"lost+found",
			"test_directory",
			"hello.txt",
			"newname",
		},
		wantedBlock:  testsupport.FirstDataBlock,
		wantedOffset: 68 + 20,
		wantedRecLen: 1024 - 68 - 20,
	}, {
		name: "replace unused tail",
		image: func() *testsupport.Image {
			img := testsupport.DefaultImage()
			img.Dir(20, []testsupport.Dirent{
				{Ino: 20, Type: testsupport.TypeDir, Name: "."},
				{Ino: 2, Type: testsupport.TypeDir, Name: ".."},
				{Ino: 0, Name: "removed"},
			})
			return img
		},
		dir:           20,
		entryName:     "new",
		target:        14,
		fileType:      FileTypeRegular,
		wantedEntries: []string{".", "..", "new"},
		wantedBlock:   14,
		wantedOffset:  24,
		wantedRecLen:  1024 - 24,
	}, {
		name: "last block of many",
		image: func() *testsupport.Image {
			img := testsupport.DefaultImage()
			img.Dir(
				20,
				[]testsupport.Dirent{
					{Ino: 20, Type: testsupport.TypeDir, Name: "."},
					{Ino: 2, Type: testsupport.TypeDir, Name: ".."},
				},
				[]testsupport.Dirent{
					{Ino: 13, Type: testsupport.TypeRegular, Name: "second"},
				},
			)
			return img
		},
		dir:           20,
		entryName:     "third",
		target:        12,
		fileType:      FileTypeDir,
		wantedEntries: []string{".", "..", "second", "third"},
		wantedBlock:   15,
		wantedOffset:  16,
		wantedRecLen:  1024 - 16,
	}, {
		name: "block of one unused record",
		image: func() *testsupport.Image {
			img := testsupport.DefaultImage()
			img.Dir(
				20,
				[]testsupport.Dirent{
					{Ino: 20, Type: testsupport.TypeDir, Name: "."},
					{Ino: 2, Type: testsupport.TypeDir, Name: ".."},
				},
				[]testsupport.Dirent{{Ino: 0}},
			)
			return img
		},
		dir:           20,
		entryName:     "fresh",
		target:        13,
		fileType:      FileTypeRegular,
		wantedEntries: []string{".", "..", "fresh"},
		wantedBlock:   15,
		wantedOffset:  0,
		wantedRecLen:  1024,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			img := tc.image()
			volume, fs := load(t, img)
			before := bytes.Clone(volume.Bytes())

			if err := fs.InsertEntry(
				tc.dir,
				tc.entryName,
				tc.target,
				tc.fileType,
			); err != nil {
				t.Fatalf("InsertEntry(): unexpected err: %v", err)
			}

			entries, err := fs.ReadDir(tc.dir)
			if err != nil {
				t.Fatalf("ReadDir(): unexpected err: %v", err)
			}
			if w, f := mustJSON(t, tc.wantedEntries), mustJSON(t, entryNames(entries)); w != f {
				t.Fatalf("ReadDir(): wanted `%s`; found `%s`", w, f)
			}

			entry, found := FindEntry(entries, tc.entryName)
			if !found {
				t.Fatalf("FindEntry(): `%s` not found", tc.entryName)
			}
			wanted := DirEntry{
				Ino:      tc.target,
				RecLen:   tc.wantedRecLen,
				NameLen:  uint8(len(tc.entryName)),
				FileType: tc.fileType,
				Name:     tc.entryName,
				Offset:   tc.wantedOffset,
			}
			if entry != wanted {
				t.Fatalf(
					"InsertEntry(): wanted entry `%s` at `%d`; found `%s` at "+
						"`%d`",
					mustJSON(t, &wanted),
					wanted.Offset,
					mustJSON(t, &entry),
					entry.Offset,
				)
			}

			for i, sum := range blockSums(t, fs, tc.dir) {
				if sum != testsupport.BlockSize {
					t.Fatalf(
						"InsertEntry(): block `%d` record lengths sum to `%d`",
						i,
						sum,
					)
				}
			}

			// nothing but the target block may change
			after := volume.Bytes()
			start := int(tc.wantedBlock) * testsupport.BlockSize
			end := start + testsupport.BlockSize
			if !bytes.Equal(before[:start], after[:start]) ||
				!bytes.Equal(before[end:], after[end:]) {
				t.Fatal("InsertEntry(): bytes outside the target block changed")
			}
		})
	}
}

// fullImage returns an image whose directory 20 has `spare` bytes of
// padding after its last record.
func fullImage(spare int) *testsupport.Image {
	img := testsupport.DefaultImage()
	entries := []testsupport.Dirent{
		{Ino: 20, Type: testsupport.TypeDir, Name: "."},
		{Ino: 2, Type: testsupport.TypeDir, Name: ".."},
	}
	for i := 0; i < 3; i++ {
		entries = append(entries, testsupport.Dirent{
			Ino:  13,
			Type: testsupport.TypeRegular,
			Name: fmt.Sprintf("%s%d", strings.Repeat("f", 243), i),
		})
	}
	// 24 + 3*252 leaves 244 bytes for the tail
	entries = append(entries, testsupport.Dirent{
		Ino:  13,
		Type: testsupport.TypeRegular,
		Name: strings.Repeat("t", 236-spare),
	})
	img.Dir(20, entries)
	return img
}

func TestInsertEntryDirectoryFull(t *testing.T) {
	for _, tc := range []struct {
		name      string
		spare     int
		entryName string
	}{
		{"no padding", 0, "x"},
		{"padding too small", 8, "x"},
		{"padding one byte short", 12, "abcde"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			volume, fs := load(t, fullImage(tc.spare))
			before := bytes.Clone(volume.Bytes())

			err := fs.InsertEntry(20, tc.entryName, 13, FileTypeRegular)
			if !errors.Is(err, DirectoryFullErr) {
				t.Fatalf(
					"InsertEntry(): wanted `DirectoryFullErr`; found `%v`",
					err,
				)
			}
			var full ErrDirectoryFull
			if !errors.As(err, &full) {
				t.Fatalf("InsertEntry(): wanted `ErrDirectoryFull`")
			}
			if full.Available != uint64(tc.spare) {
				t.Fatalf(
					"InsertEntry(): wanted `%d` bytes available; found `%d`",
					tc.spare,
					full.Available,
				)
			}
			if !bytes.Equal(before, volume.Bytes()) {
				t.Fatal("InsertEntry(): image changed after a failed insert")
			}
			if volume.Dirty() {
				t.Fatal("InsertEntry(): volume written after a failed insert")
			}
		})
	}
}

func TestInsertEntryExactFit(t *testing.T) {
	volume, fs := load(t, fullImage(12))
	if err := fs.InsertEntry(20, "abcd", 13, FileTypeRegular); err != nil {
		t.Fatalf("InsertEntry(): unexpected err: %v", err)
	}
	if !volume.Dirty() {
		t.Fatal("InsertEntry(): volume wasn't written")
	}
	entries, err := fs.ReadDir(20)
	if err != nil {
		t.Fatalf("ReadDir(): unexpected err: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Name != "abcd" || last.RecLen != 12 {
		t.Fatalf(
			"ReadDir(): wanted last entry `abcd` of `12` bytes; found `%s` "+
				"of `%d`",
			last.Name,
			last.RecLen,
		)
	}
}

func TestInsertEntryErrors(t *testing.T) {
	type testCase struct {
		name      string
		dir       Ino
		entryName string
		readOnly  bool
		wanted    error
	}

	for _, tc := range []testCase{{
		name:      "not a directory",
		dir:       testsupport.HelloIno,
		entryName: "x",
		wanted:    NotADirErr,
	}, {
		name:      "invalid inode",
		dir:       0,
		entryName: "x",
		wanted:    InvalidInodeNumberErr,
	}, {
		name:      "empty name",
		dir:       RootIno,
		entryName: "",
		wanted:    InvalidNameErr,
	}, {
		name:      "slash in name",
		dir:       RootIno,
		entryName: "a/b",
		wanted:    InvalidNameErr,
	}, {
		name:      "NUL in name",
		dir:       RootIno,
		entryName: "a\x00b",
		wanted:    InvalidNameErr,
	}, {
		name:      "name too long",
		dir:       RootIno,
		entryName: strings.Repeat("n", 256),
		wanted:    NameTooLongErr,
	}, {
		name:      "read-only",
		dir:       RootIno,
		entryName: "x",
		readOnly:  true,
		wanted:    ReadOnlyErr,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			img := testsupport.DefaultImage()
			before := bytes.Clone(img.Bytes())

			var volume Volume = NewMemoryVolume(img.Bytes())
			if tc.readOnly {
				volume = ReadOnlyVolume{volume}
			}
			fs, err := Load(volume, tc.readOnly)
			if err != nil {
				t.Fatalf("Load(): unexpected err: %v", err)
			}

			err = fs.InsertEntry(tc.dir, tc.entryName, 13, FileTypeRegular)
			if !errors.Is(err, tc.wanted) {
				t.Fatalf(
					"InsertEntry(): wanted `%v`; found `%v`",
					tc.wanted,
					err,
				)
			}
			if !bytes.Equal(before, img.Bytes()) {
				t.Fatal("InsertEntry(): image changed after a failed insert")
			}
		})
	}
}

func TestInsertEntryNoBlocks(t *testing.T) {
	img := testsupport.DefaultImage()
	img.PutInode(20, testsupport.Inode{Mode: testsupport.ModeDir, Links: 2})
	_, fs := load(t, img)

	if err := fs.InsertEntry(20, "x", 13, FileTypeRegular); !errors.Is(
		err,
		DirectoryFullErr,
	) {
		t.Fatalf("InsertEntry(): wanted `DirectoryFullErr`; found `%v`", err)
	}
}

func TestInsertEntryLeavesInodeAlone(t *testing.T) {
	img := testsupport.DefaultImage()
	rootBefore := bytes.Clone(img.InodeBytes(testsupport.RootIno))
	helloBefore := bytes.Clone(img.InodeBytes(testsupport.HelloIno))
	_, fs := load(t, img)

	if err := fs.InsertEntry(RootIno, "again", 13, FileTypeRegular); err != nil {
		t.Fatalf("InsertEntry(): unexpected err: %v", err)
	}
	if !bytes.Equal(rootBefore, img.InodeBytes(testsupport.RootIno)) {
		t.Fatal("InsertEntry(): directory inode changed")
	}
	if !bytes.Equal(helloBefore, img.InodeBytes(testsupport.HelloIno)) {
		t.Fatal("InsertEntry(): target inode changed")
	}
}

func TestInsertEntryWithoutFiletypeFeature(t *testing.T) {
	img := testsupport.DefaultImage()
	img.SetSuperblockU32(96, 0)
	volume, fs := load(t, img)

	if err := fs.InsertEntry(RootIno, "newdir", 12, FileTypeDir); err != nil {
		t.Fatalf("InsertEntry(): unexpected err: %v", err)
	}

	// the new record follows hello.txt at offset 68 + 20
	offset := testsupport.FirstDataBlock*testsupport.BlockSize + 88
	if nameLen := getU16(volume.Bytes(), offset+6); nameLen != 6 {
		t.Fatalf(
			"InsertEntry(): wanted 16-bit name_len `6`; found `%d`",
			nameLen,
		)
	}

	infos, err := fs.List(RootIno)
	if err != nil {
		t.Fatalf("List(): unexpected err: %v", err)
	}
	last := infos[len(infos)-1]
	if last != (FileInfo{"newdir", 12, FileTypeDir}) {
		t.Fatalf("List(): wanted `newdir`; found `%s`", mustJSON(t, &last))
	}
}

func TestMakeDirectory(t *testing.T) {
	_, fs := load(t, testsupport.DefaultImage())

	if err := fs.MakeDirectory(RootIno, "new_dir", RootIno); err != nil {
		t.Fatalf("MakeDirectory(): unexpected err: %v", err)
	}

	infos, err := fs.List(RootIno)
	if err != nil {
		t.Fatalf("List(): unexpected err: %v", err)
	}
	last := infos[len(infos)-1]
	if last != (FileInfo{"new_dir", RootIno, FileTypeDir}) {
		t.Fatalf("List(): wanted `new_dir`; found `%s`", mustJSON(t, &last))
	}

	// new_dir is the root again, so the walk can loop through it
	ino, err := fs.Resolve(RootIno, "new_dir/new_dir/hello.txt")
	if err != nil {
		t.Fatalf("Resolve(): unexpected err: %v", err)
	}
	if ino != testsupport.HelloIno {
		t.Fatalf("Resolve(): wanted `%d`; found `%d`", testsupport.HelloIno, ino)
	}

	err = fs.MakeDirectory(RootIno, "new_dir", RootIno)
	if !errors.Is(err, EntryExistsErr) {
		t.Fatalf("MakeDirectory(): wanted `EntryExistsErr`; found `%v`", err)
	}
}

func TestLink(t *testing.T) {
	_, fs := load(t, testsupport.DefaultImage())

	if err := fs.Link(
		testsupport.TestDirectoryIno,
		"hello_link",
		testsupport.HelloIno,
	); err != nil {
		t.Fatalf("Link(): unexpected err: %v", err)
	}

	ino, err := fs.Resolve(RootIno, "test_directory/hello_link")
	if err != nil {
		t.Fatalf("Resolve(): unexpected err: %v", err)
	}
	data, err := fs.ReadFileBytes(ino)
	if err != nil {
		t.Fatalf("ReadFileBytes(): unexpected err: %v", err)
	}
	if string(data) != testsupport.HelloContent {
		t.Fatalf(
			"ReadFileBytes(): wanted `%q`; found `%q`",
			testsupport.HelloContent,
			data,
		)
	}

	infos, err := fs.List(testsupport.TestDirectoryIno)
	if err != nil {
		t.Fatalf("List(): unexpected err: %v", err)
	}
	if last := infos[len(infos)-1]; last.FileType != FileTypeRegular {
		t.Fatalf("List(): wanted `Regular` link; found `%s`", last.FileType)
	}

	if err := fs.Link(
		testsupport.TestDirectoryIno,
		"file_in_folder.txt",
		testsupport.HelloIno,
	); !errors.Is(err, EntryExistsErr) {
		t.Fatalf("Link(): wanted `EntryExistsErr`; found `%v`", err)
	}
}
