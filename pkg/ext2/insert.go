package ext2

import (
	"fmt"
	"strings"
)

func validateName(name string) error {
	if len(name) > MaxNameLen {
		return NameTooLongErr
	}
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return InvalidNameErr
	}
	return nil
}

// InsertEntry adds an entry `name` -> `target` to the directory `dirIno`.
// The new record is carved out of the padding of the last record of the
// directory's last block, so only that block is written. The directory
// inode, the target's link count and the allocation bitmaps are left alone.
func (fs *FileSystem) InsertEntry(
	dirIno Ino,
	name string,
	target Ino,
	fileType FileType,
) error {
	if err := validateName(name); err != nil {
		return fmt.Errorf(
			"inserting `%s` into directory `%d`: %w",
			name,
			dirIno,
			err,
		)
	}

	dir, err := fs.ReadInode(dirIno)
	if err != nil {
		return fmt.Errorf(
			"inserting `%s` into directory `%d`: %w",
			name,
			dirIno,
			err,
		)
	}

	blocks, err := fs.DecodeBlocks(&dir)
	if err != nil {
		return fmt.Errorf(
			"inserting `%s` into directory `%d`: %w",
			name,
			dirIno,
			err,
		)
	}

	newSize := DirEntrySize(uint8(len(name)))
	if len(blocks) < 1 {
		return fmt.Errorf(
			"inserting `%s` into directory `%d`: %w",
			name,
			dirIno,
			ErrDirectoryFull{Dir: dirIno, Needed: newSize},
		)
	}

	last := &blocks[len(blocks)-1]
	tail := last.Entries[len(last.Entries)-1]

	// an unused tail record is overwritten rather than split
	var tailMin uint64
	if tail.Ino != 0 {
		tailMin = tail.MinSize()
	}

	if tailMin+newSize > uint64(tail.RecLen) {
		return fmt.Errorf(
			"inserting `%s` into directory `%d`: %w",
			name,
			dirIno,
			ErrDirectoryFull{
				Dir:       dirIno,
				Needed:    newSize,
				Available: uint64(tail.RecLen) - tailMin,
			},
		)
	}

	// without the filetype feature, byte 7 is the high byte of name_len
	if fs.Superblock.FeatureIncompat&FeatureIncompatFiletype == 0 {
		fileType = FileTypeUnknown
	}

	entry := DirEntry{
		Ino:      target,
		RecLen:   tail.RecLen - uint16(tailMin),
		NameLen:  uint8(len(name)),
		FileType: fileType,
		Name:     name,
		Offset:   tail.Offset + tailMin,
	}
	if tail.Ino != 0 {
		tail.RecLen = uint16(tailMin)
		EncodeDirEntry(&tail, last.Data)
	}
	EncodeDirEntry(&entry, last.Data)

	if err := fs.Device.WriteBlock(uint64(last.Block), last.Data); err != nil {
		return fmt.Errorf(
			"inserting `%s` into directory `%d`: %w",
			name,
			dirIno,
			err,
		)
	}

	fs.logger().Debug(
		"inserted directory entry",
		"dir", dirIno,
		"name", name,
		"target", target,
		"fileType", fileType.String(),
		"block", last.Block,
		"offset", entry.Offset,
	)
	return nil
}
