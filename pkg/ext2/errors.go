package ext2

import "fmt"

type constErr string

func (err constErr) Error() string { return string(err) }

const (
	CorruptImageErr       constErr = "corrupt image"
	InvalidInodeNumberErr constErr = "invalid inode number"
	MalformedDirEntryErr  constErr = "malformed directory entry"
	NotADirErr            constErr = "not a directory"
	IsADirErr             constErr = "is a directory"
	DirectoryFullErr      constErr = "directory full"
	FileTooLargeErr       constErr = "file too large for direct blocks"
	NameTooLongErr        constErr = "file name too long"
	InvalidNameErr        constErr = "invalid file name"
	EntryExistsErr        constErr = "entry exists"
	ReadOnlyErr           constErr = "volume is read-only"
)

type ErrBadMagic struct {
	Found uint16
}

func (err ErrBadMagic) Error() string {
	return fmt.Sprintf(
		"bad magic: wanted `%#04x`; found `%#04x`",
		SuperblockMagic,
		err.Found,
	)
}

func (err ErrBadMagic) Unwrap() error { return CorruptImageErr }

type ErrIncompatibleFeatures struct {
	Found uint32
}

func (err ErrIncompatibleFeatures) Error() string {
	return fmt.Sprintf(
		"volume uses incompatible features: `%#04x`",
		err.Found,
	)
}

type ErrIncompatibleFeaturesReadOnly struct {
	Found uint32
}

func (err ErrIncompatibleFeaturesReadOnly) Error() string {
	return fmt.Sprintf(
		"volume uses incompatible features; %s: `%#04x`",
		"only reading is supported",
		err.Found,
	)
}

type ErrUnknownFileType struct {
	FoundNibble uint16
}

func (err ErrUnknownFileType) Error() string {
	return fmt.Sprintf("unknown file type nibble: `%d`", err.FoundNibble)
}

func (err ErrUnknownFileType) Unwrap() error { return CorruptImageErr }

type ErrInvalidIno struct {
	Ino   Ino
	Count uint32
}

func (err ErrInvalidIno) Error() string {
	return fmt.Sprintf(
		"invalid inode number `%d`: must be in [1, %d]",
		err.Ino,
		err.Count,
	)
}

func (err ErrInvalidIno) Unwrap() error { return InvalidInodeNumberErr }

type ErrMalformedDirEntry struct {
	Block  uint64
	Offset uint64
	Reason string
}

func (err ErrMalformedDirEntry) Error() string {
	return fmt.Sprintf(
		"malformed directory entry in block `%d` at offset `%d`: %s",
		err.Block,
		err.Offset,
		err.Reason,
	)
}

func (err ErrMalformedDirEntry) Unwrap() error { return MalformedDirEntryErr }

type ErrDirectoryFull struct {
	Dir       Ino
	Needed    uint64
	Available uint64
}

func (err ErrDirectoryFull) Error() string {
	return fmt.Sprintf(
		"directory `%d` is full: needed `%d` bytes; `%d` available in "+
			"last block",
		err.Dir,
		err.Needed,
		err.Available,
	)
}

func (err ErrDirectoryFull) Unwrap() error { return DirectoryFullErr }
