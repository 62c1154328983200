package ext2

import "math"

const (
	dirEntryInoStart      = 0
	dirEntryRecLenStart   = 4
	dirEntryNameLenStart  = 6
	dirEntryFileTypeStart = 7

	DirEntryHeaderSize = 8
	MaxNameLen         = math.MaxUint8
)

// DirEntry is one variable-length record of a directory block. An Ino of
// zero marks a record whose space is unused.
type DirEntry struct {
	Ino      Ino
	RecLen   uint16
	NameLen  uint8
	FileType FileType
	Name     string

	// Offset is the byte position of the record within its block.
	Offset uint64 `json:"-"`
}

// DirEntrySize is the smallest record that can hold a name of `nameLen`
// bytes.
func DirEntrySize(nameLen uint8) uint64 {
	return align4(DirEntryHeaderSize + uint64(nameLen))
}

// MinSize is the space the record actually needs; the rest of RecLen is
// padding.
func (entry *DirEntry) MinSize() uint64 {
	return DirEntrySize(entry.NameLen)
}

// DecodeDirEntry decodes the record at `offset` in the directory block `b`.
// `block` is only used for error messages.
func DecodeDirEntry(b []byte, block, offset uint64) (DirEntry, error) {
	malformed := func(reason string) (DirEntry, error) {
		return DirEntry{}, ErrMalformedDirEntry{block, offset, reason}
	}

	size := uint64(len(b))
	if offset > size || size-offset < DirEntryHeaderSize {
		return malformed("header overruns block")
	}

	p := b[offset:]
	entry := DirEntry{
		Ino:      Ino(getU32(p, dirEntryInoStart)),
		RecLen:   getU16(p, dirEntryRecLenStart),
		NameLen:  getU8(p, dirEntryNameLenStart),
		FileType: FileType(getU8(p, dirEntryFileTypeStart)),
		Offset:   offset,
	}

	switch recLen := uint64(entry.RecLen); {
	case recLen < DirEntryHeaderSize:
		return malformed("record length shorter than header")
	case recLen%4 != 0:
		return malformed("record length not a multiple of 4")
	case recLen > size-offset:
		return malformed("record length overruns block")
	case DirEntryHeaderSize+uint64(entry.NameLen) > recLen:
		return malformed("name overruns record")
	}

	entry.Name = string(p[DirEntryHeaderSize : DirEntryHeaderSize+int(entry.NameLen)])
	return entry, nil
}

// EncodeDirEntry writes the header and name of `entry` at `entry.Offset`.
// Bytes between the end of the name and the end of the record are left
// untouched.
func EncodeDirEntry(entry *DirEntry, b []byte) {
	p := b[entry.Offset:]
	putU32(p, dirEntryInoStart, uint32(entry.Ino))
	putU16(p, dirEntryRecLenStart, entry.RecLen)
	putU8(p, dirEntryNameLenStart, entry.NameLen)
	putU8(p, dirEntryFileTypeStart, uint8(entry.FileType))
	copy(p[DirEntryHeaderSize:], entry.Name[:entry.NameLen])
}
