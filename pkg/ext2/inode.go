package ext2

import "fmt"

// InodeBufferSize is the part of an inode slot that is interpreted. Larger
// slots keep their extra bytes untouched.
const InodeBufferSize = 128

// DirectBlocks is the number of block pointers addressed without
// indirection.
const DirectBlocks = 12

type Ino uint32

const RootIno Ino = 2

type Inode struct {
	Ino        Ino
	Mode       Mode
	Attr       FileAttr
	Size       uint64
	Size512    uint32
	LinksCount uint16
	Flags      uint32
	Block      [15]uint32
	FileACL    uint32
}

type FileAttr struct {
	UID   uint32
	GID   uint32
	ATime uint32
	CTime uint32
	MTime uint32
	DTime uint32
}

type Mode struct {
	FileType     FileType
	SUID         bool
	SGID         bool
	Sticky       bool
	AccessRights uint16
}

func (inode *Inode) IsDir() bool {
	return inode.Mode.FileType == FileTypeDir
}

// hasSizeHigh reports whether the word at 108 is the high half of the size.
// For directories that word is the directory ACL.
func hasSizeHigh(revLevel RevLevel, fileType FileType) bool {
	return revLevel > RevLevelStatic && fileType == FileTypeRegular
}

func DecodeInode(
	ino Ino,
	revLevel RevLevel,
	b *[InodeBufferSize]byte,
) (Inode, error) {
	p := b[:]
	mode, err := DecodeInodeMode(getU16(p, 0))
	if err != nil {
		return Inode{}, fmt.Errorf("decoding inode `%d`: %w", ino, err)
	}

	sizeLow := uint64(getU32(p, 4))
	sizeHigh := uint64(0)
	if hasSizeHigh(revLevel, mode.FileType) {
		sizeHigh = uint64(getU32(p, 108))
	}

	uidLow := uint32(getU16(p, 2))
	uidHigh := uint32(getU16(p, 120))
	gidLow := uint32(getU16(p, 24))
	gidHigh := uint32(getU16(p, 122))

	var block [15]uint32
	for i := range block {
		block[i] = getU32(p, 40+4*i)
	}

	return Inode{
		Ino:  ino,
		Mode: mode,
		Attr: FileAttr{
			UID:   uidLow + (uidHigh << 16),
			GID:   gidLow + (gidHigh << 16),
			ATime: getU32(p, 8),
			CTime: getU32(p, 12),
			MTime: getU32(p, 16),
			DTime: getU32(p, 20),
		},
		Size:       sizeLow + (sizeHigh << 32),
		Size512:    getU32(p, 28),
		LinksCount: getU16(p, 26),
		Flags:      getU32(p, 32),
		Block:      block,
		FileACL:    getU32(p, 104),
	}, nil
}

type ErrFileSizeTooLarge struct {
	Ino      Ino
	FileSize uint64
}

func (err ErrFileSizeTooLarge) Error() string {
	return fmt.Sprintf(
		"size `%#x` of inode `%d` doesn't fit in 32 bits",
		err.FileSize,
		err.Ino,
	)
}

// Encode writes the inode over `b`. Bytes of `b` that the Inode doesn't
// model are left as they were.
func (inode *Inode) Encode(revLevel RevLevel, b *[InodeBufferSize]byte) error {
	p := b[:]
	putU16(p, 0, inode.Mode.Encode())

	putU16(p, 2, uint16(inode.Attr.UID&0xffff))
	putU16(p, 120, uint16((inode.Attr.UID>>16)&0xffff))
	putU16(p, 24, uint16(inode.Attr.GID&0xffff))
	putU16(p, 122, uint16((inode.Attr.GID>>16)&0xffff))

	putU32(p, 4, uint32(inode.Size&0xffffffff))
	if hasSizeHigh(revLevel, inode.Mode.FileType) {
		putU32(p, 108, uint32(inode.Size>>32))
	} else if inode.Size>>32 != 0 {
		return fmt.Errorf(
			"encoding inode `%d`: %w",
			inode.Ino,
			ErrFileSizeTooLarge{inode.Ino, inode.Size},
		)
	}

	for i := range inode.Block {
		putU32(p, 40+4*i, inode.Block[i])
	}
	putU32(p, 8, inode.Attr.ATime)
	putU32(p, 12, inode.Attr.CTime)
	putU32(p, 16, inode.Attr.MTime)
	putU32(p, 20, inode.Attr.DTime)
	putU16(p, 26, inode.LinksCount)
	putU32(p, 28, inode.Size512)
	putU32(p, 32, inode.Flags)
	putU32(p, 104, inode.FileACL)

	return nil
}

func DecodeInodeMode(mode uint16) (Mode, error) {
	fileType, err := decodeFileTypeNibble((mode & 0xf000) >> 12)
	if err != nil {
		return Mode{}, fmt.Errorf("decoding inode mode `%#o`: %w", mode, err)
	}

	return Mode{
		FileType:     fileType,
		SUID:         (mode & 0x0800) != 0,
		SGID:         (mode & 0x0400) != 0,
		Sticky:       (mode & 0x0200) != 0,
		AccessRights: mode & 0x01ff,
	}, nil
}

func (mode *Mode) Encode() uint16 {
	var suid, sgid, sticky uint16
	if mode.SUID {
		suid = 0x0800
	}
	if mode.SGID {
		sgid = 0x0400
	}
	if mode.Sticky {
		sticky = 0x0200
	}
	return mode.FileType.Encode() + suid + sgid + sticky + mode.AccessRights
}
