package testsupport

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// The images built here use a single block group with 1KiB blocks:
//
//	block 0      boot block
//	block 1      superblock
//	block 2      group descriptor table
//	block 3      block bitmap
//	block 4      inode bitmap
//	blocks 5-8   inode table (32 inodes of 128 bytes)
//	blocks 9-    data
const (
	BlockSize      = 1024
	BlocksCount    = 64
	InodesCount    = 32
	InodeSize      = 128
	FirstDataBlock = 9

	superblockOffset = 1024
	gdtBlock         = 2
	blockBitmapBlock = 3
	inodeBitmapBlock = 4
	inodeTableBlock  = 5

	ModeDir     uint16 = 0x4000 | 0o755
	ModeRegular uint16 = 0x8000 | 0o644
	ModeSymlink uint16 = 0xa000 | 0o777

	TypeRegular uint8 = 1
	TypeDir     uint8 = 2
	TypeSymlink uint8 = 7

	RootIno          = 2
	LostFoundIno     = 11
	TestDirectoryIno = 12
	HelloIno         = 13
	FileInFolderIno  = 14

	HelloContent        = "Hello, world!\n"
	FileInFolderContent = "I am a file inside of a folder.\n"
	VolumeName          = "ext2sh-test"
)

var VolumeUUID = uuid.MustParse("5f8c2a4e-3b1d-4c6e-9a7f-0123456789ab")

type Image struct {
	buf       []byte
	nextBlock uint32
}

// Inode is the subset of on-disk inode fields the builder writes.
type Inode struct {
	Mode   uint16
	Size   uint32
	Links  uint16
	Blocks []uint32
}

// Dirent describes one directory record. A zero RecLen means the minimal
// record size, except for the last record of a block, which is stretched to
// the end of the block.
type Dirent struct {
	Ino    uint32
	Type   uint8
	Name   string
	RecLen uint16
}

// NewImage returns an image with a superblock and group descriptor table
// but no inodes.
func NewImage() *Image {
	img := Image{
		buf:       make([]byte, BlocksCount*BlockSize),
		nextBlock: FirstDataBlock,
	}

	sb := img.buf[superblockOffset : superblockOffset+1024]
	putU32(sb, 0, InodesCount)
	putU32(sb, 4, BlocksCount)
	putU32(sb, 16, InodesCount-FileInFolderIno)
	putU32(sb, 20, 1) // first data block
	putU32(sb, 32, 8192)
	putU32(sb, 40, InodesCount)
	putU16(sb, 56, 0xef53)
	putU16(sb, 58, 1) // clean
	putU32(sb, 76, 1) // dynamic revision
	putU32(sb, 84, 11)
	putU16(sb, 88, InodeSize)
	putU32(sb, 96, 0x0002) // filetype
	copy(sb[104:120], VolumeUUID[:])
	copy(sb[120:136], VolumeName)

	gd := img.buf[gdtBlock*BlockSize:]
	putU32(gd, 0, blockBitmapBlock)
	putU32(gd, 4, inodeBitmapBlock)
	putU32(gd, 8, inodeTableBlock)

	return &img
}

func (img *Image) Bytes() []byte { return img.buf }

// SetSuperblockU32 overwrites a 32-bit superblock field at `offset`.
func (img *Image) SetSuperblockU32(offset int, u uint32) {
	putU32(img.buf[superblockOffset:], offset, u)
}

// SetSuperblockU16 overwrites a 16-bit superblock field at `offset`.
func (img *Image) SetSuperblockU16(offset int, u uint16) {
	putU16(img.buf[superblockOffset:], offset, u)
}

// AllocBlock hands out data blocks in order.
func (img *Image) AllocBlock() uint32 {
	if img.nextBlock >= BlocksCount {
		panic(fmt.Sprintf("test image out of blocks (%d)", BlocksCount))
	}
	block := img.nextBlock
	img.nextBlock++
	return block
}

func (img *Image) InodeOffset(ino uint32) int {
	return inodeTableBlock*BlockSize + int(ino-1)*InodeSize
}

func (img *Image) InodeBytes(ino uint32) []byte {
	offset := img.InodeOffset(ino)
	return img.buf[offset : offset+InodeSize]
}

func (img *Image) BlockBytes(block uint32) []byte {
	return img.buf[block*BlockSize : (block+1)*BlockSize]
}

func (img *Image) PutInode(ino uint32, inode Inode) {
	b := img.InodeBytes(ino)
	putU16(b, 0, inode.Mode)
	putU32(b, 4, inode.Size)
	putU16(b, 26, inode.Links)
	putU32(b, 28, uint32(len(inode.Blocks))*(BlockSize/512))
	for i, block := range inode.Blocks {
		putU32(b, 40+4*i, block)
	}
}

func (img *Image) PutBlock(block uint32, data []byte) {
	if len(data) > BlockSize {
		panic(fmt.Sprintf("block data too large: %d", len(data)))
	}
	copy(img.BlockBytes(block), data)
}

func (img *Image) PutDirBlock(block uint32, entries []Dirent) {
	b := img.BlockBytes(block)
	offset := 0
	for i, entry := range entries {
		recLen := int(entry.RecLen)
		if recLen == 0 {
			if i == len(entries)-1 {
				recLen = BlockSize - offset
			} else {
				recLen = DirentSize(entry.Name)
			}
		}
		putU32(b, offset, entry.Ino)
		putU16(b, offset+4, uint16(recLen))
		b[offset+6] = uint8(len(entry.Name))
		b[offset+7] = entry.Type
		copy(b[offset+8:], entry.Name)
		offset += recLen
	}
}

// Dir writes a directory inode with one data block per element of
// `blocks`.
func (img *Image) Dir(ino uint32, blocks ...[]Dirent) []uint32 {
	var ptrs []uint32
	for _, entries := range blocks {
		block := img.AllocBlock()
		img.PutDirBlock(block, entries)
		ptrs = append(ptrs, block)
	}
	img.PutInode(ino, Inode{
		Mode:   ModeDir,
		Size:   uint32(len(ptrs)) * BlockSize,
		Links:  2,
		Blocks: ptrs,
	})
	return ptrs
}

// File writes a regular file inode holding `content`.
func (img *Image) File(ino uint32, content []byte) []uint32 {
	var ptrs []uint32
	for i := 0; i < len(content); i += BlockSize {
		end := i + BlockSize
		if end > len(content) {
			end = len(content)
		}
		block := img.AllocBlock()
		img.PutBlock(block, content[i:end])
		ptrs = append(ptrs, block)
	}
	img.PutInode(ino, Inode{
		Mode:   ModeRegular,
		Size:   uint32(len(content)),
		Links:  1,
		Blocks: ptrs,
	})
	return ptrs
}

// DefaultImage lays out:
//
//	/
//	├── lost+found/
//	├── test_directory/
//	│   └── file_in_folder.txt
//	└── hello.txt
func DefaultImage() *Image {
	img := NewImage()
	img.Dir(RootIno, []Dirent{
		{Ino: RootIno, Type: TypeDir, Name: "."},
		{Ino: RootIno, Type: TypeDir, Name: ".."},
		{Ino: LostFoundIno, Type: TypeDir, Name: "lost+found"},
		{Ino: TestDirectoryIno, Type: TypeDir, Name: "test_directory"},
		{Ino: HelloIno, Type: TypeRegular, Name: "hello.txt"},
	})
	img.Dir(LostFoundIno, []Dirent{
		{Ino: LostFoundIno, Type: TypeDir, Name: "."},
		{Ino: RootIno, Type: TypeDir, Name: ".."},
	})
	img.Dir(TestDirectoryIno, []Dirent{
		{Ino: TestDirectoryIno, Type: TypeDir, Name: "."},
		{Ino: RootIno, Type: TypeDir, Name: ".."},
		{Ino: FileInFolderIno, Type: TypeRegular, Name: "file_in_folder.txt"},
	})
	img.File(HelloIno, []byte(HelloContent))
	img.File(FileInFolderIno, []byte(FileInFolderContent))
	return img
}

func DirentSize(name string) int {
	return (8 + len(name) + 3) &^ 3
}

func putU32(b []byte, start int, u uint32) {
	binary.LittleEndian.PutUint32(b[start:start+4], u)
}

func putU16(b []byte, start int, u uint16) {
	binary.LittleEndian.PutUint16(b[start:start+2], u)
}
