package ext2

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

type GroupID uint32

type FileSystem struct {
	Device     BlockDevice
	Superblock Superblock
	Groups     []GroupDesc
	Logger     *slog.Logger
}

// Load decodes the superblock and group descriptor table of `volume`.
// Writable loads reject read-only-compatible features that aren't
// supported.
func Load(volume Volume, readOnly bool) (*FileSystem, error) {
	var superblockBytes [SuperblockSize]byte
	if err := volume.Read(SuperblockOffset, superblockBytes[:]); err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", shortRead(err))
	}

	sb, err := DecodeSuperblock(&superblockBytes, readOnly)
	if err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}

	fs := FileSystem{
		Device:     BlockDevice{Volume: volume, BlockSize: sb.BlockSize()},
		Superblock: sb,
		Logger:     slog.Default(),
	}

	groups, err := fs.readGroupDescs(
		uint64(sb.FirstDataBlock)+1,
		sb.GroupCount(),
	)
	if err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}
	fs.Groups = groups

	return &fs, nil
}

// readGroupDescs reads the descriptor table one block at a time. A table
// that runs past the image fails with a short read.
func (fs *FileSystem) readGroupDescs(
	tableBlock uint64,
	groupCount uint64,
) ([]GroupDesc, error) {
	perBlock := fs.Device.BlockSize / GroupDescSize
	groups := make([]GroupDesc, 0, min(groupCount, perBlock))
	for block := tableBlock; uint64(len(groups)) < groupCount; block++ {
		if block >= uint64(fs.Superblock.BlocksCount) {
			return nil, fmt.Errorf(
				"reading group descriptor table at block `%d`: %w",
				tableBlock,
				ErrBlockOutOfRange{block},
			)
		}
		b, err := fs.Device.ReadBlock(block)
		if err != nil {
			return nil, fmt.Errorf(
				"reading group descriptor table at block `%d`: %w",
				tableBlock,
				shortRead(err),
			)
		}
		for i := uint64(0); i < perBlock; i++ {
			if uint64(len(groups)) == groupCount {
				break
			}
			groups = append(groups, DecodeGroupDesc(b[i*GroupDescSize:]))
		}
	}
	return groups, nil
}

func align(x, to uint64) uint64 {
	return divCeil(x, to) * to
}

// shortRead marks a read past the end of the image as corruption; the
// superblock promised data that isn't there.
func shortRead(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", CorruptImageErr, err)
	}
	return err
}

func (fs *FileSystem) BlockSize() uint64 {
	return fs.Device.BlockSize
}

func (fs *FileSystem) GetInoGroup(ino Ino) (GroupID, uint64) {
	groupSize := Ino(fs.Superblock.InodesPerGroup)
	return GroupID((ino - 1) / groupSize), uint64((ino - 1) % groupSize)
}

// LocateInode returns the byte offset and size of the inode's slot.
func (fs *FileSystem) LocateInode(ino Ino) (uint64, uint64, error) {
	if ino == 0 || uint32(ino) > fs.Superblock.InodesCount {
		return 0, 0, ErrInvalidIno{ino, fs.Superblock.InodesCount}
	}
	groupID, localID := fs.GetInoGroup(ino)
	if int(groupID) >= len(fs.Groups) {
		return 0, 0, fmt.Errorf(
			"inode `%d` is in group `%d` but there are only `%d` groups: %w",
			ino,
			groupID,
			len(fs.Groups),
			CorruptImageErr,
		)
	}
	inodeSize := uint64(fs.Superblock.InodeSize)
	inodeTable := uint64(fs.Groups[groupID].InodeTable)
	return inodeTable*fs.BlockSize() + localID*inodeSize, inodeSize, nil
}

func (fs *FileSystem) ReadInode(ino Ino) (Inode, error) {
	offset, _, err := fs.LocateInode(ino)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	var inodeBuf [InodeBufferSize]byte
	if err := fs.Device.Volume.Read(offset, inodeBuf[:]); err != nil {
		return Inode{}, fmt.Errorf(
			"reading inode `%d`: %w",
			ino,
			shortRead(err),
		)
	}
	inode, err := DecodeInode(ino, fs.Superblock.RevLevel, &inodeBuf)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	return inode, nil
}

// WriteInode re-encodes `inode` over its existing slot so that bytes the
// Inode doesn't model survive.
func (fs *FileSystem) WriteInode(inode *Inode) error {
	offset, _, err := fs.LocateInode(inode.Ino)
	if err != nil {
		return fmt.Errorf("writing inode `%d`: %w", inode.Ino, err)
	}
	var inodeBuf [InodeBufferSize]byte
	if err := fs.Device.Volume.Read(offset, inodeBuf[:]); err != nil {
		return fmt.Errorf("writing inode `%d`: %w", inode.Ino, shortRead(err))
	}
	if err := inode.Encode(fs.Superblock.RevLevel, &inodeBuf); err != nil {
		return fmt.Errorf("writing inode `%d`: %w", inode.Ino, err)
	}
	if err := fs.Device.Volume.Write(offset, inodeBuf[:]); err != nil {
		return fmt.Errorf("writing inode `%d`: %w", inode.Ino, err)
	}
	return nil
}

// directBlocks returns the direct block pointers that fall within the
// inode's logical size. Zero pointers are holes.
func (fs *FileSystem) directBlocks(inode *Inode) []uint32 {
	n := divCeil(inode.Size, fs.BlockSize())
	if n > DirectBlocks {
		n = DirectBlocks
	}
	return inode.Block[:n]
}

func (fs *FileSystem) readDataBlock(block uint32) ([]byte, error) {
	if uint64(block) >= uint64(fs.Superblock.BlocksCount) {
		return nil, fmt.Errorf(
			"reading data block: %w",
			ErrBlockOutOfRange{uint64(block)},
		)
	}
	b, err := fs.Device.ReadBlock(uint64(block))
	if err != nil {
		return nil, fmt.Errorf("reading data block: %w", shortRead(err))
	}
	return b, nil
}

type ErrBlockOutOfRange struct {
	Block uint64
}

func (err ErrBlockOutOfRange) Error() string {
	return fmt.Sprintf("block `%d` is out of range", err.Block)
}

func (err ErrBlockOutOfRange) Unwrap() error { return CorruptImageErr }

func (fs *FileSystem) logger() *slog.Logger {
	if fs.Logger != nil {
		return fs.Logger
	}
	return slog.Default()
}
