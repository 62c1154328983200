package ext2

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

type SuperblockState uint16

type RevLevel uint32

const (
	SuperblockMagic uint16 = 0xef53

	// SuperblockSize is the size allocated for the superblock on disk, not
	// the size of the fields actually in use.
	SuperblockSize   = 1024
	SuperblockOffset = 1024

	FeatureIncompatFiletype   uint32 = 0x0002
	FeatureROCompatSparse     uint32 = 0x0001
	FeatureROCompatLargeFile  uint32 = 0x0002
	SupportedIncompatFeatures        = FeatureIncompatFiletype
	SupportedROCompatFeatures        = FeatureROCompatSparse |
		FeatureROCompatLargeFile

	StateClean SuperblockState = 1
	StateDirty SuperblockState = 2

	RevLevelStatic  RevLevel = 0
	RevLevelDynamic RevLevel = 1

	DefaultFirstIno  uint32 = 11
	DefaultInodeSize uint16 = 128

	// 64KiB blocks need a rec_len encoding for whole-block records that
	// isn't supported; 32KiB is the largest block size accepted
	maxLogBlockSize = 5
)

type Superblock struct {
	InodesCount     uint32          `yaml:"inodesCount"`
	BlocksCount     uint32          `yaml:"blocksCount"`
	FreeBlocksCount uint32          `yaml:"freeBlocksCount"`
	FreeInodesCount uint32          `yaml:"freeInodesCount"`
	FirstDataBlock  uint32          `yaml:"firstDataBlock"`
	LogBlockSize    uint32          `yaml:"logBlockSize"`
	BlocksPerGroup  uint32          `yaml:"blocksPerGroup"`
	InodesPerGroup  uint32          `yaml:"inodesPerGroup"`
	State           SuperblockState `yaml:"state"`
	RevLevel        RevLevel        `yaml:"revLevel"`
	FirstIno        uint32          `yaml:"firstIno"`
	InodeSize       uint16          `yaml:"inodeSize"`
	FeatureCompat   uint32          `yaml:"featureCompat"`
	FeatureIncompat uint32          `yaml:"featureIncompat"`
	FeatureROCompat uint32          `yaml:"featureROCompat"`
	UUID            uuid.UUID       `yaml:"-"`
	VolumeName      string          `yaml:"volumeName"`
}

func (sb *Superblock) BlockSize() uint64 {
	return 1024 << sb.LogBlockSize
}

func (sb *Superblock) GroupCount() uint64 {
	return divCeil(
		uint64(sb.BlocksCount-sb.FirstDataBlock),
		uint64(sb.BlocksPerGroup),
	)
}

func DecodeSuperblock(
	b *[SuperblockSize]byte,
	readOnly bool,
) (Superblock, error) {
	var sb Superblock
	err := sb.Decode(b, readOnly)
	return sb, err
}

func (sb *Superblock) Decode(b *[SuperblockSize]byte, readOnly bool) error {
	p := b[:]
	magic := getU16(p, 56)
	if magic != SuperblockMagic {
		return fmt.Errorf("decoding superblock: %w", ErrBadMagic{magic})
	}

	rev := RevLevel(getU32(p, 76))

	var featureCompat, featureIncompat, featureROCompat uint32
	if rev >= RevLevelDynamic {
		featureCompat = getU32(p, 92)
		featureIncompat = getU32(p, 96)
		featureROCompat = getU32(p, 100)
	}

	if (featureIncompat & ^SupportedIncompatFeatures) != 0 {
		return fmt.Errorf(
			"decoding superblock: %w",
			ErrIncompatibleFeatures{featureIncompat},
		)
	}

	if !readOnly && (featureROCompat & ^SupportedROCompatFeatures) != 0 {
		return fmt.Errorf(
			"decoding superblock: %w",
			ErrIncompatibleFeaturesReadOnly{featureROCompat},
		)
	}

	sb.InodesCount = getU32(p, 0)
	sb.BlocksCount = getU32(p, 4)
	sb.FreeBlocksCount = getU32(p, 12)
	sb.FreeInodesCount = getU32(p, 16)
	sb.FirstDataBlock = getU32(p, 20)
	sb.LogBlockSize = getU32(p, 24)
	sb.BlocksPerGroup = getU32(p, 32)
	sb.InodesPerGroup = getU32(p, 40)
	sb.State = SuperblockState(getU16(p, 58))
	sb.RevLevel = rev
	if rev != RevLevelStatic {
		sb.FirstIno = getU32(p, 84)
		sb.InodeSize = getU16(p, 88)
	} else {
		sb.FirstIno = DefaultFirstIno
		sb.InodeSize = DefaultInodeSize
	}
	sb.FeatureCompat = featureCompat
	sb.FeatureIncompat = featureIncompat
	sb.FeatureROCompat = featureROCompat

	if rev != RevLevelStatic {
		id, err := uuid.FromBytes(p[104:120])
		if err != nil {
			return fmt.Errorf("decoding superblock: uuid: %w", err)
		}
		sb.UUID = id
		sb.VolumeName = string(bytes.TrimRight(p[120:136], "\x00"))
	}

	if err := sb.validate(); err != nil {
		return fmt.Errorf("decoding superblock: %w", err)
	}
	return nil
}

func (sb *Superblock) validate() error {
	switch {
	case sb.BlocksPerGroup == 0:
		return fmt.Errorf("blocks per group is zero: %w", CorruptImageErr)
	case sb.InodesPerGroup == 0:
		return fmt.Errorf("inodes per group is zero: %w", CorruptImageErr)
	case sb.InodeSize < DefaultInodeSize:
		return fmt.Errorf(
			"inode size `%d` is smaller than `%d`: %w",
			sb.InodeSize,
			DefaultInodeSize,
			CorruptImageErr,
		)
	case sb.LogBlockSize > maxLogBlockSize:
		return fmt.Errorf(
			"log block size `%d` is out of range: %w",
			sb.LogBlockSize,
			CorruptImageErr,
		)
	case sb.FirstDataBlock >= sb.BlocksCount:
		return fmt.Errorf(
			"first data block `%d` is past block count `%d`: %w",
			sb.FirstDataBlock,
			sb.BlocksCount,
			CorruptImageErr,
		)
	}
	return nil
}
