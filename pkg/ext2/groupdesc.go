package ext2

// GroupDescSize is the on-disk size of a GroupDesc in bytes.
const GroupDescSize = 32

type GroupDesc struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
}

func DecodeGroupDesc(b []byte) GroupDesc {
	return GroupDesc{
		BlockBitmap:     getU32(b, 0),
		InodeBitmap:     getU32(b, 4),
		InodeTable:      getU32(b, 8),
		FreeBlocksCount: getU16(b, 12),
		FreeInodesCount: getU16(b, 14),
		UsedDirsCount:   getU16(b, 16),
	}
}
