package ext2

import "fmt"

// BlockDevice addresses a Volume in whole blocks.
type BlockDevice struct {
	Volume    Volume
	BlockSize uint64
}

func (dev *BlockDevice) ReadBlock(block uint64) ([]byte, error) {
	b := make([]byte, dev.BlockSize)
	if err := dev.Volume.Read(block*dev.BlockSize, b); err != nil {
		return nil, fmt.Errorf("reading block `%d`: %w", block, err)
	}
	return b, nil
}

func (dev *BlockDevice) WriteBlock(block uint64, b []byte) error {
	if uint64(len(b)) != dev.BlockSize {
		panic(fmt.Sprintf(
			"writing block `%d`: buffer size `%d` doesn't match block size "+
				"`%d`",
			block,
			len(b),
			dev.BlockSize,
		))
	}
	if err := dev.Volume.Write(block*dev.BlockSize, b); err != nil {
		return fmt.Errorf("writing block `%d`: %w", block, err)
	}
	return nil
}
