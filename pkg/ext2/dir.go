package ext2

import "fmt"

// DirBlock is one data block of a directory with every record it holds,
// unused ones included.
type DirBlock struct {
	// Index is the position of the block among the inode's block pointers.
	Index   int
	Block   uint32
	Data    []byte
	Entries []DirEntry
}

// DecodeBlocks reads and decodes each non-hole direct block of the
// directory `inode`. Each block is parsed on its own from offset 0; records
// never span blocks.
func (fs *FileSystem) DecodeBlocks(inode *Inode) ([]DirBlock, error) {
	if !inode.IsDir() {
		return nil, fmt.Errorf(
			"decoding directory `%d`: %w",
			inode.Ino,
			NotADirErr,
		)
	}

	var blocks []DirBlock
	for i, block := range fs.directBlocks(inode) {
		if block == 0 {
			continue
		}
		data, err := fs.readDataBlock(block)
		if err != nil {
			return nil, fmt.Errorf("decoding directory `%d`: %w", inode.Ino, err)
		}
		entries, err := decodeDirBlock(data, uint64(block))
		if err != nil {
			return nil, fmt.Errorf("decoding directory `%d`: %w", inode.Ino, err)
		}
		blocks = append(blocks, DirBlock{
			Index:   i,
			Block:   block,
			Data:    data,
			Entries: entries,
		})
	}
	return blocks, nil
}

func decodeDirBlock(b []byte, block uint64) ([]DirEntry, error) {
	var entries []DirEntry
	for offset := uint64(0); offset < uint64(len(b)); {
		entry, err := DecodeDirEntry(b, block, offset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		offset += uint64(entry.RecLen)
	}
	return entries, nil
}

// DecodeEntries returns the live entries of the directory `inode` in on-disk
// order.
func (fs *FileSystem) DecodeEntries(inode *Inode) ([]DirEntry, error) {
	blocks, err := fs.DecodeBlocks(inode)
	if err != nil {
		return nil, err
	}
	var entries []DirEntry
	for _, block := range blocks {
		for _, entry := range block.Entries {
			if entry.Ino != 0 {
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

func (fs *FileSystem) ReadDir(ino Ino) ([]DirEntry, error) {
	inode, err := fs.ReadInode(ino)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	entries, err := fs.DecodeEntries(&inode)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return entries, nil
}

// FindEntry returns the first entry named exactly `name`.
func FindEntry(entries []DirEntry, name string) (DirEntry, bool) {
	for _, entry := range entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return DirEntry{}, false
}
