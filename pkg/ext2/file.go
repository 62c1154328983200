package ext2

import "fmt"

// fastSymlinkMax is the longest symlink target stored inline in the block
// pointer array.
const fastSymlinkMax = 60

type FileInfo struct {
	Name     string
	Ino      Ino
	FileType FileType
}

// List returns every live entry of the directory `ino`, `.` and `..`
// included.
func (fs *FileSystem) List(ino Ino) ([]FileInfo, error) {
	entries, err := fs.ReadDir(ino)
	if err != nil {
		return nil, fmt.Errorf("listing `%d`: %w", ino, err)
	}

	infos := make([]FileInfo, len(entries))
	for i := range entries {
		fileType, err := fs.entryFileType(ino, &entries[i])
		if err != nil {
			return nil, fmt.Errorf("listing `%d`: %w", ino, err)
		}
		infos[i] = FileInfo{
			Name:     entries[i].Name,
			Ino:      entries[i].Ino,
			FileType: fileType,
		}
	}
	return infos, nil
}

// entryFileType returns the entry's type tag, falling back to the target
// inode for images created without the filetype feature.
func (fs *FileSystem) entryFileType(dir Ino, entry *DirEntry) (FileType, error) {
	if entry.FileType != FileTypeUnknown {
		return entry.FileType, nil
	}
	fs.logger().Warn(
		"directory entry has no file type; reading it from the inode",
		"dir", dir,
		"name", entry.Name,
		"ino", entry.Ino,
	)
	inode, err := fs.ReadInode(entry.Ino)
	if err != nil {
		return FileTypeUnknown, fmt.Errorf(
			"fetching file type for entry `%s`: %w",
			entry.Name,
			err,
		)
	}
	return inode.Mode.FileType, nil
}

// ReadFileBytes returns the contents of the file `ino`, which must fit in
// its direct blocks. Holes read as zeros.
func (fs *FileSystem) ReadFileBytes(ino Ino) ([]byte, error) {
	inode, err := fs.ReadInode(ino)
	if err != nil {
		return nil, fmt.Errorf("reading file `%d`: %w", ino, err)
	}
	if inode.IsDir() {
		return nil, fmt.Errorf("reading file `%d`: %w", ino, IsADirErr)
	}

	if inode.Mode.FileType == FileTypeSymlink &&
		inode.Size < fastSymlinkMax &&
		inode.Size512 == 0 {
		var b [fastSymlinkMax]byte
		for i, block := range inode.Block {
			putU32(b[:], 4*i, block)
		}
		return b[:inode.Size], nil
	}

	blockSize := fs.BlockSize()
	if inode.Size > DirectBlocks*blockSize {
		return nil, fmt.Errorf(
			"reading file `%d` of size `%d`: %w",
			ino,
			inode.Size,
			FileTooLargeErr,
		)
	}

	out := make([]byte, 0, align(inode.Size, blockSize))
	for _, block := range fs.directBlocks(&inode) {
		if block == 0 {
			out = append(out, make([]byte, blockSize)...)
			continue
		}
		data, err := fs.readDataBlock(block)
		if err != nil {
			return nil, fmt.Errorf("reading file `%d`: %w", ino, err)
		}
		out = append(out, data...)
	}
	return out[:inode.Size], nil
}

// MakeDirectory adds an entry `name` of type directory to `parent` that
// points at the existing inode `newIno`. No inode is allocated.
func (fs *FileSystem) MakeDirectory(parent Ino, name string, newIno Ino) error {
	if err := fs.checkAbsent(parent, name); err != nil {
		return fmt.Errorf("making directory `%s` in `%d`: %w", name, parent, err)
	}
	if err := fs.InsertEntry(parent, name, newIno, FileTypeDir); err != nil {
		return fmt.Errorf("making directory `%s` in `%d`: %w", name, parent, err)
	}
	return nil
}

// Link adds an entry `name` to `parent` for the existing inode `target`,
// tagged with the target's type. Link counts are not updated.
func (fs *FileSystem) Link(parent Ino, name string, target Ino) error {
	inode, err := fs.ReadInode(target)
	if err != nil {
		return fmt.Errorf("linking `%s` in `%d`: %w", name, parent, err)
	}
	if err := fs.checkAbsent(parent, name); err != nil {
		return fmt.Errorf("linking `%s` in `%d`: %w", name, parent, err)
	}
	if err := fs.InsertEntry(
		parent,
		name,
		target,
		inode.Mode.FileType,
	); err != nil {
		return fmt.Errorf("linking `%s` in `%d`: %w", name, parent, err)
	}
	return nil
}

func (fs *FileSystem) checkAbsent(dir Ino, name string) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return err
	}
	if _, found := FindEntry(entries, name); found {
		return fmt.Errorf("`%s`: %w", name, EntryExistsErr)
	}
	return nil
}
