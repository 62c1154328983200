package ext2

import (
	"fmt"
	"strings"
)

// Walk follows `path` from the directory `start`. A leading slash starts
// the walk at the root instead. Empty segments are ignored and `.`/`..` are
// looked up like any other name.
//
// When a segment is missing, or an intermediate segment isn't a directory,
// Walk returns `start` and `false` without an error. Errors are reserved for
// images that can't be decoded.
func (fs *FileSystem) Walk(start Ino, path string) (Ino, bool, error) {
	current := start
	if strings.HasPrefix(path, "/") {
		current = RootIno
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}

		inode, err := fs.ReadInode(current)
		if err != nil {
			return start, false, fmt.Errorf(
				"resolving `%s` from `%d`: %w",
				path,
				start,
				err,
			)
		}
		if !inode.IsDir() {
			return start, false, nil
		}

		entries, err := fs.DecodeEntries(&inode)
		if err != nil {
			return start, false, fmt.Errorf(
				"resolving `%s` from `%d`: %w",
				path,
				start,
				err,
			)
		}

		entry, found := FindEntry(entries, segment)
		if !found {
			return start, false, nil
		}
		current = entry.Ino
	}

	return current, true, nil
}

// Resolve is Walk without the found flag: a path that can't be followed
// resolves to `start`.
func (fs *FileSystem) Resolve(start Ino, path string) (Ino, error) {
	ino, _, err := fs.Walk(start, path)
	return ino, err
}
