package ext2

import "fmt"

// FileType values match the type tag stored in directory entries.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeRegular
	FileTypeDir
	FileTypeCharDev
	FileTypeBlockDev
	FileTypeFifo
	FileTypeSocket
	FileTypeSymlink
)

func (fileType FileType) String() string {
	switch fileType {
	case FileTypeUnknown:
		return "Unknown"
	case FileTypeRegular:
		return "Regular"
	case FileTypeDir:
		return "Dir"
	case FileTypeCharDev:
		return "CharDev"
	case FileTypeBlockDev:
		return "BlockDev"
	case FileTypeFifo:
		return "Fifo"
	case FileTypeSocket:
		return "Socket"
	case FileTypeSymlink:
		return "Symlink"
	default:
		return fmt.Sprintf("FileType(%d)", uint8(fileType))
	}
}

// Encode returns the file type bits of an inode mode.
func (fileType FileType) Encode() uint16 {
	var tmp uint16
	switch fileType {
	case FileTypeFifo:
		tmp = 1
	case FileTypeCharDev:
		tmp = 2
	case FileTypeDir:
		tmp = 4
	case FileTypeBlockDev:
		tmp = 6
	case FileTypeRegular:
		tmp = 8
	case FileTypeSymlink:
		tmp = 10
	case FileTypeSocket:
		tmp = 12
	}
	return tmp << 12
}

func decodeFileTypeNibble(nibble uint16) (FileType, error) {
	switch nibble {
	case 0:
		return FileTypeUnknown, nil
	case 1:
		return FileTypeFifo, nil
	case 2:
		return FileTypeCharDev, nil
	case 4:
		return FileTypeDir, nil
	case 6:
		return FileTypeBlockDev, nil
	case 8:
		return FileTypeRegular, nil
	case 10:
		return FileTypeSymlink, nil
	case 12:
		return FileTypeSocket, nil
	default:
		return FileTypeUnknown, ErrUnknownFileType{nibble}
	}
}
