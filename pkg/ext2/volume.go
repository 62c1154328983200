package ext2

import (
	"fmt"
	"io"
	"os"
)

// Volume is byte-addressed access to the backing image.
type Volume interface {
	Read(offset uint64, buffer []byte) error
	Write(offset uint64, buffer []byte) error
}

// MemoryVolume holds a whole image in memory. Reads and writes outside of
// the buffer fail with `io.ErrUnexpectedEOF`.
type MemoryVolume struct {
	buf   []byte
	dirty bool
}

func NewMemoryVolume(b []byte) *MemoryVolume {
	return &MemoryVolume{buf: b}
}

func (volume *MemoryVolume) Read(offset uint64, buffer []byte) error {
	if err := volume.checkBounds(offset, buffer); err != nil {
		return fmt.Errorf("reading memory volume: %w", err)
	}
	copy(buffer, volume.buf[offset:])
	return nil
}

func (volume *MemoryVolume) Write(offset uint64, buffer []byte) error {
	if err := volume.checkBounds(offset, buffer); err != nil {
		return fmt.Errorf("writing memory volume: %w", err)
	}
	copy(volume.buf[offset:], buffer)
	volume.dirty = true
	return nil
}

func (volume *MemoryVolume) checkBounds(offset uint64, buffer []byte) error {
	size := uint64(len(volume.buf))
	if offset > size || uint64(len(buffer)) > size-offset {
		return fmt.Errorf(
			"range [%d, %d) exceeds volume size `%d`: %w",
			offset,
			offset+uint64(len(buffer)),
			size,
			io.ErrUnexpectedEOF,
		)
	}
	return nil
}

// Dirty reports whether the volume has been written since it was created or
// last marked clean.
func (volume *MemoryVolume) Dirty() bool { return volume.dirty }

// MarkClean resets the dirty flag, e.g., once the contents are saved.
func (volume *MemoryVolume) MarkClean() { volume.dirty = false }

func (volume *MemoryVolume) Bytes() []byte { return volume.buf }

type FileVolume struct {
	file *os.File
}

func NewFileVolume(file *os.File) FileVolume {
	return FileVolume{file}
}

func (volume FileVolume) Read(offset uint64, buffer []byte) error {
	if _, err := volume.file.ReadAt(buffer, int64(offset)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf(
			"reading file `%s` at offset `%d`: %w",
			volume.file.Name(),
			offset,
			err,
		)
	}

	return nil
}

func (volume FileVolume) Write(offset uint64, buffer []byte) error {
	if _, err := volume.file.WriteAt(buffer, int64(offset)); err != nil {
		return fmt.Errorf(
			"writing file `%s` at offset `%d`: %w",
			volume.file.Name(),
			offset,
			err,
		)
	}

	return nil
}

// ReadOnlyVolume rejects every write with `ReadOnlyErr`.
type ReadOnlyVolume struct {
	Volume
}

func (volume ReadOnlyVolume) Write(offset uint64, buffer []byte) error {
	return fmt.Errorf(
		"writing `%d` bytes at offset `%d`: %w",
		len(buffer),
		offset,
		ReadOnlyErr,
	)
}
