package ext2

import "encoding/binary"

// Little endian throughout: the first byte is least significant.

func putU32(b []byte, start int, u uint32) {
	binary.LittleEndian.PutUint32(b[start:start+4], u)
}

func getU32(b []byte, start int) uint32 {
	return binary.LittleEndian.Uint32(b[start : start+4])
}

func putU16(b []byte, start int, u uint16) {
	binary.LittleEndian.PutUint16(b[start:start+2], u)
}

func getU16(b []byte, start int) uint16 {
	return binary.LittleEndian.Uint16(b[start : start+2])
}

func putU8(b []byte, start int, u uint8) {
	b[start] = u
}

func getU8(b []byte, start int) uint8 {
	return b[start]
}

type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func divCeil[T unsigned](a, b T) T {
	if a%b > 0 {
		return a/b + 1
	}
	return a / b
}

func align4[T unsigned](x T) T {
	return (x + 3) &^ 3
}
