package ssd1963

import "unsafe"

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// nthByte returns the nth least significant byte of v, or 0 when n is not
// smaller than the size of v. Multi-byte parameters are sent most
// significant byte first, so callers count n down.
func nthByte[T unsigned](n uint8, v T) byte {
	if uintptr(n) >= unsafe.Sizeof(v) {
		return 0
	}
	return byte(v >> (8 * uint(n)))
}
