package constants

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLinePadSize is the padding unit used to keep hot atomics on
// separate cache lines.
const CacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})
