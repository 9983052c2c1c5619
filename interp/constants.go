package interp

// Register file layout. sp and st are conventional names for the stack
// pointer and the status/compare-result register; a..f are general purpose.
const (
	RegSP = 0
	RegST = 1
	RegA  = 2
	RegB  = 3
	RegC  = 4
	RegD  = 5
	RegE  = 6
	RegF  = 7

	NumRegisters = 8
)

var registerNames = [NumRegisters]string{"sp", "st", "a", "b", "c", "d", "e", "f"}

// RegisterName returns the conventional name of a register index, or "?" if
// the index is out of range.
func RegisterName(reg int) string {
	if reg < 0 || reg >= NumRegisters {
		return "?"
	}
	return registerNames[reg]
}

// Default resource limits.
const (
	DefaultMemorySize     = 1 << 20 // 1 MiB
	DefaultLogCapacity    = 1000
	WordSize              = 8
	Address64BitMax       = ^uint64(0)
	MaxStringLength       = 1 << 20 // guard against runaway null-terminated reads
	MaxFileDescriptors    = 4096
	DefaultFDTableSize    = 3 // stdin, stdout, stderr
)
