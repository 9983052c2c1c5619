package interp

import "fmt"

// Memory is the VM's single flat, fixed-size linear byte buffer. Unlike the
// segmented memory of a full CPU emulator, Soil guests see one contiguous
// address space: no lifetime or aliasing cycles, just bounds checks.
type Memory struct {
	data         []byte
	AccessCount  uint64
	ReadCount    uint64
	WriteCount   uint64
}

// NewMemory allocates memory of the given size, zero-filled.
func NewMemory(size uint64) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the configured memory size in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

// LoadImage copies the initial memory image into the low addresses of
// memory. The remainder of memory is already zero from allocation.
func (m *Memory) LoadImage(image []byte) error {
	if uint64(len(image)) > m.Size() {
		return fmt.Errorf("initial memory image (%d bytes) exceeds memory size (%d bytes)", len(image), m.Size())
	}
	copy(m.data, image)
	return nil
}

// Reset zeroes all of memory and clears access counters.
func (m *Memory) Reset() {
	for i := range m.data {
		m.data[i] = 0
	}
	m.AccessCount = 0
	m.ReadCount = 0
	m.WriteCount = 0
}

// ReadByte reads a single byte at addr.
func (m *Memory) ReadByte(addr Word) (Byte, error) {
	a := uint64(addr)
	if a >= m.Size() {
		return 0, fmt.Errorf("memory read out of bounds at 0x%016x (size %d)", a, m.Size())
	}
	m.AccessCount++
	m.ReadCount++
	return m.data[a], nil
}

// WriteByte writes a single byte at addr.
func (m *Memory) WriteByte(addr Word, value Byte) error {
	a := uint64(addr)
	if a >= m.Size() {
		return fmt.Errorf("memory write out of bounds at 0x%016x (size %d)", a, m.Size())
	}
	m.AccessCount++
	m.WriteCount++
	m.data[a] = value
	return nil
}

// ReadWord reads a little-endian 64-bit word at addr. addr need not be
// aligned; Soil imposes no alignment requirement.
func (m *Memory) ReadWord(addr Word) (Word, error) {
	a := uint64(addr)
	if a+WordSize > m.Size() || a+WordSize < a {
		return 0, fmt.Errorf("memory word read out of bounds at 0x%016x (size %d)", a, m.Size())
	}
	m.AccessCount++
	m.ReadCount++
	var v uint64
	for i := 0; i < WordSize; i++ {
		v |= uint64(m.data[a+uint64(i)]) << (8 * i)
	}
	return Word(v), nil
}

// WriteWord writes a little-endian 64-bit word at addr.
func (m *Memory) WriteWord(addr Word, value Word) error {
	a := uint64(addr)
	if a+WordSize > m.Size() || a+WordSize < a {
		return fmt.Errorf("memory word write out of bounds at 0x%016x (size %d)", a, m.Size())
	}
	m.AccessCount++
	m.WriteCount++
	v := uint64(value)
	for i := 0; i < WordSize; i++ {
		m.data[a+uint64(i)] = byte(v >> (8 * i))
	}
	return nil
}

// GetBytes retrieves a copy of length bytes starting at addr, bounds-checked.
func (m *Memory) GetBytes(addr Word, length uint64) ([]byte, error) {
	a := uint64(addr)
	if a+length > m.Size() || a+length < a {
		return nil, fmt.Errorf("memory range read out of bounds at 0x%016x len %d (size %d)", a, length, m.Size())
	}
	out := make([]byte, length)
	copy(out, m.data[a:a+length])
	m.AccessCount++
	m.ReadCount++
	return out, nil
}

// SetBytes writes data starting at addr, bounds-checked.
func (m *Memory) SetBytes(addr Word, data []byte) error {
	a := uint64(addr)
	length := uint64(len(data))
	if a+length > m.Size() || a+length < a {
		return fmt.Errorf("memory range write out of bounds at 0x%016x len %d (size %d)", a, length, m.Size())
	}
	copy(m.data[a:a+length], data)
	m.AccessCount++
	m.WriteCount++
	return nil
}

// ReadCString reads a NUL-terminated byte string starting at addr, guarding
// against address wraparound and unbounded length.
func (m *Memory) ReadCString(addr Word) (string, error) {
	var out []byte
	a := addr
	for {
		b, err := m.ReadByte(a)
		if err != nil {
			return "", fmt.Errorf("failed to read string at 0x%016x: %w", uint64(addr), err)
		}
		if b == 0 {
			break
		}
		out = append(out, b)

		if uint64(a) == Address64BitMax {
			return "", fmt.Errorf("address wraparound while reading string at 0x%016x", uint64(addr))
		}
		a++

		if len(out) > MaxStringLength {
			return "", fmt.Errorf("string at 0x%016x exceeds maximum length %d", uint64(addr), MaxStringLength)
		}
	}
	return string(out), nil
}
