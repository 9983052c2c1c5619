package format

import (
	"encoding/binary"
	"fmt"
)

// Parse decodes a Soil container from data, returning the assembled
// SoilBinary or a descriptive error. It never mutates data.
func Parse(data []byte) (*SoilBinary, error) {
	r := &reader{data: data}

	if err := r.expectMagic(); err != nil {
		return nil, err
	}

	var bin SoilBinary
	seen := make(map[SectionType]bool)
	haveByteCode := false

	for !r.atEnd() {
		typ, content, err := r.readSection()
		if err != nil {
			return nil, err
		}

		if seen[typ] {
			return nil, fmt.Errorf("soil: duplicate section of type %d", typ)
		}
		seen[typ] = true

		switch typ {
		case SectionByteCode:
			bin.ByteCode = content
			haveByteCode = true
		case SectionInitialMemory:
			bin.InitialMemory = content
			bin.HasInitialMemory = true
		case SectionName:
			bin.Name = string(content)
			bin.HasName = true
		case SectionDescription:
			bin.Description = string(content)
			bin.HasDescription = true
		case SectionLabels:
			labels, err := parseLabels(content)
			if err != nil {
				return nil, err
			}
			bin.Labels = labels
		default:
			return nil, fmt.Errorf("soil: unknown section type %d", typ)
		}
	}

	if !haveByteCode {
		return nil, fmt.Errorf("soil: missing byte-code section")
	}
	if len(bin.ByteCode) == 0 {
		return nil, fmt.Errorf("soil: byte-code section is empty")
	}

	for _, l := range bin.Labels {
		if l.Offset >= uint64(len(bin.ByteCode)) {
			return nil, fmt.Errorf("soil: label %q offset 0x%x lies outside byte-code (%d bytes)", l.Name, l.Offset, len(bin.ByteCode))
		}
	}

	return &bin, nil
}

func parseLabels(content []byte) ([]Label, error) {
	r := &reader{data: content}

	count, err := r.readU64()
	if err != nil {
		return nil, fmt.Errorf("soil: truncated label table count: %w", err)
	}

	labels := make([]Label, 0, count)
	seenOffsets := make(map[uint64]bool, count)

	for i := uint64(0); i < count; i++ {
		offset, err := r.readU64()
		if err != nil {
			return nil, fmt.Errorf("soil: truncated label entry %d: %w", i, err)
		}
		length, err := r.readU64()
		if err != nil {
			return nil, fmt.Errorf("soil: truncated label entry %d: %w", i, err)
		}
		name, err := r.readN(length)
		if err != nil {
			return nil, fmt.Errorf("soil: truncated label name for entry %d: %w", i, err)
		}
		if seenOffsets[offset] {
			return nil, fmt.Errorf("soil: duplicate label offset 0x%x", offset)
		}
		seenOffsets[offset] = true
		labels = append(labels, Label{Offset: offset, Name: string(name)})
	}

	return labels, nil
}

// reader is a cursor over a byte slice shared by the top-level section loop
// and the label-table sub-parser.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) atEnd() bool {
	return r.pos >= len(r.data)
}

func (r *reader) expectMagic() error {
	if len(r.data) < len(magic) {
		return fmt.Errorf("soil: truncated magic header")
	}
	for i, b := range magic {
		if r.data[i] != b {
			return fmt.Errorf("soil: bad magic header %q", r.data[:len(magic)])
		}
	}
	r.pos = len(magic)
	return nil
}

func (r *reader) readSection() (SectionType, []byte, error) {
	if r.pos >= len(r.data) {
		return 0, nil, fmt.Errorf("soil: truncated section header")
	}
	typ := SectionType(r.data[r.pos])
	r.pos++

	length, err := r.readU64()
	if err != nil {
		return 0, nil, fmt.Errorf("soil: truncated section length for type %d: %w", typ, err)
	}

	content, err := r.readN(length)
	if err != nil {
		return 0, nil, fmt.Errorf("soil: truncated section body for type %d: %w", typ, err)
	}
	return typ, content, nil
}

func (r *reader) readU64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("expected 8 bytes, have %d", len(r.data)-r.pos)
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) readN(n uint64) ([]byte, error) {
	if n > uint64(len(r.data)-r.pos) {
		return nil, fmt.Errorf("expected %d bytes, have %d", n, len(r.data)-r.pos)
	}
	out := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}
