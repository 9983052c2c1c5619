package format

import (
	"bytes"
	"encoding/binary"
)

// Write re-emits a SoilBinary as a container: magic followed by its
// sections, byte-code first. Re-parsing the result with Parse yields an
// equal value (a parse round-trip); section order is not
// semantically significant, but a fixed order keeps output deterministic.
func Write(b *SoilBinary) []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])

	writeSection(&buf, SectionByteCode, b.ByteCode)
	if b.HasInitialMemory || len(b.InitialMemory) > 0 {
		writeSection(&buf, SectionInitialMemory, b.InitialMemory)
	}
	if b.HasName {
		writeSection(&buf, SectionName, []byte(b.Name))
	}
	if b.HasDescription {
		writeSection(&buf, SectionDescription, []byte(b.Description))
	}
	if len(b.Labels) > 0 {
		writeSection(&buf, SectionLabels, encodeLabels(b.Labels))
	}

	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, typ SectionType, content []byte) {
	buf.WriteByte(byte(typ))
	writeU64(buf, uint64(len(content)))
	buf.Write(content)
}

func encodeLabels(labels []Label) []byte {
	var buf bytes.Buffer
	writeU64(&buf, uint64(len(labels)))
	for _, l := range labels {
		writeU64(&buf, l.Offset)
		writeU64(&buf, uint64(len(l.Name)))
		buf.WriteString(l.Name)
	}
	return buf.Bytes()
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}
