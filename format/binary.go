// Package format implements the Soil container parser: a fixed magic
// header followed by self-describing sections and the label table within
// them.
package format

// SectionType tags a top-level section of a Soil container.
type SectionType byte

const (
	SectionByteCode     SectionType = 0
	SectionInitialMemory SectionType = 1
	SectionName          SectionType = 2
	SectionLabels        SectionType = 3
	SectionDescription   SectionType = 4
)

var magic = [4]byte{'s', 'o', 'i', 'l'}

// Label names a byte-code offset for diagnostics; it carries no execution
// semantics.
type Label struct {
	Offset uint64
	Name   string
}

// SoilBinary is the immutable result of parsing a container: mandatory
// byte-code plus whichever optional sections were present. Name,
// Description, and InitialMemory are nil/empty when their section was
// absent; Labels is nil when no label section was present.
type SoilBinary struct {
	Name             string
	HasName          bool
	Description      string
	HasDescription   bool
	InitialMemory    []byte
	HasInitialMemory bool
	Labels           []Label
	ByteCode         []byte
}

// LabelMap returns the label set as an offset->name lookup, for host
// diagnostics such as backtrace symbolication.
func (b *SoilBinary) LabelMap() map[uint64]string {
	if len(b.Labels) == 0 {
		return nil
	}
	m := make(map[uint64]string, len(b.Labels))
	for _, l := range b.Labels {
		m[l.Offset] = l.Name
	}
	return m
}
