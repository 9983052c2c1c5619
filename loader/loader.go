// Package loader turns a parsed format.SoilBinary into a runnable
// interp.VM: allocating memory at the configured size, copying in the
// initial memory image, and wiring the label map through for diagnostics.
package loader

import (
	"fmt"

	"github.com/soilvm/soil/format"
	"github.com/soilvm/soil/interp"
)

// Load constructs a VM from bin, sized to memorySize bytes, with syscalls
// dispatched through table. memorySize must be at least as large as
// bin.InitialMemory; it is the host's configured memory budget, not
// something the container format dictates.
func Load(bin *format.SoilBinary, memorySize uint64, table *interp.Table) (*interp.VM, error) {
	if len(bin.InitialMemory) > int(memorySize) {
		return nil, fmt.Errorf("loader: initial memory image (%d bytes) exceeds configured memory size (%d bytes)", len(bin.InitialMemory), memorySize)
	}

	mem := interp.NewMemory(memorySize)
	if err := mem.LoadImage(bin.InitialMemory); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	vm := interp.NewVM(bin.ByteCode, mem, table)
	vm.Labels = bin.LabelMap()
	return vm, nil
}
