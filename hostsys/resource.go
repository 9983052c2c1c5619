package hostsys

import (
	"fmt"
	"os"

	"github.com/soilvm/soil/interp"
)

// create allocates a new host-side file resource inside the filesystem
// jail, sized to a's byte count. "create" takes no path, so each resource
// is auto-named by its table slot (resource-N.dat). The returned handle is
// the fd write_to_file expects.
func (h *Host) create(vm *interp.VM) (interp.Word, interp.Word, error) {
	size := vm.Reg(interp.RegA).Int64()
	if size < 0 {
		return 0, 0, fmt.Errorf("hostsys: create: negative size %d", size)
	}

	name := fmt.Sprintf("resource-%d.dat", len(h.files))
	path, err := validatePath(h.root, name)
	if err != nil {
		return 0, 0, fmt.Errorf("hostsys: create: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644) // #nosec G304 -- path validated above
	if err != nil {
		return 0, 0, fmt.Errorf("hostsys: create: %w", err)
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return 0, 0, fmt.Errorf("hostsys: create: %w", err)
		}
	}

	fd := len(h.files)
	h.files = append(h.files, f)
	return interp.WordFromInt64(int64(fd)), 0, nil
}

func (h *Host) writeToFile(vm *interp.VM) (interp.Word, interp.Word, error) {
	fd := int(vm.Reg(interp.RegA).Int64())
	if fd < 0 || fd >= len(h.files) || h.files[fd] == nil {
		return 0, 0, fmt.Errorf("hostsys: write_to_file: bad handle %d", fd)
	}

	addr := vm.Reg(interp.RegB)
	length := uint64(vm.Reg(interp.RegC))
	data, err := vm.Memory.GetBytes(addr, length)
	if err != nil {
		return 0, 0, fmt.Errorf("hostsys: write_to_file: %w", err)
	}

	if _, err := h.files[fd].Write(data); err != nil {
		return 0, 0, fmt.Errorf("hostsys: write_to_file: %w", err)
	}
	return 0, 0, nil
}

// Close releases every open file resource. Callers should invoke it once a
// VM session using this Host is done running.
func (h *Host) Close() error {
	var first error
	for _, f := range h.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
