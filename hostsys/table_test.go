package hostsys

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/soilvm/soil/interp"
)

func newTestHost(t *testing.T) (*Host, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	h := &Host{
		root:    t.TempDir(),
		uiWidth: 1, uiHeight: 1,
		stdout: &out,
		stderr: &errOut,
		stdin:  bytes.NewReader(nil),
		rng:    rand.New(rand.NewSource(1)),
	}
	return h, &out, &errOut
}

func newTestVM(table *interp.Table) *interp.VM {
	return interp.NewVM(nil, interp.NewMemory(4096), table)
}

func TestExitSetsVMStatus(t *testing.T) {
	h, _, _ := newTestHost(t)
	vm := newTestVM(h.Table())
	vm.SetReg(interp.RegA, interp.WordFromInt64(9))

	if err := vm.Syscalls.Dispatch(SyscallExit, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vm.Status.Kind != interp.StatusExited || vm.Status.ExitCode != 9 {
		t.Fatalf("expected exited(9), got %v", vm.Status)
	}
}

func TestPrintWritesMemoryBytesToStdout(t *testing.T) {
	h, out, _ := newTestHost(t)
	vm := newTestVM(h.Table())
	vm.Memory.SetBytes(0, []byte("hi")) //nolint:errcheck
	vm.SetReg(interp.RegA, 0)
	vm.SetReg(interp.RegB, interp.WordFromInt64(2))

	if err := vm.Syscalls.Dispatch(SyscallPrint, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "hi" {
		t.Fatalf("expected %q, got %q", "hi", out.String())
	}
}

func TestDebugPrintReadsNULTerminatedString(t *testing.T) {
	h, _, errOut := newTestHost(t)
	vm := newTestVM(h.Table())
	vm.Memory.SetBytes(0, []byte("oops\x00")) //nolint:errcheck
	vm.SetReg(interp.RegA, 0)

	if err := vm.Syscalls.Dispatch(SyscallDebugPrint, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if errOut.String() != "oops\n" {
		t.Fatalf("expected %q, got %q", "oops\n", errOut.String())
	}
}

func TestCreateAndWriteToFileStaysInsideJail(t *testing.T) {
	h, _, _ := newTestHost(t)
	vm := newTestVM(h.Table())
	vm.SetReg(interp.RegA, interp.WordFromInt64(0))

	if err := vm.Syscalls.Dispatch(SyscallCreate, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fd := vm.Reg(interp.RegA)

	vm.Memory.SetBytes(0, []byte("payload")) //nolint:errcheck
	vm.SetReg(interp.RegA, fd)
	vm.SetReg(interp.RegB, 0)
	vm.SetReg(interp.RegC, interp.WordFromInt64(7))
	if err := vm.Syscalls.Dispatch(SyscallWriteToFile, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.Close() //nolint:errcheck

	entries, err := os.ReadDir(h.root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one resource file, got %d", len(entries))
	}
	contents, err := os.ReadFile(filepath.Join(h.root, entries[0].Name()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(contents) != "payload" {
		t.Fatalf("expected %q, got %q", "payload", contents)
	}
}

func TestUIDimensionsAndRenderRoundTrip(t *testing.T) {
	h, _, _ := newTestHost(t)
	vm := newTestVM(h.Table())

	if err := vm.Syscalls.Dispatch(SyscallUIDimensions, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vm.Reg(interp.RegA) != 1 || vm.Reg(interp.RegB) != 1 {
		t.Fatalf("expected default 1x1 dimensions, got %d,%d", vm.Reg(interp.RegA), vm.Reg(interp.RegB))
	}

	vm.Memory.SetBytes(0, []byte{10, 20, 30}) //nolint:errcheck
	vm.SetReg(interp.RegA, 0)
	vm.SetReg(interp.RegB, interp.WordFromInt64(1))
	vm.SetReg(interp.RegC, interp.WordFromInt64(1))
	if err := vm.Syscalls.Dispatch(SyscallUIRender, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame, w, hh := h.LastFrame()
	if w != 1 || hh != 1 || len(frame) != 3 {
		t.Fatalf("unexpected frame %v %dx%d", frame, w, hh)
	}
}

func TestRandomFillsRequestedLength(t *testing.T) {
	h, _, _ := newTestHost(t)
	vm := newTestVM(h.Table())
	vm.SetReg(interp.RegA, 0)
	vm.SetReg(interp.RegB, interp.WordFromInt64(16))

	if err := vm.Syscalls.Dispatch(SyscallRandom, vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := vm.Memory.GetBytes(0, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 16 {
		t.Fatalf("expected 16 random bytes, got %d", len(b))
	}
}
