package loader_test

import (
	"testing"

	"github.com/soilvm/soil/format"
	"github.com/soilvm/soil/interp"
	"github.com/soilvm/soil/loader"
)

func TestLoadInitializesRegistersAndMemory(t *testing.T) {
	bin := &format.SoilBinary{
		ByteCode:      []byte{0x00},
		InitialMemory: []byte{1, 2, 3},
	}

	vm, err := loader.Load(bin, 1024, interp.NewTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vm.Reg(interp.RegSP) != interp.Word(1024) {
		t.Fatalf("expected sp = memory size, got %d", vm.Reg(interp.RegSP))
	}
	if vm.IP != 0 {
		t.Fatalf("expected ip = 0, got %d", vm.IP)
	}
	if vm.Status.Kind != interp.StatusRunning {
		t.Fatalf("expected running status, got %v", vm.Status)
	}

	b, err := vm.Memory.GetBytes(0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b[0] != 1 || b[1] != 2 || b[2] != 3 {
		t.Fatalf("initial memory image not copied correctly: %v", b)
	}
}

func TestLoadRejectsOversizedInitialMemory(t *testing.T) {
	bin := &format.SoilBinary{
		ByteCode:      []byte{0x00},
		InitialMemory: make([]byte, 100),
	}
	if _, err := loader.Load(bin, 10, interp.NewTable()); err == nil {
		t.Fatal("expected an error when the initial image exceeds memory size")
	}
}

func TestLoadCarriesLabelMap(t *testing.T) {
	bin := &format.SoilBinary{
		ByteCode: []byte{0x00, 0x00},
		Labels:   []format.Label{{Offset: 1, Name: "loop"}},
	}
	vm, err := loader.Load(bin, 64, interp.NewTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vm.Labels[1] != "loop" {
		t.Fatalf("expected label map to carry %q at offset 1", "loop")
	}
}
