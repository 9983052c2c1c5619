package debugger_test

import (
	"testing"

	"github.com/soilvm/soil/debugger"
	"github.com/soilvm/soil/interp"
)

func wordBytes(w interp.Word) []byte {
	v := uint64(w)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func exitTable() *interp.Table {
	t := interp.NewTable()
	t.Register(0x00, interp.ReturnVoid, func(vm *interp.VM) (interp.Word, interp.Word, error) {
		vm.Exit(vm.Reg(interp.RegA).Int64())
		return 0, 0, nil
	})
	return t
}

func TestBreakpointStopsContinue(t *testing.T) {
	var code []byte
	code = append(code, byte(interp.OpNop))
	bpAddr := uint64(len(code))
	code = append(code, byte(interp.OpMoveI), byte(interp.RegA))
	code = append(code, wordBytes(interp.WordFromInt64(1))...)
	code = append(code, byte(interp.OpSyscall), 0x00)

	vm := interp.NewVM(code, interp.NewMemory(1024), exitTable())
	dbg := debugger.New(vm, nil)
	dbg.Breakpoints.Add(bpAddr, false)

	bp, watches, err := dbg.Continue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp == nil {
		t.Fatal("expected a breakpoint hit")
	}
	if len(watches) != 0 {
		t.Fatalf("expected no watchpoints to fire, got %d", len(watches))
	}
	if vm.IP != bpAddr {
		t.Fatalf("expected ip to stop at breakpoint address %d, got %d", bpAddr, vm.IP)
	}
	if vm.Status.Kind != interp.StatusRunning {
		t.Fatalf("expected vm still running at breakpoint, got %v", vm.Status)
	}
}

func TestStepOverSkipsCalledFunction(t *testing.T) {
	var code []byte
	callPos := len(code)
	code = append(code, byte(interp.OpCall), 0, 0, 0, 0, 0, 0, 0, 0)
	funcStart := len(code)
	code = append(code, byte(interp.OpMoveI), byte(interp.RegA))
	code = append(code, wordBytes(interp.WordFromInt64(3))...)
	code = append(code, byte(interp.OpRet))
	copy(code[callPos+1:callPos+9], wordBytes(interp.Word(funcStart)))

	vm := interp.NewVM(code, interp.NewMemory(1024), exitTable())
	dbg := debugger.New(vm, nil)

	if err := dbg.StepOver(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vm.CallStack) != 0 {
		t.Fatalf("expected call stack to return to depth 0 after step-over, got %d", len(vm.CallStack))
	}
	if vm.Reg(interp.RegA).Int64() != 3 {
		t.Fatalf("expected the called function to have run, a=%d", vm.Reg(interp.RegA).Int64())
	}
}

func TestBacktraceResolvesLabels(t *testing.T) {
	resolver := debugger.NewSymbolResolver(map[uint64]string{5: "helper"})
	vm := interp.NewVM([]byte{0x00}, interp.NewMemory(64), interp.NewTable())
	vm.CallStack = append(vm.CallStack, interp.Word(5))
	dbg := debugger.New(vm, resolver)

	frames := dbg.Backtrace()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].Symbol != "helper" {
		t.Fatalf("expected the call-stack frame to resolve to %q, got %q", "helper", frames[1].Symbol)
	}
}

func TestBacktraceFromStatusNamesThePanickingFunction(t *testing.T) {
	// main: call foo; syscall 0
	// foo:  panic
	var code []byte
	callPos := len(code)
	code = append(code, byte(interp.OpCall), 0, 0, 0, 0, 0, 0, 0, 0)
	code = append(code, byte(interp.OpSyscall), 0x00)
	fooStart := len(code)
	code = append(code, byte(interp.OpPanic))
	copy(code[callPos+1:callPos+9], wordBytes(interp.Word(fooStart)))

	resolver := debugger.NewSymbolResolver(map[uint64]string{0: "main", uint64(fooStart): "foo"})
	vm := interp.NewVM(code, interp.NewMemory(1024), exitTable())
	if err := vm.RunForever(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vm.Status.Kind != interp.StatusPanicked {
		t.Fatalf("expected panicked, got %v", vm.Status)
	}

	frames := debugger.BacktraceFromStatus(vm.Status, resolver)
	if len(frames) == 0 {
		t.Fatal("expected at least one frame")
	}
	if frames[0].Symbol != "foo" {
		t.Fatalf("expected the innermost frame to name the panicking function %q, got %q", "foo", frames[0].Symbol)
	}
	if frames[len(frames)-1].Symbol != "main" {
		t.Fatalf("expected the outermost frame to name the caller %q, got %q", "main", frames[len(frames)-1].Symbol)
	}
}

func TestWatchpointFiresOnRegisterChange(t *testing.T) {
	vm := interp.NewVM([]byte{0x00}, interp.NewMemory(64), interp.NewTable())
	dbg := debugger.New(vm, nil)
	dbg.Watchpoints.WatchRegister(interp.RegA, vm.Reg(interp.RegA))

	vm.SetReg(interp.RegA, interp.WordFromInt64(42))
	fired := dbg.Watchpoints.Check(vm)
	if len(fired) != 1 {
		t.Fatalf("expected 1 watchpoint to fire, got %d", len(fired))
	}
}
