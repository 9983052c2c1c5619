package interp

import (
	"errors"
	"fmt"
	"math"
)

// TryScope is a bracket pushed by trystart and popped by tryend, or
// transparently unwound when a panic (explicit or recoverable-error)
// reaches it.
type TryScope struct {
	CallStackLen int
	SP           Word
	CatchOffset  Word
}

// VM is the interpreter core: byte-code, instruction pointer, register
// file, linear memory, call stack, try-scope stack, and a handle to the
// syscall table. It holds no other state than strictly required; tracing
// is opt-in and attached by embedders (see Trace field).
type VM struct {
	Code     []byte
	IP       uint64
	Regs     [NumRegisters]Word
	Memory   *Memory
	CallStack []Word
	TryStack []TryScope
	Syscalls *Table
	Status   Status

	// Labels is the optional offset->name map carried by the SoilBinary,
	// retained only for host diagnostics (backtraces, debugger display).
	Labels map[uint64]string

	// Trace, if non-nil, receives one call per executed instruction. It is
	// never consulted by execution semantics.
	Trace func(ip uint64, inst Instruction)
}

// NewVM constructs a VM ready to run. mem must already have been allocated
// to the host's configured memory size, with any initial memory image
// copied in by the loader's init operation.
func NewVM(code []byte, mem *Memory, syscalls *Table) *VM {
	vm := &VM{
		Code:     code,
		Memory:   mem,
		Syscalls: syscalls,
	}
	vm.Reset()
	return vm
}

// Reset reinitializes registers, stacks, and the instruction pointer to
// their startup values (sp = memory size, everything else zero) without
// reallocating memory or reloading byte-code.
func (vm *VM) Reset() {
	for i := range vm.Regs {
		vm.Regs[i] = 0
	}
	vm.Regs[RegSP] = Word(vm.Memory.Size())
	vm.CallStack = vm.CallStack[:0]
	vm.TryStack = vm.TryStack[:0]
	vm.IP = 0
	vm.Status = Status{Kind: StatusRunning}
}

// Exit transitions the VM to exited(code), for use by the exit syscall
// handler. It does not touch the instruction pointer; the caller has
// already advanced past the syscall instruction.
func (vm *VM) Exit(code int64) {
	vm.Status = Status{Kind: StatusExited, ExitCode: code}
}

// Reg reads a register by index.
func (vm *VM) Reg(i int) Word {
	return vm.Regs[i]
}

// SetReg writes a register by index.
func (vm *VM) SetReg(i int, v Word) {
	vm.Regs[i] = v
}

// DecodeNextInstruction peeks the next instruction without advancing ip,
// for use by debuggers and other inspectors.
func (vm *VM) DecodeNextInstruction() (Instruction, error) {
	inst, _, err := Decode(vm.Code, vm.IP)
	return inst, err
}

// RunInstruction executes exactly one instruction if the VM is running; it
// is a no-op once the VM has left the running state.
func (vm *VM) RunInstruction() error {
	if vm.Status.Kind != StatusRunning {
		return nil
	}

	inst, nextIP, err := Decode(vm.Code, vm.IP)
	if err != nil {
		vm.trap(err, false, Word(vm.IP))
		return nil
	}
	vm.IP = nextIP

	if vm.Trace != nil {
		vm.Trace(uint64(inst.Address), inst)
	}

	if err := vm.execute(inst); err != nil {
		vm.trap(err, inst.Op == OpPanic, inst.Address)
	}
	return nil
}

// RunInstructions runs at most n instructions, stopping early if the VM
// leaves the running state, so an embedding host can yield between batches.
func (vm *VM) RunInstructions(n int) error {
	for i := 0; i < n && vm.Status.Kind == StatusRunning; i++ {
		if err := vm.RunInstruction(); err != nil {
			return err
		}
	}
	return nil
}

// RunForever runs until the VM is no longer in the running state.
func (vm *VM) RunForever() error {
	for vm.Status.Kind == StatusRunning {
		if err := vm.RunInstruction(); err != nil {
			return err
		}
	}
	return nil
}

// nonRecoverable marks an error that must never unwind into a try-scope
// (syscall errors are not recoverable via try).
type nonRecoverable struct{ err error }

func (e *nonRecoverable) Error() string { return e.err.Error() }
func (e *nonRecoverable) Unwrap() error { return e.err }

// trap implements the unified unwind: a recoverable failure
// (explicit panic, decode error, memory error, division error) pops the
// innermost try-scope if one exists; otherwise it sets the terminal status.
// isPanic distinguishes "explicit panic opcode, no scope" (-> panicked)
// from "other recoverable error, no scope" (-> error(msg)). faultAddr is the
// byte-code offset of the instruction that faulted (or, for a decode error,
// the offset decoding failed at); it becomes the innermost frame of a
// captured backtrace, since a return address on the call stack names the
// caller, never the function that actually panicked.
func (vm *VM) trap(err error, isPanic bool, faultAddr Word) {
	var nr *nonRecoverable
	if errors.As(err, &nr) {
		vm.Status = Status{Kind: StatusError, Message: nr.err.Error()}
		return
	}

	if len(vm.TryStack) > 0 {
		scope := vm.TryStack[len(vm.TryStack)-1]
		vm.TryStack = vm.TryStack[:len(vm.TryStack)-1]
		vm.CallStack = vm.CallStack[:scope.CallStackLen]
		vm.Regs[RegSP] = scope.SP
		vm.IP = uint64(scope.CatchOffset)
		return
	}

	if isPanic {
		backtrace := make([]Word, 0, len(vm.CallStack)+1)
		backtrace = append(backtrace, faultAddr)
		for i := len(vm.CallStack) - 1; i >= 0; i-- {
			backtrace = append(backtrace, vm.CallStack[i])
		}
		vm.Status = Status{Kind: StatusPanicked, Backtrace: backtrace}
		return
	}

	vm.Status = Status{Kind: StatusError, Message: err.Error()}
}

func boolWord(b bool) Word {
	if b {
		return 1
	}
	return 0
}

// execute runs the semantics of a single decoded instruction. Returned
// errors are always handled by the caller through trap; execute itself
// never touches vm.Status.
func (vm *VM) execute(inst Instruction) error {
	switch inst.Op {
	case OpNop:
		return nil

	case OpPanic:
		return fmt.Errorf("panic at 0x%x", uint64(inst.Address))

	case OpTryStart:
		vm.TryStack = append(vm.TryStack, TryScope{
			CallStackLen: len(vm.CallStack),
			SP:           vm.Reg(RegSP),
			CatchOffset:  inst.Word,
		})
		return nil

	case OpTryEnd:
		if len(vm.TryStack) == 0 {
			return fmt.Errorf("tryend with empty try-stack at 0x%x", uint64(inst.Address))
		}
		vm.TryStack = vm.TryStack[:len(vm.TryStack)-1]
		return nil

	case OpMove:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg2))
		return nil
	case OpMoveI:
		vm.SetReg(inst.Reg1, inst.Word)
		return nil
	case OpMoveIB:
		vm.SetReg(inst.Reg1, ZeroExtend(inst.Byte))
		return nil

	case OpLoad:
		v, err := vm.Memory.ReadWord(vm.Reg(inst.Reg2))
		if err != nil {
			return err
		}
		vm.SetReg(inst.Reg1, v)
		return nil
	case OpLoadB:
		v, err := vm.Memory.ReadByte(vm.Reg(inst.Reg2))
		if err != nil {
			return err
		}
		vm.SetReg(inst.Reg1, ZeroExtend(v))
		return nil
	case OpStore:
		return vm.Memory.WriteWord(vm.Reg(inst.Reg1), vm.Reg(inst.Reg2))
	case OpStoreB:
		return vm.Memory.WriteByte(vm.Reg(inst.Reg1), LowByte(vm.Reg(inst.Reg2)))

	case OpPush:
		sp := vm.Reg(RegSP) - WordSize
		if err := vm.Memory.WriteWord(sp, vm.Reg(inst.Reg1)); err != nil {
			return err
		}
		vm.SetReg(RegSP, sp)
		return nil
	case OpPop:
		sp := vm.Reg(RegSP)
		v, err := vm.Memory.ReadWord(sp)
		if err != nil {
			return err
		}
		vm.SetReg(inst.Reg1, v)
		vm.SetReg(RegSP, sp+WordSize)
		return nil

	case OpJump:
		vm.IP = uint64(inst.Word)
		return nil
	case OpCJump:
		if vm.Reg(RegST) != 0 {
			vm.IP = uint64(inst.Word)
		}
		return nil
	case OpCall:
		vm.CallStack = append(vm.CallStack, Word(vm.IP))
		vm.IP = uint64(inst.Word)
		return nil
	case OpRet:
		if len(vm.CallStack) == 0 {
			return fmt.Errorf("ret with empty call stack at 0x%x", uint64(inst.Address))
		}
		top := vm.CallStack[len(vm.CallStack)-1]
		vm.CallStack = vm.CallStack[:len(vm.CallStack)-1]
		vm.IP = uint64(top)
		return nil
	case OpSyscall:
		if err := vm.Syscalls.Dispatch(inst.Byte, vm); err != nil {
			return &nonRecoverable{err: err}
		}
		return nil

	case OpCmp:
		vm.SetReg(RegST, vm.Reg(inst.Reg1)-vm.Reg(inst.Reg2))
		return nil
	case OpIsEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Int64() == 0))
		return nil
	case OpIsLess:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Int64() < 0))
		return nil
	case OpIsGreater:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Int64() > 0))
		return nil
	case OpIsLessEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Int64() <= 0))
		return nil
	case OpIsGreaterEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Int64() >= 0))
		return nil
	case OpIsNotEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Int64() != 0))
		return nil

	case OpFCmp:
		diff := vm.Reg(inst.Reg1).Float64() - vm.Reg(inst.Reg2).Float64()
		vm.SetReg(RegST, WordFromFloat64(diff))
		return nil
	case OpFIsEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Float64() == 0))
		return nil
	case OpFIsLess:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Float64() < 0))
		return nil
	case OpFIsGreater:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Float64() > 0))
		return nil
	case OpFIsLessEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Float64() <= 0))
		return nil
	case OpFIsGreaterEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Float64() >= 0))
		return nil
	case OpFIsNotEqual:
		vm.SetReg(RegST, boolWord(vm.Reg(RegST).Float64() != 0))
		return nil

	case OpIntToFloat:
		vm.SetReg(inst.Reg1, WordFromFloat64(float64(vm.Reg(inst.Reg1).Int64())))
		return nil
	case OpFloatToInt:
		vm.SetReg(inst.Reg1, WordFromInt64(int64(math.Trunc(vm.Reg(inst.Reg1).Float64()))))
		return nil

	case OpAdd:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg1)+vm.Reg(inst.Reg2))
		return nil
	case OpSub:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg1)-vm.Reg(inst.Reg2))
		return nil
	case OpMul:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg1)*vm.Reg(inst.Reg2))
		return nil
	case OpDiv:
		divisor := vm.Reg(inst.Reg2).Int64()
		if divisor == 0 {
			return fmt.Errorf("division by zero at 0x%x", uint64(inst.Address))
		}
		vm.SetReg(inst.Reg1, WordFromInt64(vm.Reg(inst.Reg1).Int64()/divisor))
		return nil
	case OpRem:
		divisor := vm.Reg(inst.Reg2).Int64()
		if divisor == 0 {
			return fmt.Errorf("division by zero at 0x%x", uint64(inst.Address))
		}
		vm.SetReg(inst.Reg1, WordFromInt64(vm.Reg(inst.Reg1).Int64()%divisor))
		return nil

	case OpFAdd:
		vm.SetReg(inst.Reg1, WordFromFloat64(vm.Reg(inst.Reg1).Float64()+vm.Reg(inst.Reg2).Float64()))
		return nil
	case OpFSub:
		vm.SetReg(inst.Reg1, WordFromFloat64(vm.Reg(inst.Reg1).Float64()-vm.Reg(inst.Reg2).Float64()))
		return nil
	case OpFMul:
		vm.SetReg(inst.Reg1, WordFromFloat64(vm.Reg(inst.Reg1).Float64()*vm.Reg(inst.Reg2).Float64()))
		return nil
	case OpFDiv:
		divisor := vm.Reg(inst.Reg2).Float64()
		if divisor == 0 {
			return fmt.Errorf("float division by zero at 0x%x", uint64(inst.Address))
		}
		vm.SetReg(inst.Reg1, WordFromFloat64(vm.Reg(inst.Reg1).Float64()/divisor))
		return nil

	case OpAnd:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg1)&vm.Reg(inst.Reg2))
		return nil
	case OpOr:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg1)|vm.Reg(inst.Reg2))
		return nil
	case OpXor:
		vm.SetReg(inst.Reg1, vm.Reg(inst.Reg1)^vm.Reg(inst.Reg2))
		return nil
	case OpNot:
		vm.SetReg(inst.Reg1, ^vm.Reg(inst.Reg1))
		return nil
	}

	return fmt.Errorf("unimplemented opcode 0x%02x at 0x%x", byte(inst.Op), uint64(inst.Address))
}
