// Package debugger provides breakpoint/watchpoint-driven stepping and
// symbolic backtraces over an interp.VM, for use by the inspector API or
// any other front end (the graphical one is out of scope here).
package debugger

import (
	"github.com/soilvm/soil/interp"
)

// Frame is one entry of a resolved backtrace.
type Frame struct {
	Address uint64
	Symbol  string // empty if no label covers this address
}

// Debugger drives one VM under breakpoint/watchpoint control.
type Debugger struct {
	VM          *interp.VM
	Breakpoints *BreakpointManager
	Watchpoints *WatchpointManager
	Symbols     *SymbolResolver
}

// New wraps vm for debugging, resolving labels through resolver (which may
// be an empty resolver if the binary carried no label section).
func New(vm *interp.VM, resolver *SymbolResolver) *Debugger {
	if resolver == nil {
		resolver = NewSymbolResolver(nil)
	}
	return &Debugger{
		VM:          vm,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		Symbols:     resolver,
	}
}

// StepInto executes exactly one instruction, descending into calls.
func (d *Debugger) StepInto() error {
	return d.VM.RunInstruction()
}

// StepOver executes one instruction, but if it is a call, runs to
// completion of that call (until the call stack returns to its
// pre-instruction depth or shallower) before returning. It stops early if
// the VM leaves the running state.
func (d *Debugger) StepOver() error {
	depth := len(d.VM.CallStack)
	if err := d.VM.RunInstruction(); err != nil {
		return err
	}
	for d.VM.Status.Kind == interp.StatusRunning && len(d.VM.CallStack) > depth {
		if err := d.VM.RunInstruction(); err != nil {
			return err
		}
	}
	return nil
}

// Continue runs until a breakpoint or watchpoint fires, or the VM leaves
// the running state. Watchpoints are checked before breakpoints after each
// step: if any fire, it returns them with a nil breakpoint; otherwise it
// returns the breakpoint that stopped it, or nil if the VM simply terminated.
func (d *Debugger) Continue() (*Breakpoint, []*Watchpoint, error) {
	for d.VM.Status.Kind == interp.StatusRunning {
		if err := d.VM.RunInstruction(); err != nil {
			return nil, nil, err
		}
		if fired := d.Watchpoints.Check(d.VM); len(fired) > 0 {
			return nil, fired, nil
		}
		if d.VM.Status.Kind != interp.StatusRunning {
			break
		}
		if bp := d.Breakpoints.Hit(d.VM.IP); bp != nil {
			return bp, nil, nil
		}
	}
	return nil, nil, nil
}

// Backtrace resolves the current call stack plus the live instruction
// pointer into symbolic frames, innermost first. An unrecovered panic's
// stderr report is built from BacktraceFromStatus instead.
func (d *Debugger) Backtrace() []Frame {
	frames := make([]Frame, 0, len(d.VM.CallStack)+1)
	frames = append(frames, d.frameAt(d.VM.IP))
	for i := len(d.VM.CallStack) - 1; i >= 0; i-- {
		frames = append(frames, d.frameAt(uint64(d.VM.CallStack[i])))
	}
	return frames
}

func (d *Debugger) frameAt(address uint64) Frame {
	name, _, _ := d.Symbols.Resolve(address)
	return Frame{Address: address, Symbol: name}
}

// BacktraceFromStatus resolves a panicked VM's recorded backtrace (captured
// at the moment the panic escaped every try scope) the same way Backtrace
// resolves the live call stack.
func BacktraceFromStatus(status interp.Status, resolver *SymbolResolver) []Frame {
	frames := make([]Frame, 0, len(status.Backtrace))
	for _, addr := range status.Backtrace {
		name, _, _ := resolver.Resolve(uint64(addr))
		frames = append(frames, Frame{Address: uint64(addr), Symbol: name})
	}
	return frames
}
