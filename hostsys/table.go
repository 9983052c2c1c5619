// Package hostsys implements the standard syscall table every host must
// expose, plus a debug-print aid the host is free to add on an unreserved
// number.
package hostsys

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/soilvm/soil/config"
	"github.com/soilvm/soil/interp"
)

const (
	SyscallExit         = 0x00
	SyscallPrint        = 0x01
	SyscallLog          = 0x02
	SyscallCreate       = 0x03
	SyscallWriteToFile   = 0x04
	SyscallUIDimensions  = 0x05
	SyscallUIRender      = 0x06
	SyscallReadInput     = 0x07
	SyscallTime          = 0x08
	SyscallRandom        = 0x09

	SyscallDebugPrint = 0xF0
)

// Host owns the mutable resources the standard syscalls read and write:
// open file handles, the last-rendered UI frame, and the streams console
// I/O goes through. A Host is not safe for concurrent use by more than one
// VM; the inspector API gives each session its own Host.
type Host struct {
	root string

	files []*os.File

	uiWidth, uiHeight int
	uiFrame           []byte

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	rng    *rand.Rand
}

// New builds a Host rooted at cfg's filesystem jail, writing console output
// to stdout/stderr and reading input from stdin. Tests construct a Host
// directly and override the streams instead of calling New.
func New(cfg *config.Config) *Host {
	return &Host{
		root:    cfg.Filesystem.Root,
		uiWidth: 640, uiHeight: 480,
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewStandardTable builds a Host from cfg and returns its syscall table,
// ready to pass to loader.Load.
func NewStandardTable(cfg *config.Config) *interp.Table {
	return New(cfg).Table()
}

// Table registers every standard handler and returns the resulting
// dispatch table.
func (h *Host) Table() *interp.Table {
	t := interp.NewTable()
	t.Register(SyscallExit, interp.ReturnVoid, h.exit)
	t.Register(SyscallPrint, interp.ReturnVoid, h.print)
	t.Register(SyscallLog, interp.ReturnVoid, h.log)
	t.Register(SyscallCreate, interp.ReturnOne, h.create)
	t.Register(SyscallWriteToFile, interp.ReturnVoid, h.writeToFile)
	t.Register(SyscallUIDimensions, interp.ReturnTwo, h.uiDimensions)
	t.Register(SyscallUIRender, interp.ReturnVoid, h.uiRender)
	t.Register(SyscallReadInput, interp.ReturnOne, h.readInput)
	t.Register(SyscallTime, interp.ReturnTwo, h.time)
	t.Register(SyscallRandom, interp.ReturnVoid, h.random)
	t.Register(SyscallDebugPrint, interp.ReturnVoid, h.debugPrint)
	return t
}

func (h *Host) exit(vm *interp.VM) (interp.Word, interp.Word, error) {
	vm.Exit(vm.Reg(interp.RegA).Int64())
	return 0, 0, nil
}

func (h *Host) print(vm *interp.VM) (interp.Word, interp.Word, error) {
	return 0, 0, h.writeBuf(vm, h.stdout)
}

func (h *Host) log(vm *interp.VM) (interp.Word, interp.Word, error) {
	return 0, 0, h.writeBuf(vm, h.stderr)
}

func (h *Host) writeBuf(vm *interp.VM, w io.Writer) error {
	addr := vm.Reg(interp.RegA)
	length := uint64(vm.Reg(interp.RegB))
	data, err := vm.Memory.GetBytes(addr, length)
	if err != nil {
		return fmt.Errorf("hostsys: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func (h *Host) debugPrint(vm *interp.VM) (interp.Word, interp.Word, error) {
	s, err := vm.Memory.ReadCString(vm.Reg(interp.RegA))
	if err != nil {
		return 0, 0, fmt.Errorf("hostsys: debug_print: %w", err)
	}
	fmt.Fprintln(h.stderr, s)
	return 0, 0, nil
}

func (h *Host) time(vm *interp.VM) (interp.Word, interp.Word, error) {
	now := time.Now()
	return interp.WordFromInt64(now.Unix()), interp.WordFromInt64(int64(now.Nanosecond())), nil
}

func (h *Host) random(vm *interp.VM) (interp.Word, interp.Word, error) {
	addr := vm.Reg(interp.RegA)
	length := uint64(vm.Reg(interp.RegB))
	buf := make([]byte, length)
	h.rng.Read(buf) //nolint:errcheck // math/rand.Rand.Read never errors
	if err := vm.Memory.SetBytes(addr, buf); err != nil {
		return 0, 0, fmt.Errorf("hostsys: random: %w", err)
	}
	return 0, 0, nil
}

func (h *Host) readInput(vm *interp.VM) (interp.Word, interp.Word, error) {
	addr := vm.Reg(interp.RegA)
	cap := uint64(vm.Reg(interp.RegB))
	buf := make([]byte, cap)
	n, err := h.stdin.Read(buf)
	if err != nil && err != io.EOF {
		return 0, 0, fmt.Errorf("hostsys: read_input: %w", err)
	}
	if err := vm.Memory.SetBytes(addr, buf[:n]); err != nil {
		return 0, 0, fmt.Errorf("hostsys: read_input: %w", err)
	}
	return interp.WordFromInt64(int64(n)), 0, nil
}

func (h *Host) uiDimensions(vm *interp.VM) (interp.Word, interp.Word, error) {
	return interp.WordFromInt64(int64(h.uiWidth)), interp.WordFromInt64(int64(h.uiHeight)), nil
}

// uiRender accepts the guest's pushed frame and keeps it for inspection
// rather than painting it: no canvas front end lives in this process. The
// wire format is 3 bytes per pixel (RGB).
func (h *Host) uiRender(vm *interp.VM) (interp.Word, interp.Word, error) {
	addr := vm.Reg(interp.RegA)
	width := uint64(vm.Reg(interp.RegB))
	height := uint64(vm.Reg(interp.RegC))
	frame, err := vm.Memory.GetBytes(addr, width*height*3)
	if err != nil {
		return 0, 0, fmt.Errorf("hostsys: ui_render: %w", err)
	}
	h.uiWidth, h.uiHeight = int(width), int(height)
	h.uiFrame = frame
	return 0, 0, nil
}

// LastFrame returns the most recently pushed RGB frame, or nil if ui_render
// has never been called. Used by the inspector API and tests.
func (h *Host) LastFrame() (frame []byte, width, height int) {
	return h.uiFrame, h.uiWidth, h.uiHeight
}
