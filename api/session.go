// Package api exposes an HTTP + WebSocket inspector over running VM
// sessions: create one from a .soil binary, drive it with step/run/reset,
// inspect its registers and status, and manage breakpoints.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/soilvm/soil/config"
	"github.com/soilvm/soil/debugger"
	"github.com/soilvm/soil/format"
	"github.com/soilvm/soil/hostsys"
	"github.com/soilvm/soil/interp"
	"github.com/soilvm/soil/loader"
)

var (
	ErrSessionNotFound = errors.New("api: session not found")
)

// Session is one loaded .soil binary under debugger control.
type Session struct {
	ID        string
	Debugger  *debugger.Debugger
	Host      *hostsys.Host
	CreatedAt time.Time

	mu sync.Mutex
}

// RunLocked executes fn while holding the session's lock, serializing all
// access to its VM.
func (s *Session) RunLocked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// StateSnapshot is the session state an inspector client reads after a
// step, run, or on-demand query.
type StateSnapshot struct {
	Status        string
	ExitCode      int64
	Message       string
	IP            uint64
	Registers     [interp.NumRegisters]uint64
	CallStackSize int
}

func (s *Session) Snapshot() StateSnapshot {
	vm := s.Debugger.VM
	snap := StateSnapshot{
		Status:        vm.Status.Kind.String(),
		IP:            vm.IP,
		CallStackSize: len(vm.CallStack),
	}
	if vm.Status.Kind == interp.StatusExited {
		snap.ExitCode = vm.Status.ExitCode
	}
	if vm.Status.Kind == interp.StatusError {
		snap.Message = vm.Status.Message
	}
	for i := 0; i < interp.NumRegisters; i++ {
		snap.Registers[i] = uint64(vm.Reg(i))
	}
	return snap
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func newSession(data []byte, cfg *config.Config) (*Session, error) {
	bin, err := format.Parse(data)
	if err != nil {
		return nil, err
	}

	host := hostsys.New(cfg)
	vm, err := loader.Load(bin, cfg.Memory.SizeBytes, host.Table())
	if err != nil {
		return nil, err
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		Debugger:  debugger.New(vm, debugger.NewSymbolResolver(bin.LabelMap())),
		Host:      host,
		CreatedAt: time.Now(),
	}, nil
}
