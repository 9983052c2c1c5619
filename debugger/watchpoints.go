package debugger

import (
	"fmt"
	"sync"

	"github.com/soilvm/soil/interp"
)

// Watchpoint monitors a register or a memory word for value changes; it
// triggers by value-change detection only, not by distinguishing reads from
// writes (the VM does not expose per-access hooks finer than that).
type Watchpoint struct {
	ID         int
	IsRegister bool
	Register   int   // valid when IsRegister
	Address    uint64 // valid when !IsRegister
	Enabled    bool
	LastValue  interp.Word
	HitCount   int
}

// WatchpointManager owns the set of watchpoints for one debugging session.
type WatchpointManager struct {
	mu          sync.RWMutex
	watchpoints map[int]*Watchpoint
	nextID      int
}

// NewWatchpointManager returns an empty manager.
func NewWatchpointManager() *WatchpointManager {
	return &WatchpointManager{
		watchpoints: make(map[int]*Watchpoint),
		nextID:      1,
	}
}

// WatchRegister adds a watchpoint on a register, seeded with its current
// value so the first check after this call does not spuriously trigger.
func (wm *WatchpointManager) WatchRegister(reg int, current interp.Word) *Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wp := &Watchpoint{ID: wm.nextID, IsRegister: true, Register: reg, Enabled: true, LastValue: current}
	wm.watchpoints[wp.ID] = wp
	wm.nextID++
	return wp
}

// WatchAddress adds a watchpoint on a memory word.
func (wm *WatchpointManager) WatchAddress(address uint64, current interp.Word) *Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wp := &Watchpoint{ID: wm.nextID, Address: address, Enabled: true, LastValue: current}
	wm.watchpoints[wp.ID] = wp
	wm.nextID++
	return wp
}

// Remove deletes the watchpoint with the given ID.
func (wm *WatchpointManager) Remove(id int) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if _, ok := wm.watchpoints[id]; !ok {
		return fmt.Errorf("debugger: no watchpoint with id %d", id)
	}
	delete(wm.watchpoints, id)
	return nil
}

// All returns every watchpoint, in no particular order.
func (wm *WatchpointManager) All() []*Watchpoint {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	out := make([]*Watchpoint, 0, len(wm.watchpoints))
	for _, wp := range wm.watchpoints {
		out = append(out, wp)
	}
	return out
}

// Check reads every enabled watchpoint's current value out of vm and
// returns those whose value differs from what was last observed, updating
// LastValue and HitCount as it goes. Memory watchpoints that fail to read
// (address now out of bounds) are skipped rather than erroring, since the
// guest's own execution already surfaces that as a VM status.
func (wm *WatchpointManager) Check(vm *interp.VM) []*Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	var triggered []*Watchpoint
	for _, wp := range wm.watchpoints {
		if !wp.Enabled {
			continue
		}
		var current interp.Word
		if wp.IsRegister {
			current = vm.Reg(wp.Register)
		} else {
			v, err := vm.Memory.ReadWord(interp.Word(wp.Address))
			if err != nil {
				continue
			}
			current = v
		}
		if current != wp.LastValue {
			wp.LastValue = current
			wp.HitCount++
			snapshot := *wp
			triggered = append(triggered, &snapshot)
		}
	}
	return triggered
}
