package common

import (
	"errors"
	"strings"
	"sync"
)

// ErrModulePaused is returned by Guard when the operator has halted a module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when p reports module as paused. A nil view
// or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is an operator-controlled pause set, typically loaded from
// configuration at boot and toggled at runtime.
type StaticPauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewStaticPauses seeds the set with the provided module names.
func NewStaticPauses(modules ...string) *StaticPauses {
	p := &StaticPauses{paused: make(map[string]bool)}
	for _, m := range modules {
		p.Set(m, true)
	}
	return p
}

// Set pauses or resumes a module.
func (p *StaticPauses) Set(module string, paused bool) {
	module = strings.ToLower(strings.TrimSpace(module))
	if module == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[module] = true
		return
	}
	delete(p.paused, module)
}

// IsPaused implements PauseView.
func (p *StaticPauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[strings.ToLower(strings.TrimSpace(module))]
}
