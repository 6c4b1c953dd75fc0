package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module has been administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutating operations while the module is paused. A nil view
// means pausing is not wired and the guard passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
