package common

import "errors"

// ErrModulePaused is returned when a guarded entry point is invoked while the
// module is administratively paused.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause status of a named module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
