//go:build windows

package hooks

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureCommand keeps console hooks from flashing a window.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
