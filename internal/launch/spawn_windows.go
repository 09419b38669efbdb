//go:build windows

package launch

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// sysProcAttr keeps javaw from opening a console window.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: windows.CREATE_NO_WINDOW}
}
