//go:build !windows

package app

import (
	"syscall"

	"github.com/gdamore/tcell/v2"
)

// suspendApp stops the process until the shell resumes it, releasing
// the terminal in between.
func suspendApp(t tcell.Screen) {
	if err := t.Suspend(); err != nil {
		return
	}
	defer t.Resume()

	syscall.Kill(syscall.Getpid(), syscall.SIGTSTP)
}
