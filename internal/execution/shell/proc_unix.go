//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

func configureProcAttr(cmd *exec.Cmd, group bool) {
	if group {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
}

func (p *Process) signal(force bool) error {
	signal := syscall.SIGTERM
	if force {
		signal = syscall.SIGKILL
	}

	if p.group {
		if pgid, err := syscall.Getpgid(p.pid); err == nil {
			// Negative pid sends signal to all in process group
			return syscall.Kill(-pgid, signal)
		}
	}

	return syscall.Kill(p.pid, signal)
}
