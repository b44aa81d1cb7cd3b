//go:build windows

package shell

import "os/exec"

func configureProcAttr(*exec.Cmd, bool) {
	// No-op on Windows.
}

func (p *Process) signal(bool) error {
	return p.cmd.Process.Kill()
}
