//go:build windows

package procrun

import "os/exec"

// treeTerminator is the platform strategy for reaching an entire process
// tree. Selected once at build time rather than branching inside the runner.
type treeTerminator interface {
	prepare(cmd *exec.Cmd)
	terminate(cmd *exec.Cmd) error
	kill(cmd *exec.Cmd) error
}

func newTreeTerminator() treeTerminator {
	return directTerminator{}
}

// directTerminator signals only the direct child. Windows has no process
// groups in the POSIX sense, so descendants spawned by the tool are not
// reached; this matches the documented cross-platform difference.
type directTerminator struct{}

func (directTerminator) prepare(cmd *exec.Cmd) {}

func (directTerminator) terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func (directTerminator) kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
