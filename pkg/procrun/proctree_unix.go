//go:build unix

package procrun

import (
	"os/exec"
	"syscall"
)

// treeTerminator is the platform strategy for reaching an entire process
// tree. Selected once at build time rather than branching inside the runner.
type treeTerminator interface {
	// prepare configures the command before Start so descendants are
	// reachable later.
	prepare(cmd *exec.Cmd)
	// terminate sends the graceful stop signal to the tree.
	terminate(cmd *exec.Cmd) error
	// kill forcefully ends the tree.
	kill(cmd *exec.Cmd) error
}

func newTreeTerminator() treeTerminator {
	return groupTerminator{}
}

// groupTerminator places the child in its own process group and signals the
// whole group via the negative-PID convention, so grandchildren spawned by
// the tool are reached too.
type groupTerminator struct{}

func (groupTerminator) prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (groupTerminator) terminate(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGTERM)
}

func (groupTerminator) kill(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		// Group already gone or never formed; fall back to the direct child.
		return cmd.Process.Signal(sig)
	}
	return nil
}
