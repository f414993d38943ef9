//go:build !linux && !darwin

package executor

import "os/exec"

func newImpersonator() impersonator {
	return sudoImpersonator{}
}

func setProcessGroup(cmd *exec.Cmd) {}

func signalTerm(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func signalKill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}
