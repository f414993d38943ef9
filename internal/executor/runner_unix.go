//go:build linux || darwin

package executor

import (
	"os/exec"
	"syscall"
)

// credentialImpersonator drops privileges directly via the kernel's
// setresuid/setresgid-equivalent, exposed in Go as SysProcAttr.Credential.
// Used when the server itself runs with sufficient privilege (typically
// root) to switch to any principal without shelling out to sudo.
type credentialImpersonator struct{}

func (credentialImpersonator) prepare(cmd *exec.Cmd, principal Principal) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Credential = &syscall.Credential{
		Uid: uint32(principal.UID),
		Gid: uint32(principal.GID),
	}
	return nil
}

// newImpersonator picks direct credential-switching when the process runs
// with effective uid 0, and the sudo-based impersonator otherwise.
func newImpersonator() impersonator {
	if syscall.Geteuid() == 0 {
		return credentialImpersonator{}
	}
	return sudoImpersonator{}
}

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		pgid = cmd.Process.Pid
	}
	syscall.Kill(-pgid, sig)
}

func signalTerm(cmd *exec.Cmd) { signalGroup(cmd, syscall.SIGTERM) }
func signalKill(cmd *exec.Cmd) { signalGroup(cmd, syscall.SIGKILL) }
