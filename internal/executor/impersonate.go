package executor

import "os/exec"

// impersonator mutates cmd in place so that, once started, the child
// process runs under principal's OS identity rather than the server's own.
type impersonator interface {
	prepare(cmd *exec.Cmd, principal Principal) error
}

// sudoImpersonator rewraps the command as `sudo -u <user> -- <binary> <args...>`,
// the documented fallback for platforms or privilege levels where the
// process cannot drop privileges directly via the kernel's credential
// syscalls. The invocable program list is fixed to sudo itself; no other
// delegation helper is ever substituted.
type sudoImpersonator struct{}

func (sudoImpersonator) prepare(cmd *exec.Cmd, principal Principal) error {
	sudoPath, err := exec.LookPath("sudo")
	if err != nil {
		return err
	}

	args := append([]string{"-u", principal.Username, "--", cmd.Path}, cmd.Args[1:]...)
	cmd.Path = sudoPath
	cmd.Args = append([]string{sudoPath}, args...)
	return nil
}
