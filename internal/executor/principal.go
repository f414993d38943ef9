package executor

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// ResolvePrincipal looks up username in the host's user database and
// returns the UID/GID/home triple the runner needs to impersonate it.
func ResolvePrincipal(username string) (Principal, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return Principal{}, jferr.Wrap(jferr.System, fmt.Sprintf("resolve OS user %q", username), err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Principal{}, jferr.Wrap(jferr.System, "parse uid", err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Principal{}, jferr.Wrap(jferr.System, "parse gid", err)
	}
	return Principal{Username: username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}
