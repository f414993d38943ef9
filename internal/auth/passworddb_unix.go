//go:build linux || darwin

package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ShadowPasswordDB reads the host's /etc/passwd and /etc/shadow files
// directly, as C1 requires ("reads the host password database entry for
// username"). Requires read access to /etc/shadow (normally root-only),
// matching the spec's assumption that the server process itself runs
// privileged enough to impersonate arbitrary users (see internal/executor).
type ShadowPasswordDB struct {
	passwdPath string
	shadowPath string
}

func NewShadowPasswordDB() *ShadowPasswordDB {
	return &ShadowPasswordDB{passwdPath: "/etc/passwd", shadowPath: "/etc/shadow"}
}

func (d *ShadowPasswordDB) Lookup(ctx context.Context, username string) (*PasswordRecord, error) {
	uid, gid, home, err := lookupPasswd(d.passwdPath, username)
	if err != nil {
		return nil, err
	}

	hash, locked, err := lookupShadow(d.shadowPath, username)
	if err != nil {
		return nil, err
	}

	return &PasswordRecord{
		Username:     username,
		HashedSecret: hash,
		Locked:       locked,
		UID:          uid,
		GID:          gid,
		Home:         home,
	}, nil
}

func lookupPasswd(path, username string) (uid, gid int, home string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", fmt.Errorf("open passwd db: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 || fields[0] != username {
			continue
		}
		uid, _ = strconv.Atoi(fields[2])
		gid, _ = strconv.Atoi(fields[3])
		return uid, gid, fields[5], nil
	}
	if err := sc.Err(); err != nil {
		return 0, 0, "", fmt.Errorf("scan passwd db: %w", err)
	}
	return 0, 0, "", &ErrNoSuchUser{Username: username}
}

func lookupShadow(path, username string) (hash string, locked bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("open shadow db: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 2 || fields[0] != username {
			continue
		}
		h := fields[1]
		locked := strings.HasPrefix(h, "!") || strings.HasPrefix(h, "*") || h == ""
		return strings.TrimPrefix(h, "!"), locked, nil
	}
	if err := sc.Err(); err != nil {
		return "", false, fmt.Errorf("scan shadow db: %w", err)
	}
	return "", false, &ErrNoSuchUser{Username: username}
}
