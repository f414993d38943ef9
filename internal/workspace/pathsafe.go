package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// ResolveInside joins userPath onto workspaceRoot and guarantees the result
// cannot escape workspaceRoot, whether via ".." segments, an absolute path,
// or a symlink planted inside the workspace that points outward. Grounded
// on the join+Clean+prefix-check pattern used for host tool path validation,
// generalized here with a symlink-escape check since job workspaces are
// untrusted repository checkouts.
func ResolveInside(workspaceRoot, userPath string) (string, error) {
	if strings.ContainsRune(userPath, 0) {
		return "", jferr.New(jferr.Validation, "path contains a NUL byte")
	}

	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return "", jferr.Wrap(jferr.System, "resolve workspace root", err)
	}

	joined := filepath.Join(root, userPath)
	cleaned := filepath.Clean(joined)

	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", jferr.New(jferr.Validation, fmt.Sprintf("path %q escapes the workspace", userPath))
	}

	resolved, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			// The path does not exist yet: check its nearest existing
			// ancestor, so a symlinked parent cannot lead outside root.
			for ancestor := filepath.Dir(cleaned); cleaned != root && ancestor != root; ancestor = filepath.Dir(ancestor) {
				realAncestor, aErr := filepath.EvalSymlinks(ancestor)
				if aErr != nil {
					continue
				}
				if !strings.HasPrefix(realAncestor+string(filepath.Separator), root+string(filepath.Separator)) {
					return "", jferr.New(jferr.Validation, fmt.Sprintf("path %q escapes the workspace via a symlink", userPath))
				}
				break
			}
			return cleaned, nil
		}
		return "", jferr.Wrap(jferr.System, "resolve symlinks", err)
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", jferr.New(jferr.Validation, fmt.Sprintf("path %q escapes the workspace via a symlink", userPath))
	}

	return resolved, nil
}
