package staging

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/workspace"
)

// DirectoryInfo describes one subdirectory entry of a workspace listing.
type DirectoryInfo struct {
	Name string
	Path string
}

// FileInfo describes one file entry of a workspace listing.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

const maxTextContentBytes = 5 * 1024 * 1024

// ListDirectories returns the immediate subdirectories of path inside
// workspaceRoot, per C8's directory-listing endpoint.
func ListDirectories(workspaceRoot, path string) ([]DirectoryInfo, error) {
	dir, err := workspace.ResolveInside(workspaceRoot, path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, jferr.Wrap(jferr.System, "read directory", err)
	}

	out := make([]DirectoryInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, DirectoryInfo{
			Name: e.Name(),
			Path: filepath.Join(path, e.Name()),
		})
	}
	return out, nil
}

// ListFiles walks path inside workspaceRoot to depth, returning files (and
// optionally directories, per includeType) whose name matches mask.
func ListFiles(workspaceRoot, path, mask, includeType string, depth int) ([]FileInfo, error) {
	root, err := workspace.ResolveInside(workspaceRoot, path)
	if err != nil {
		return nil, err
	}
	patterns, err := parseMask(mask)
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	var walk func(dir, rel string, level int) error
	walk = func(dir, rel string, level int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return jferr.Wrap(jferr.System, "read directory", err)
		}
		for _, e := range entries {
			childRel := filepath.Join(rel, e.Name())
			if e.IsDir() {
				if includeType != "files" {
					out = append(out, FileInfo{Name: e.Name(), Path: childRel})
				}
				if depth <= 0 || level < depth {
					if err := walk(filepath.Join(dir, e.Name()), childRel, level+1); err != nil {
						return err
					}
				}
				continue
			}
			if includeType == "directories" {
				continue
			}
			if !matchesMask(e.Name(), patterns) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, FileInfo{Name: e.Name(), Path: childRel, Size: info.Size()})
		}
		return nil
	}

	if err := walk(root, "", 0); err != nil {
		return nil, err
	}
	return out, nil
}

// parseMask splits a comma-separated glob list, rejecting any segment that
// contains a path separator, "..", or a control character.
func parseMask(mask string) ([]string, error) {
	if mask == "" {
		return nil, nil
	}
	parts := strings.Split(mask, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "/\\") || strings.Contains(p, "..") {
			return nil, jferr.New(jferr.Validation, "mask must not contain path separators")
		}
		if strings.IndexFunc(p, unicode.IsControl) >= 0 {
			return nil, jferr.New(jferr.Validation, "mask must not contain control characters")
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesMask(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p == "*" {
			return true
		}
		if strings.HasPrefix(p, "*.") {
			if strings.HasSuffix(lower, strings.ToLower(p[1:])) {
				return true
			}
			continue
		}
		if lower == strings.ToLower(p) {
			return true
		}
	}
	return false
}

// ReadTextContent reads path inside workspaceRoot as UTF-8 text, rejecting
// anything past maxTextContentBytes.
func ReadTextContent(workspaceRoot, path string) (string, error) {
	resolved, err := workspace.ResolveInside(workspaceRoot, path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", jferr.New(jferr.NotFound, "file not found")
	}
	if info.IsDir() {
		return "", jferr.New(jferr.Validation, "path is a directory")
	}
	if info.Size() > maxTextContentBytes {
		return "", jferr.New(jferr.Validation, "file exceeds the text content size limit")
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", jferr.Wrap(jferr.System, "read file", err)
	}
	return string(data), nil
}

// ResolveDownload resolves path for binary download, first against the
// workspace and, failing that, against the job's pre-start staging area
// (a job cancelled or not yet started has no workspace to browse).
func ResolveDownload(workspaceRoot string, stagingStore *Store, jobID, path string) (string, error) {
	if workspaceRoot != "" {
		resolved, err := workspace.ResolveInside(workspaceRoot, path)
		if err == nil {
			if _, statErr := os.Stat(resolved); statErr == nil {
				return resolved, nil
			}
		}
	}
	return stagingStore.Resolve(jobID, filepath.Base(path))
}
