package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/workspace"
)

const maxTextContentBytes = 2 * 1024 * 1024

// DirectoryInfo describes one subdirectory entry.
type DirectoryInfo struct {
	Name string
	Path string
}

// FileInfo describes one file entry.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime int64
}

// ListDirectories lists the immediate subdirectories of path within
// workspaceRoot.
func ListDirectories(workspaceRoot, path string) ([]DirectoryInfo, error) {
	resolved, err := workspace.ResolveInside(workspaceRoot, path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, jferr.Wrap(jferr.System, "list directory", err)
	}

	out := make([]DirectoryInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, DirectoryInfo{Name: e.Name(), Path: filepath.Join(path, e.Name())})
		}
	}
	return out, nil
}

// ListFiles lists files (optionally recursive to depth) under path,
// filtered by a validated mask.
func ListFiles(workspaceRoot, path, mask string, depth int) ([]FileInfo, error) {
	if err := validateMask(mask); err != nil {
		return nil, err
	}

	resolved, err := workspace.ResolveInside(workspaceRoot, path)
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	err = filepath.Walk(resolved, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			rel, _ := filepath.Rel(resolved, p)
			if depth > 0 && rel != "." && strings.Count(rel, string(filepath.Separator)) >= depth {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesMask(info.Name(), mask) {
			return nil
		}
		rel, _ := filepath.Rel(workspaceRoot, p)
		out = append(out, FileInfo{
			Name:    info.Name(),
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, jferr.Wrap(jferr.System, "walk workspace", err)
	}
	return out, nil
}

// validateMask enforces spec's "never contains .., /, \, or control
// characters" rule before the mask is ever interpreted.
func validateMask(mask string) error {
	if mask == "" {
		return nil
	}
	for _, part := range strings.Split(mask, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "..") || strings.ContainsAny(part, "/\\") {
			return jferr.New(jferr.Validation, fmt.Sprintf("mask %q contains a disallowed path segment", part))
		}
		for _, r := range part {
			if unicode.IsControl(r) {
				return jferr.New(jferr.Validation, fmt.Sprintf("mask %q contains a control character", part))
			}
		}
	}
	return nil
}

// matchesMask implements the comma-separated glob syntax: "*" matches all,
// "*.ext" matches by case-insensitive suffix, anything else matches
// literally.
func matchesMask(name, mask string) bool {
	if mask == "" {
		return true
	}
	for _, part := range strings.Split(mask, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "*":
			return true
		case strings.HasPrefix(part, "*."):
			suffix := strings.ToLower(part[1:])
			if strings.HasSuffix(strings.ToLower(name), suffix) {
				return true
			}
		case part == name:
			return true
		}
	}
	return false
}

// ReadContent reads path as UTF-8 text, rejecting files over the size
// limit rather than truncating silently.
func ReadContent(workspaceRoot, path string) (string, error) {
	resolved, err := workspace.ResolveInside(workspaceRoot, path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", jferr.New(jferr.NotFound, fmt.Sprintf("no such file %q", path))
	}
	if info.Size() > maxTextContentBytes {
		return "", jferr.New(jferr.Validation, fmt.Sprintf("file %q exceeds the %d byte text content limit", path, maxTextContentBytes))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", jferr.Wrap(jferr.System, "read file", err)
	}
	return string(data), nil
}

// DownloadPath resolves path to an absolute on-disk location within
// workspaceRoot for binary download, falling back to stagingRoot/jobID if
// the file hasn't been materialized into the workspace yet.
func DownloadPath(workspaceRoot, stagingDir, path string) (string, error) {
	resolved, err := workspace.ResolveInside(workspaceRoot, path)
	if err == nil {
		if _, statErr := os.Stat(resolved); statErr == nil {
			return resolved, nil
		}
	}

	if stagingDir != "" {
		stagedPath := filepath.Join(stagingDir, filepath.Base(path))
		if _, statErr := os.Stat(stagedPath); statErr == nil {
			return stagedPath, nil
		}
	}

	return "", jferr.New(jferr.NotFound, fmt.Sprintf("no such file %q", path))
}
