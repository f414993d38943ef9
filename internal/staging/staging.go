// Package staging implements C8: pre-start file uploads and post-start
// workspace browsing, both funneled through the workspace package's
// path-safety resolver.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// Store roots pre-start uploads under <root>/staging/<jobId>/ and
// post-start browsing under the job's CoW workspace.
type Store struct {
	root string // <root>/staging
}

func NewStore(root string) *Store {
	return &Store{root: filepath.Join(root, "staging")}
}

func (s *Store) jobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// UploadResult describes one accepted upload.
type UploadResult struct {
	StoredName string
	Size       int64
}

// Upload stores stream at <staging>/<jobId>/<stem>_<ulid><ext>, returning
// the stored name subsequent list/download calls key on.
func (s *Store) Upload(jobID, filename string, stream io.Reader, maxBytes int64) (*UploadResult, error) {
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, jferr.Wrap(jferr.System, "create staging directory", err)
	}

	storedName := collisionSafeName(filename)
	dest := filepath.Join(dir, storedName)

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, jferr.Wrap(jferr.System, "create staged file", err)
	}
	defer out.Close()

	limited := io.LimitReader(stream, maxBytes+1)
	n, err := io.Copy(out, limited)
	if err != nil {
		os.Remove(dest)
		return nil, jferr.Wrap(jferr.System, "write staged file", err)
	}
	if n > maxBytes {
		os.Remove(dest)
		return nil, jferr.New(jferr.Validation, fmt.Sprintf("file exceeds the %d byte limit", maxBytes))
	}

	return &UploadResult{StoredName: storedName, Size: n}, nil
}

// collisionSafeName appends a sortable ULID rather than a plain random
// UUID, so stored filenames within one job's staging directory also sort
// in upload order when listed lexically.
func collisionSafeName(filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s_%s%s", stem, ulid.Make().String(), ext)
}

// Resolve finds the on-disk staged path matching name, which may be either
// the exact stored name or the original filename (falling back to a
// unique-suffix match across <stem>_<ulid><ext> entries). Multiple matches
// for an original-name lookup is an error, per spec.
func (s *Store) Resolve(jobID, name string) (string, error) {
	dir := s.jobDir(jobID)

	direct := filepath.Join(dir, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	prefix := stem + "_"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", jferr.New(jferr.NotFound, fmt.Sprintf("no staged file named %q", name))
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, prefix) && strings.HasSuffix(n, ext) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return "", jferr.New(jferr.NotFound, fmt.Sprintf("no staged file named %q", name))
	case 1:
		return filepath.Join(dir, matches[0]), nil
	default:
		return "", jferr.New(jferr.Conflict, fmt.Sprintf("multiple staged files match %q", name))
	}
}

// List returns every stored name currently staged for jobID.
func (s *Store) List(jobID string) ([]string, error) {
	entries, err := os.ReadDir(s.jobDir(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, jferr.Wrap(jferr.System, "list staged files", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// MaterializeInto copies every staged file for jobID into destDir (the
// job's workspace root), used by the pipeline's staging stage.
func (s *Store) MaterializeInto(jobID, destDir string) error {
	dir := s.jobDir(jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return jferr.Wrap(jferr.System, "read staging directory", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dst := filepath.Join(destDir, e.Name())
		if err := copyFile(src, dst); err != nil {
			return jferr.Wrap(jferr.System, "materialize staged file", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Remove deletes jobID's entire staging directory (called when a job is
// deleted; materializing uploads into the workspace leaves it in place).
func (s *Store) Remove(jobID string) error {
	if err := os.RemoveAll(s.jobDir(jobID)); err != nil {
		return jferr.Wrap(jferr.System, "remove staging directory", err)
	}
	return nil
}
