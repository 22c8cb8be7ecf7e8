package document

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store manages files under a fixed data root.
//
// Ingest is the only mutating operation. Writes go to a temp file first and
// are published with an atomic rename, so a crash mid-write never leaves a
// half-written file visible to ListAvailable.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving data root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating data root: %w", err)
	}

	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute data root directory.
func (s *Store) Root() string {
	return s.root
}

// Ingest persists the reader's bytes under the data root using the given name
// and returns the resulting Document. The file name is flattened with
// filepath.Base so an uploaded name can never escape the data root.
//
// The content is written to a temp file in the same directory and renamed
// into place, so concurrent listers either see the complete file or none.
func (s *Store) Ingest(name string, r io.Reader) (Document, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return Document{}, fmt.Errorf("invalid document name %q", name)
	}
	dst := filepath.Join(s.root, name)

	tmp, err := os.CreateTemp(s.root, ".ingest-*")
	if err != nil {
		return Document{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return Document{}, fmt.Errorf("writing document %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return Document{}, fmt.Errorf("closing temp file for %q: %w", name, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return Document{}, fmt.Errorf("publishing document %q: %w", name, err)
	}

	doc := Document{
		ID:       uuid.New(),
		Name:     name,
		Path:     dst,
		UseInRAG: true,
	}
	s.logger.Debug("ingested document", "name", name, "path", dst)
	return doc, nil
}

// ListAvailable enumerates regular files currently present under the data
// root, excluding directories and hidden entries. The order is
// filesystem-dependent; callers must not rely on it.
func (s *Store) ListAvailable() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing data root: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(s.root, e.Name()))
	}
	return paths, nil
}

// Resolve filters a candidate list of names or paths down to paths that
// currently exist on disk as regular files. Missing entries are silently
// dropped: a selection referencing a deleted file degrades gracefully
// instead of erroring.
func (s *Store) Resolve(candidates []string) []string {
	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		p := c
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.root, filepath.Base(c))
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			s.logger.Debug("dropping unresolvable selection", "candidate", c)
			continue
		}
		paths = append(paths, p)
	}
	return paths
}
